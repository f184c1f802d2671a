package service

import (
	"time"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.At }

// ResolveStatus derives the effective status of a reservation at now.
//
// Terminal statuses are returned untouched and pending is never promoted. An
// approved reservation is active while now lies in [start, end) on its date and
// completed once now reaches end or the date has passed. Comparison happens at
// minute granularity on the reservation's naive date, read in now's location.
func ResolveStatus(r models.Reservation, now time.Time) models.ReservationStatus {
	if r.Status != models.StatusApproved {
		return r.Status
	}

	today := timeslot.DateOf(now)
	switch {
	case r.Date.Before(today):
		return models.StatusCompleted
	case today.Before(r.Date):
		return models.StatusApproved
	}

	minute := timeslot.OfTime(now)
	window := r.Range()
	if window.Contains(minute) {
		return models.StatusActive
	}
	if !minute.Before(window.End) {
		return models.StatusCompleted
	}
	return models.StatusApproved
}

// Resolve returns a copy of r whose Status is the effective status at now,
// keeping the persisted value in StoredStatus.
func Resolve(r models.ReservationDetail, now time.Time) models.ReservationDetail {
	r.StoredStatus = r.Status
	r.Status = ResolveStatus(r.Reservation, now)
	return r
}

// ResolveAll applies Resolve to every record.
func ResolveAll(items []models.ReservationDetail, now time.Time) []models.ReservationDetail {
	out := make([]models.ReservationDetail, len(items))
	for i := range items {
		out[i] = Resolve(items[i], now)
	}
	return out
}

// CanEdit reports whether the owner may still change the reservation's fields.
func CanEdit(r models.Reservation, now time.Time) bool {
	return ResolveStatus(r, now) == models.StatusPending
}

// CanCancel reports whether the reservation may still be cancelled.
func CanCancel(r models.Reservation, now time.Time) bool {
	switch ResolveStatus(r, now) {
	case models.StatusPending, models.StatusApproved:
		return true
	}
	return false
}

// CanDelete reports whether actorRole may delete the reservation. Admins may
// delete anything; everyone else only history whose effective status is final,
// which includes approved bookings that have fully ended.
func CanDelete(r models.Reservation, actorRole models.UserRole, now time.Time) bool {
	if actorRole == models.RoleAdmin {
		return true
	}
	switch ResolveStatus(r, now) {
	case models.StatusCompleted, models.StatusCancelled, models.StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a stored status may move to next.
func CanTransition(from, next models.ReservationStatus) bool {
	return from.CanTransitionTo(next)
}
