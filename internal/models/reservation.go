package models

import (
	"time"

	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

// ReservationStatus is both the persisted status and the effective status shown
// to users. StatusActive is effective-only and never written to the store.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusActive    ReservationStatus = "active"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusRejected  ReservationStatus = "rejected"
)

// BlockingStatuses are the stored statuses that can collide with a candidate.
var BlockingStatuses = []ReservationStatus{StatusPending, StatusApproved}

var storedTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

// IsTerminal reports whether the status is never recomputed or mutated.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// IsStored reports whether the status may be persisted.
func (s ReservationStatus) IsStored() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCancelled, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a stored status may move to next.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range storedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation is a one-time room booking.
type Reservation struct {
	ID         string             `db:"id" json:"id"`
	RoomID     string             `db:"room_id" json:"room_id"`
	UserID     string             `db:"user_id" json:"user_id"`
	Date       timeslot.Date      `db:"date" json:"date"`
	StartTime  timeslot.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime    timeslot.TimeOfDay `db:"end_time" json:"end_time"`
	Purpose    string             `db:"purpose" json:"purpose"`
	Status     ReservationStatus  `db:"status" json:"status"`
	AdminNotes *string            `db:"admin_notes" json:"admin_notes,omitempty"`
	Course     *string            `db:"course" json:"course,omitempty"`
	YearLevel  *string            `db:"year_level" json:"year_level,omitempty"`
	Block      *string            `db:"block" json:"block,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}

// Range returns the reservation's time window on its date.
func (r Reservation) Range() timeslot.Range {
	return timeslot.NewRange(r.StartTime, r.EndTime)
}

// ReservationDetail joins display names. StoredStatus holds the persisted value
// once Status has been replaced by the effective status.
type ReservationDetail struct {
	Reservation
	RequesterName string            `db:"requester_name" json:"requester_name"`
	RoomLabel     string            `db:"room_label" json:"room_label"`
	StoredStatus  ReservationStatus `db:"-" json:"stored_status,omitempty"`
}

// ReservationFilter describes query params for listing reservations.
//
// Statuses name effective statuses. Matching active, completed or approved
// depends on the wall clock, given by Today and Now (minute precision).
type ReservationFilter struct {
	RoomID    string
	UserID    string
	DateFrom  *timeslot.Date
	DateTo    *timeslot.Date
	Statuses  []ReservationStatus
	Today     timeslot.Date
	Now       timeslot.TimeOfDay
	Course    string
	YearLevel string
	Block     string
	Page      int
	PageSize  int
	SortOrder string
}
