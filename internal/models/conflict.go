package models

import "strings"

// ConflictKind names the type of entity a candidate collides with.
type ConflictKind string

const (
	ConflictKindClass       ConflictKind = "class"
	ConflictKindReservation ConflictKind = "reservation"
)

// Conflict describes one entity that overlaps a candidate reservation.
type Conflict struct {
	Kind          ConflictKind       `json:"kind"`
	Title         string             `json:"title"`
	TimeRange     string             `json:"time_range"`
	OwnerName     string             `json:"owner_name"`
	ReservationID *string            `json:"reservation_id,omitempty"`
	Status        *ReservationStatus `json:"status,omitempty"`
}

// ReservationConflictError carries the collisions that refused a write.
type ReservationConflictError struct {
	Conflicts []Conflict `json:"conflicts"`
}

// Error implements the error interface.
func (e *ReservationConflictError) Error() string {
	if e == nil || len(e.Conflicts) == 0 {
		return "time conflict"
	}
	titles := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		titles = append(titles, c.Title+" ("+c.TimeRange+")")
	}
	return "time conflict with " + strings.Join(titles, ", ")
}
