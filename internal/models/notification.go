package models

import "time"

// NotificationEvent names a reservation lifecycle event.
type NotificationEvent string

const (
	EventReservationCreated   NotificationEvent = "reservation.created"
	EventReservationUpdated   NotificationEvent = "reservation.updated"
	EventReservationApproved  NotificationEvent = "reservation.approved"
	EventReservationRejected  NotificationEvent = "reservation.rejected"
	EventReservationCancelled NotificationEvent = "reservation.cancelled"
)

// Notification is a persisted in-app notice for a user.
type Notification struct {
	ID            string            `db:"id" json:"id"`
	UserID        string            `db:"user_id" json:"user_id"`
	Event         NotificationEvent `db:"event" json:"event"`
	ReservationID *string           `db:"reservation_id" json:"reservation_id,omitempty"`
	Read          bool              `db:"read" json:"read"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}
