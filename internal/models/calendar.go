package models

import "github.com/noah-isme/room-reservation-api/pkg/timeslot"

// RoomDay is the aggregated view of one room on one date.
type RoomDay struct {
	Room         Room                  `json:"room"`
	Date         timeslot.Date         `json:"date"`
	DayOfWeek    string                `json:"day_of_week"`
	Classes      []ClassScheduleDetail `json:"classes"`
	Reservations []ReservationDetail   `json:"reservations"`
}
