package models

import "time"

// RoomType classifies rooms.
type RoomType string

const (
	RoomTypeClassroom  RoomType = "classroom"
	RoomTypeLab        RoomType = "lab"
	RoomTypeConference RoomType = "conference"
)

// Room is a bookable space identified by room number and building.
type Room struct {
	ID         string    `db:"id" json:"id"`
	RoomNumber string    `db:"room_number" json:"room_number"`
	Building   string    `db:"building" json:"building"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Type       RoomType  `db:"type" json:"type"`
	Equipment  string    `db:"equipment" json:"equipment"`
	Available  bool      `db:"available" json:"available"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName renders "<building> <room number>".
func (r Room) DisplayName() string {
	return r.Building + " " + r.RoomNumber
}

// RoomFilter describes query params for listing rooms.
type RoomFilter struct {
	Building  string
	Type      RoomType
	Available *bool
	MinSeats  int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
