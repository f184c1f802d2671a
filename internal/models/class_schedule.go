package models

import (
	"time"

	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

// ClassSchedule is a standing weekly commitment of a room to a course.
type ClassSchedule struct {
	ID           string             `db:"id" json:"id"`
	RoomID       string             `db:"room_id" json:"room_id"`
	InstructorID string             `db:"instructor_id" json:"instructor_id"`
	CourseCode   string             `db:"course_code" json:"course_code"`
	CourseName   string             `db:"course_name" json:"course_name"`
	DayOfWeek    string             `db:"day_of_week" json:"day_of_week"`
	StartTime    timeslot.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime      timeslot.TimeOfDay `db:"end_time" json:"end_time"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// ClassScheduleDetail carries display names joined from users and rooms.
type ClassScheduleDetail struct {
	ClassSchedule
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	RoomLabel      string `db:"room_label" json:"room_label"`
}

// Range returns the class's daily time window.
func (s ClassSchedule) Range() timeslot.Range {
	return timeslot.NewRange(s.StartTime, s.EndTime)
}

// Title renders "<course_code> - <course_name>".
func (s ClassSchedule) Title() string {
	return s.CourseCode + " - " + s.CourseName
}

// ClassScheduleFilter describes query params for listing class schedules.
type ClassScheduleFilter struct {
	RoomID       string
	InstructorID string
	DayOfWeek    string
	Page         int
	PageSize     int
}
