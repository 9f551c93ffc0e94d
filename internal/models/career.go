package models

import "time"

// CareerShift represents when a career's classes take place.
type CareerShift string

// Available shifts.
const (
	ShiftDay      CareerShift = "day"
	ShiftSaturday CareerShift = "saturday"
	ShiftSunday   CareerShift = "sunday"
)

// Career is a program offered by the center.
type Career struct {
	ID              string      `db:"id" json:"id"`
	Name            string      `db:"name" json:"name"`
	Shift           CareerShift `db:"shift" json:"shift"`
	Active          bool        `db:"active" json:"active"`
	EnrollmentCount int         `db:"enrollment_count" json:"enrollment_count"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// CareerFilter captures listing criteria for careers.
type CareerFilter struct {
	Active *bool
	Search string
}
