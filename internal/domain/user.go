package domain

import "time"

// User is a roster entry from the calendar-stats endpoint.
type User struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	ExternalID string // identifier in the external CRM

	// CalendarID is nil until a calendar has been linked. Absence is a
	// user-visible state, not an error.
	CalendarID *string

	CreatedAt time.Time
}

// HasCalendar reports whether a calendar has been linked.
func (u *User) HasCalendar() bool {
	return u.CalendarID != nil && *u.CalendarID != ""
}
