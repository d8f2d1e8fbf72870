package domain

import "time"

// RecurringGroup is the series-level record. Server-sourced groups carry an
// authoritative AppointmentsCount that may exceed the number of locally
// materialized occurrences, because occurrences are fetched lazily.
type RecurringGroup struct {
	ID        string
	Title     string
	Pattern   RecurrencePattern
	Assignees []Person
	Active    bool

	// AppointmentsCount is the server-reported total for the series.
	AppointmentsCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
