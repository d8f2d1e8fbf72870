package domain

import "time"

// Status is the lifecycle state of a single appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Frequency is the unit a recurring series advances by.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// MaxRepeatCount caps how many occurrences one series may contain.
const MaxRepeatCount = 100

// DefaultDuration is applied when the backend does not supply an end time.
const DefaultDuration = 30 * time.Minute

// RecurrencePattern describes how a series repeats.
type RecurrencePattern struct {
	Frequency Frequency
	Interval  int // every N units, >= 1
	Count     int // total occurrences, 1..MaxRepeatCount
}

// Validate checks the pattern bounds before any expansion happens.
func (p RecurrencePattern) Validate() error {
	switch p.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return &PatternError{Field: "frequency", Value: string(p.Frequency)}
	}
	if p.Interval < 1 {
		return &PatternError{Field: "interval", Value: "must be at least 1"}
	}
	if p.Count < 1 || p.Count > MaxRepeatCount {
		return &PatternError{Field: "count", Value: "must be between 1 and 100"}
	}
	return nil
}

// PatternError reports an out-of-bounds recurrence pattern field.
type PatternError struct {
	Field string
	Value string
}

func (e *PatternError) Error() string {
	return "invalid recurrence pattern: " + e.Field + ": " + e.Value
}

// Appointment is the canonical record for one occurrence, whether it was
// generated locally or normalized from a backend payload.
type Appointment struct {
	ID        string
	Title     string
	StartAt   time.Time // zero when only the plain date is known
	EndAt     time.Time
	Date      string // yyyy-mm-dd, ordering fallback when StartAt is zero
	TimeOfDay string // HH:MM
	ContactID string
	Assignees []Person
	Status    Status

	// RecurringID links the appointment to its series; empty for standalone
	// appointments. An appointment belongs to at most one series.
	RecurringID string
	Pattern     *RecurrencePattern

	CreatedAt time.Time
}

// Recurring reports whether the appointment is part of a series.
func (a *Appointment) Recurring() bool {
	return a.RecurringID != ""
}

// EffectiveStart returns the best available start instant: the explicit
// timestamp when present, otherwise the parsed date (+ time of day).
func (a *Appointment) EffectiveStart() time.Time {
	if !a.StartAt.IsZero() {
		return a.StartAt
	}
	if a.Date == "" {
		return time.Time{}
	}
	layout := "2006-01-02"
	value := a.Date
	if a.TimeOfDay != "" {
		layout = "2006-01-02 15:04"
		value = a.Date + " " + a.TimeOfDay
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
