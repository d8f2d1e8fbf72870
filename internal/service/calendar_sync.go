package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/merridale/bookline/internal/clients/caldav"
	"github.com/merridale/bookline/internal/domain"
	"github.com/merridale/bookline/internal/recurrence"
)

// CalendarSync mirrors confirmed bookings onto an external CalDAV calendar.
// It is an optional side channel; when unconfigured every call is a no-op.
type CalendarSync struct {
	client       *caldav.Client
	calendarPath string
	log          zerolog.Logger
}

func NewCalendarSync(client *caldav.Client, calendarPath string, log zerolog.Logger) *CalendarSync {
	return &CalendarSync{client: client, calendarPath: calendarPath, log: log}
}

func (c *CalendarSync) Configured() bool {
	return c != nil && c.client != nil && c.client.Configured() && c.calendarPath != ""
}

// PushAppointment mirrors one appointment as a plain event.
func (c *CalendarSync) PushAppointment(ctx context.Context, a domain.Appointment) error {
	if !c.Configured() {
		return nil
	}
	ev := caldav.EventFromAppointment(a)
	if ev.Start.IsZero() {
		return fmt.Errorf("appointment %s has no resolvable start time", a.ID)
	}
	return c.client.PutEvent(ctx, c.calendarPath, ev)
}

// PushSeries mirrors a recurring series as a single event carrying an
// RRULE, rather than one event per occurrence. first must be the earliest
// occurrence of the batch.
func (c *CalendarSync) PushSeries(ctx context.Context, first domain.Appointment, pattern domain.RecurrencePattern) error {
	if !c.Configured() {
		return nil
	}
	ev := caldav.EventFromAppointment(first)
	if ev.Start.IsZero() {
		return fmt.Errorf("series %s has no resolvable start time", first.RecurringID)
	}
	if first.RecurringID != "" {
		ev.UID = first.RecurringID
	}

	rule, err := recurrence.Rule(pattern, ev.Start)
	if err != nil {
		return fmt.Errorf("series rule: %w", err)
	}
	ev.RRule = rule
	return c.client.PutEvent(ctx, c.calendarPath, ev)
}

// Remove deletes the mirrored event for an appointment or series id.
func (c *CalendarSync) Remove(ctx context.Context, uid string) error {
	if !c.Configured() {
		return nil
	}
	return c.client.RemoveEvent(ctx, c.calendarPath, uid)
}
