package caldav

import (
	"fmt"
	"time"

	"github.com/merridale/bookline/internal/domain"
)

// Calendar is a discovered calendar collection on the server.
type Calendar struct {
	Path        string
	DisplayName string
}

// Event is the calendar-side projection of a booking. UID doubles as the
// object name on the server, so deletes only need the UID back.
type Event struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	RRule       string // e.g. "FREQ=WEEKLY;INTERVAL=2;COUNT=5"
}

// EventFromAppointment projects a booked appointment onto a calendar event.
// The appointment id keys the event so a later delete can find it.
func EventFromAppointment(a domain.Appointment) Event {
	ev := Event{
		UID:     a.ID,
		Summary: a.Title,
		Start:   a.EffectiveStart(),
	}
	if !a.EndAt.IsZero() {
		ev.End = a.EndAt
	} else if !ev.Start.IsZero() {
		ev.End = ev.Start.Add(domain.DefaultDuration)
	}
	if a.ContactID != "" {
		ev.Description = fmt.Sprintf("Contact: %s", a.ContactID)
	}
	return ev
}
