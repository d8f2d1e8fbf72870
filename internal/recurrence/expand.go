// Package recurrence materializes concrete occurrences from a recurrence
// pattern. Expansion follows iCalendar recurrence semantics: a monthly series
// anchored on a day a month does not have (e.g. the 31st) skips that month
// and still yields exactly Count occurrences. This is an explicit policy;
// native date rollover (Jan 31 + 1 month = Mar 3) is not what a scheduling
// user expects.
package recurrence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/merridale/bookline/internal/domain"
)

// Base is the anchor of a series: everything occurrences share apart from
// their dates.
type Base struct {
	Title     string
	Start     time.Time
	ContactID string
	Assignees []domain.Person
}

// Expand produces pattern.Count occurrences of base. All occurrences share
// one freshly minted recurring id, the pattern, and the assignee set; each
// gets its own id, scheduled status, and creation timestamp. The caller is
// expected to have validated the pattern.
func Expand(base Base, pattern domain.RecurrencePattern) ([]domain.Appointment, error) {
	rule, err := ruleFor(pattern, base.Start)
	if err != nil {
		return nil, err
	}

	starts := rule.All()
	recurringID := uuid.NewString()
	now := time.Now().UTC()

	out := make([]domain.Appointment, 0, len(starts))
	for _, start := range starts {
		p := pattern
		out = append(out, domain.Appointment{
			ID:          uuid.NewString(),
			Title:       base.Title,
			StartAt:     start,
			EndAt:       start.Add(domain.DefaultDuration),
			Date:        start.Format("2006-01-02"),
			TimeOfDay:   start.Format("15:04"),
			ContactID:   base.ContactID,
			Assignees:   append([]domain.Person(nil), base.Assignees...),
			Status:      domain.StatusScheduled,
			RecurringID: recurringID,
			Pattern:     &p,
			CreatedAt:   now,
		})
	}
	return out, nil
}

// Rule returns the RRULE value (without DTSTART) equivalent to the pattern,
// suitable for a VEVENT's RRULE property.
func Rule(pattern domain.RecurrencePattern, dtstart time.Time) (string, error) {
	opt, err := options(pattern, dtstart)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

func ruleFor(pattern domain.RecurrencePattern, dtstart time.Time) (*rrule.RRule, error) {
	opt, err := options(pattern, dtstart)
	if err != nil {
		return nil, err
	}
	return rrule.NewRRule(opt)
}

func options(pattern domain.RecurrencePattern, dtstart time.Time) (rrule.ROption, error) {
	var freq rrule.Frequency
	switch pattern.Frequency {
	case domain.FrequencyDaily:
		freq = rrule.DAILY
	case domain.FrequencyWeekly:
		freq = rrule.WEEKLY
	case domain.FrequencyMonthly:
		freq = rrule.MONTHLY
	default:
		return rrule.ROption{}, fmt.Errorf("recurrence: unknown frequency %q", pattern.Frequency)
	}

	interval := pattern.Interval
	if interval < 1 {
		interval = 1
	}

	return rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Count:    pattern.Count,
		Dtstart:  dtstart,
	}, nil
}
