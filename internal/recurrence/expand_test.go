package recurrence

import (
	"testing"
	"time"

	"github.com/merridale/bookline/internal/domain"
)

func mustExpand(t *testing.T, base Base, pattern domain.RecurrencePattern) []domain.Appointment {
	t.Helper()
	out, err := Expand(base, pattern)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	return out
}

func TestExpandWeekly(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	base := Base{
		Title:     "Checkup",
		Start:     start,
		ContactID: "c-1",
		Assignees: []domain.Person{{UserID: "u-1", Name: "Morgan"}},
	}
	pattern := domain.RecurrencePattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: 3}

	got := mustExpand(t, base, pattern)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	wantDates := []string{"2025-03-03", "2025-03-10", "2025-03-17"}
	for i, a := range got {
		if a.Date != wantDates[i] {
			t.Errorf("occurrence %d date = %s, want %s", i, a.Date, wantDates[i])
		}
		if a.Status != domain.StatusScheduled {
			t.Errorf("occurrence %d status = %s, want scheduled", i, a.Status)
		}
		if a.TimeOfDay != "09:00" {
			t.Errorf("occurrence %d time = %s, want 09:00", i, a.TimeOfDay)
		}
		if a.RecurringID != got[0].RecurringID {
			t.Errorf("occurrence %d carries a different recurring id", i)
		}
		if a.Pattern == nil || *a.Pattern != pattern {
			t.Errorf("occurrence %d pattern = %v, want %v", i, a.Pattern, pattern)
		}
		if len(a.Assignees) != 1 || a.Assignees[0].UserID != "u-1" {
			t.Errorf("occurrence %d assignees = %v", i, a.Assignees)
		}
		if got, want := a.EndAt.Sub(a.StartAt), domain.DefaultDuration; got != want {
			t.Errorf("occurrence %d duration = %v, want %v", i, got, want)
		}
	}
	if got[0].RecurringID == "" {
		t.Fatal("recurring id not assigned")
	}
}

func TestExpandCountAndSpacing(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		name     string
		pattern  domain.RecurrencePattern
		stepDays int
	}{
		{"daily every day", domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: 7}, 1},
		{"daily every third day", domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 3, Count: 5}, 3},
		{"weekly", domain.RecurrencePattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: 4}, 7},
		{"biweekly", domain.RecurrencePattern{Frequency: domain.FrequencyWeekly, Interval: 2, Count: 10}, 14},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := mustExpand(t, Base{Title: "x", Start: start}, tc.pattern)
			if len(got) != tc.pattern.Count {
				t.Fatalf("len = %d, want %d", len(got), tc.pattern.Count)
			}
			for i := 1; i < len(got); i++ {
				step := got[i].StartAt.Sub(got[i-1].StartAt)
				want := time.Duration(tc.stepDays) * 24 * time.Hour
				if step != want {
					t.Fatalf("step %d = %v, want %v", i, step, want)
				}
			}
		})
	}
}

func TestExpandMonthlySkipsShortMonths(t *testing.T) {
	t.Parallel()

	// Anchored on the 31st: February has no 31st, so it is skipped and the
	// series still contains exactly three occurrences.
	start := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	pattern := domain.RecurrencePattern{Frequency: domain.FrequencyMonthly, Interval: 1, Count: 3}

	got := mustExpand(t, Base{Title: "rent", Start: start}, pattern)
	wantDates := []string{"2025-01-31", "2025-03-31", "2025-05-31"}
	if len(got) != len(wantDates) {
		t.Fatalf("len = %d, want %d", len(got), len(wantDates))
	}
	for i, a := range got {
		if a.Date != wantDates[i] {
			t.Errorf("occurrence %d date = %s, want %s", i, a.Date, wantDates[i])
		}
	}
}

func TestExpandMonthlyPlain(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	pattern := domain.RecurrencePattern{Frequency: domain.FrequencyMonthly, Interval: 1, Count: 4}

	got := mustExpand(t, Base{Title: "review", Start: start}, pattern)
	wantDates := []string{"2025-01-15", "2025-02-15", "2025-03-15", "2025-04-15"}
	for i, a := range got {
		if a.Date != wantDates[i] {
			t.Errorf("occurrence %d date = %s, want %s", i, a.Date, wantDates[i])
		}
	}
}

func TestExpandDistinctSeriesGetDistinctIDs(t *testing.T) {
	t.Parallel()

	base := Base{Title: "x", Start: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)}
	pattern := domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: 2}

	a := mustExpand(t, base, pattern)
	b := mustExpand(t, base, pattern)
	if a[0].RecurringID == b[0].RecurringID {
		t.Fatal("two expansions share a recurring id")
	}
	if a[0].ID == a[1].ID {
		t.Fatal("occurrences share an id")
	}
}

func TestRule(t *testing.T) {
	t.Parallel()

	pattern := domain.RecurrencePattern{Frequency: domain.FrequencyWeekly, Interval: 2, Count: 5}
	got, err := Rule(pattern, time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Rule() error = %v", err)
	}
	want := "FREQ=WEEKLY;INTERVAL=2;COUNT=5"
	if got != want {
		t.Fatalf("Rule() = %q, want %q", got, want)
	}
}

func TestExpandUnknownFrequency(t *testing.T) {
	t.Parallel()

	_, err := Expand(Base{Title: "x", Start: time.Now()}, domain.RecurrencePattern{Frequency: "yearly", Interval: 1, Count: 2})
	if err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestPatternValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		pattern domain.RecurrencePattern
		ok      bool
	}{
		{"valid weekly", domain.RecurrencePattern{Frequency: domain.FrequencyWeekly, Interval: 1, Count: 10}, true},
		{"count at cap", domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: 100}, true},
		{"count zero", domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: 0}, false},
		{"count over cap", domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: 101}, false},
		{"interval zero", domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 0, Count: 5}, false},
		{"bad frequency", domain.RecurrencePattern{Frequency: "hourly", Interval: 1, Count: 5}, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.pattern.Validate()
			if tc.ok && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}
}
