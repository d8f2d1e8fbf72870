package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/merridale/bookline/internal/domain"
	"github.com/merridale/bookline/internal/notify"
	"github.com/merridale/bookline/internal/store"
)

func newScheduler(t *testing.T) (*Scheduler, *store.Store, *notify.Center) {
	t.Helper()
	st := store.New()
	nc := notify.NewCenter(time.Minute, nil, zerolog.Nop())
	s := New(st, nc, nil, nil, 30*time.Minute, "09:00", time.UTC, zerolog.Nop())
	return s, st, nc
}

func TestCronSpecFor(t *testing.T) {
	t.Parallel()

	spec, err := cronSpecFor("09:30")
	if err != nil {
		t.Fatalf("cronSpecFor: %v", err)
	}
	if spec != "30 9 * * *" {
		t.Fatalf("spec = %q", spec)
	}

	if _, err := cronSpecFor("9am"); err == nil {
		t.Fatal("invalid time accepted")
	}
}

func TestReminderFiresOncePerAppointment(t *testing.T) {
	t.Parallel()

	s, st, nc := newScheduler(t)

	soon := time.Now().Add(10 * time.Minute)
	far := time.Now().Add(3 * time.Hour)
	st.Dispatch(store.AppointmentsLoaded{Items: []domain.Appointment{
		{ID: "a1", Title: "Checkup", StartAt: soon, Status: domain.StatusScheduled},
		{ID: "a2", Title: "Later", StartAt: far, Status: domain.StatusScheduled},
	}})

	s.checkReminders()
	feed := nc.Active()
	if len(feed) != 1 || feed[0].Severity != domain.SeverityWarning {
		t.Fatalf("feed = %+v, want one warning", feed)
	}

	// A second sweep must not repeat the reminder.
	s.checkReminders()
	if got := len(nc.Active()); got != 1 {
		t.Fatalf("feed after second sweep = %d entries", got)
	}
}

func TestReminderIncludesCachedOccurrences(t *testing.T) {
	t.Parallel()

	s, st, nc := newScheduler(t)

	soon := time.Now().Add(5 * time.Minute)
	st.Dispatch(store.OccurrencesLoaded{
		GroupID: "g1",
		Count:   1,
		Items:   []domain.Appointment{{ID: "o1", Title: "PT", StartAt: soon, RecurringID: "g1"}},
	})

	s.checkReminders()
	if got := len(nc.Active()); got != 1 {
		t.Fatalf("feed = %d entries, want 1", got)
	}
}

func TestReminderSetPrunedAfterStart(t *testing.T) {
	t.Parallel()

	s, st, _ := newScheduler(t)

	soon := time.Now().Add(10 * time.Minute)
	st.Dispatch(store.AppointmentsLoaded{Items: []domain.Appointment{
		{ID: "a1", Title: "Checkup", StartAt: soon, Status: domain.StatusScheduled},
	}})

	s.checkReminders()
	s.mu.Lock()
	tracked := s.reminded["a1"]
	s.mu.Unlock()
	if !tracked {
		t.Fatal("reminder not recorded")
	}

	// Once the appointment's start has passed (here: it left the store),
	// the dedupe entry must be dropped.
	st.Dispatch(store.AppointmentDeleted{ID: "a1"})
	s.checkReminders()

	s.mu.Lock()
	size := len(s.reminded)
	s.mu.Unlock()
	if size != 0 {
		t.Fatalf("reminded set size = %d, want 0 after prune", size)
	}
}

func TestMorningDigestCountsToday(t *testing.T) {
	t.Parallel()

	s, st, nc := newScheduler(t)

	today := time.Now().UTC()
	tomorrow := today.Add(24 * time.Hour)
	st.Dispatch(store.AppointmentsLoaded{Items: []domain.Appointment{
		{ID: "a1", Title: "Checkup", StartAt: today.Add(time.Minute), Status: domain.StatusScheduled},
		{ID: "a2", Title: "Tomorrow", StartAt: tomorrow, Status: domain.StatusScheduled},
		{ID: "a3", Title: "Done", StartAt: today.Add(time.Minute), Status: domain.StatusCompleted},
	}})

	s.morningDigest()
	feed := nc.Active()
	if len(feed) != 1 {
		t.Fatalf("feed = %+v", feed)
	}
	if feed[0].Title != "Today: 1 appointments" {
		t.Fatalf("title = %q", feed[0].Title)
	}
	if !feed[0].Persistent {
		t.Fatal("digest should persist until dismissed")
	}
}

func TestMorningDigestEmptyDay(t *testing.T) {
	t.Parallel()

	s, _, nc := newScheduler(t)
	s.morningDigest()

	feed := nc.Active()
	if len(feed) != 1 || feed[0].Severity != domain.SeverityInfo {
		t.Fatalf("feed = %+v", feed)
	}
}
