package store

import (
	"reflect"
	"testing"
	"time"

	"github.com/merridale/bookline/internal/domain"
)

func ts(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestBuildViewSeparatesSinglesAndGroups(t *testing.T) {
	t.Parallel()

	st := initialState()
	st.Appointments = []domain.Appointment{
		appt("s1", "solo one", "2025-03-05", func(a *domain.Appointment) { a.CreatedAt = ts(1, 10) }),
		appt("r1", "series", "2025-03-10", inSeries("g1")),
		appt("s2", "solo two", "2025-03-06", func(a *domain.Appointment) { a.CreatedAt = ts(2, 10) }),
		appt("r2", "series", "2025-03-03", inSeries("g1")),
	}

	view := BuildView(st)

	if len(view.Singles) != 2 {
		t.Fatalf("singles = %d, want 2", len(view.Singles))
	}
	// Most recent first.
	if view.Singles[0].ID != "s2" || view.Singles[1].ID != "s1" {
		t.Fatalf("singles order = %s,%s want s2,s1", view.Singles[0].ID, view.Singles[1].ID)
	}

	gv, ok := view.Groups["g1"]
	if !ok {
		t.Fatal("group g1 missing")
	}
	if len(gv.Occurrences) != 2 {
		t.Fatalf("occurrences = %d, want 2", len(gv.Occurrences))
	}
	// Chronological regardless of insertion order.
	if gv.Occurrences[0].ID != "r2" || gv.Occurrences[1].ID != "r1" {
		t.Fatalf("occurrence order = %s,%s want r2,r1", gv.Occurrences[0].ID, gv.Occurrences[1].ID)
	}
	if gv.Group.Title != "series" {
		t.Fatalf("group title = %q, want seeded from occurrences", gv.Group.Title)
	}
}

func TestBuildViewNoSingleInsideGroupsAndEachRecurringInExactlyOne(t *testing.T) {
	t.Parallel()

	st := initialState()
	st.Appointments = []domain.Appointment{
		appt("s1", "solo", "2025-03-05"),
		appt("r1", "a", "2025-03-01", inSeries("g1")),
		appt("r2", "b", "2025-03-02", inSeries("g2")),
	}

	view := BuildView(st)
	for gid, gv := range view.Groups {
		for _, occ := range gv.Occurrences {
			if !occ.Recurring() {
				t.Fatalf("standalone appointment %s appeared inside group %s", occ.ID, gid)
			}
			if occ.RecurringID != gid {
				t.Fatalf("occurrence %s in group %s but linked to %s", occ.ID, gid, occ.RecurringID)
			}
		}
	}
	total := 0
	for _, gv := range view.Groups {
		total += len(gv.Occurrences)
	}
	if total != 2 {
		t.Fatalf("recurring occurrences spread across groups = %d, want 2", total)
	}
}

func TestBuildViewMergesDualSources(t *testing.T) {
	t.Parallel()

	// One group generated locally (flat list only) and one from the server
	// (groups endpoint + occurrence cache), no overlapping ids.
	st := initialState()
	st.Appointments = []domain.Appointment{
		appt("l1", "local series", "2025-03-10", inSeries("local-g")),
		appt("l2", "local series", "2025-03-03", inSeries("local-g")),
	}
	st.Groups = []domain.RecurringGroup{{
		ID:                "server-g",
		Title:             "server series",
		Pattern:           domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 1, Count: 9},
		AppointmentsCount: 9,
		Active:            true,
	}}
	st.Occurrences = map[string][]domain.Appointment{
		"server-g": {
			appt("o2", "server series", "", func(a *domain.Appointment) { a.StartAt = ts(20, 9); a.RecurringID = "server-g" }),
			appt("o1", "server series", "", func(a *domain.Appointment) { a.StartAt = ts(19, 9); a.RecurringID = "server-g" }),
		},
	}

	view := BuildView(st)

	if len(view.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(view.Groups))
	}

	local := view.Groups["local-g"]
	if local == nil || len(local.Occurrences) != 2 {
		t.Fatalf("local group = %+v", local)
	}
	if local.Occurrences[0].ID != "l2" {
		t.Fatalf("local order wrong: first = %s, want l2", local.Occurrences[0].ID)
	}
	if local.Count != 2 {
		t.Fatalf("local count = %d, want 2", local.Count)
	}

	server := view.Groups["server-g"]
	if server == nil || len(server.Occurrences) != 2 {
		t.Fatalf("server group = %+v", server)
	}
	if server.Occurrences[0].ID != "o1" {
		t.Fatalf("server order wrong: first = %s, want o1", server.Occurrences[0].ID)
	}
	// Authoritative count wins over materialized length.
	if server.Count != 9 {
		t.Fatalf("server count = %d, want authoritative 9", server.Count)
	}
}

func TestBuildViewDeduplicatesAcrossSources(t *testing.T) {
	t.Parallel()

	shared := appt("dup", "series", "2025-03-03", inSeries("g1"))
	st := initialState()
	st.Appointments = []domain.Appointment{shared}
	st.Groups = []domain.RecurringGroup{{ID: "g1", Title: "series", AppointmentsCount: 3}}
	st.Occurrences = map[string][]domain.Appointment{"g1": {shared}}

	view := BuildView(st)
	if got := len(view.Groups["g1"].Occurrences); got != 1 {
		t.Fatalf("occurrences = %d, want deduplicated 1", got)
	}
}

func TestBuildViewTimestampPreferredOverDate(t *testing.T) {
	t.Parallel()

	st := initialState()
	st.Appointments = []domain.Appointment{
		// Later date string, but earlier explicit timestamp wins for order.
		appt("a", "s", "2025-03-09", func(a *domain.Appointment) {
			a.RecurringID = "g1"
			a.StartAt = ts(9, 8)
		}),
		appt("b", "s", "2025-03-09", func(a *domain.Appointment) {
			a.RecurringID = "g1"
			a.StartAt = time.Time{}
			a.TimeOfDay = "12:00"
		}),
	}

	view := BuildView(st)
	occ := view.Groups["g1"].Occurrences
	if occ[0].ID != "a" || occ[1].ID != "b" {
		t.Fatalf("order = %s,%s want a,b", occ[0].ID, occ[1].ID)
	}
}

func TestBuildViewIdempotent(t *testing.T) {
	t.Parallel()

	st := initialState()
	st.Appointments = []domain.Appointment{
		appt("r1", "series", "2025-03-10", inSeries("g1")),
		appt("s1", "solo", "2025-03-05"),
	}
	st.Groups = []domain.RecurringGroup{{ID: "g2", Title: "other", AppointmentsCount: 4}}

	first := BuildView(st)
	second := BuildView(st)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("BuildView is not idempotent over identical state")
	}
}
