package store

import (
	"sort"

	"github.com/merridale/bookline/internal/domain"
)

// GroupView is one recurring series as presented to the manager screen:
// the series record plus whatever occurrences are materialized so far.
type GroupView struct {
	Group       domain.RecurringGroup
	Occurrences []domain.Appointment

	// Count is the displayed total. When the server has reported an
	// authoritative appointments count it wins over the number of
	// materialized occurrences, so a lazily loaded group shows its full
	// size before its occurrences arrive.
	Count int
}

// View is the merged presentation of both appointment sources.
type View struct {
	Groups  map[string]*GroupView
	Singles []domain.Appointment
}

// BuildView reconstructs the "recurring group → ordered occurrences" and
// "single appointment" views from the two sources the state holds: the flat
// list (locally generated batches and cached singles, recurrence linkage
// embedded) and the server-defined groups with their lazily fetched
// occurrence cache. A group entry is built once per distinct id, seeded from
// whichever source shows up first; occurrences from both sources accumulate
// without duplication. The function is pure and idempotent.
func BuildView(s State) View {
	view := View{Groups: map[string]*GroupView{}}
	seen := map[string]map[string]bool{} // group id -> occurrence ids

	ensure := func(id string) *GroupView {
		gv, ok := view.Groups[id]
		if !ok {
			gv = &GroupView{Group: domain.RecurringGroup{ID: id}}
			view.Groups[id] = gv
			seen[id] = map[string]bool{}
		}
		return gv
	}
	add := func(gv *GroupView, a domain.Appointment) {
		if seen[gv.Group.ID][a.ID] {
			return
		}
		seen[gv.Group.ID][a.ID] = true
		gv.Occurrences = append(gv.Occurrences, a)
	}

	// Flat list first: seeds locally generated groups and collects singles.
	for _, a := range s.Appointments {
		if !a.Recurring() {
			view.Singles = append(view.Singles, a)
			continue
		}
		gv := ensure(a.RecurringID)
		if gv.Group.Title == "" {
			gv.Group.Title = a.Title
			if a.Pattern != nil {
				gv.Group.Pattern = *a.Pattern
			}
			gv.Group.Assignees = a.Assignees
			gv.Group.Active = true
			gv.Group.CreatedAt = a.CreatedAt
		}
		if gv.Group.CreatedAt.IsZero() || (!a.CreatedAt.IsZero() && a.CreatedAt.Before(gv.Group.CreatedAt)) {
			gv.Group.CreatedAt = a.CreatedAt
		}
		add(gv, a)
	}

	// Server groups: authoritative metadata and counts.
	for _, g := range s.Groups {
		gv := ensure(g.ID)
		gv.Group = g
	}

	// Lazily fetched occurrence cache.
	for gid, list := range s.Occurrences {
		gv := ensure(gid)
		for _, a := range list {
			add(gv, a)
		}
	}

	for _, gv := range view.Groups {
		sort.SliceStable(gv.Occurrences, func(i, j int) bool {
			return gv.Occurrences[i].EffectiveStart().Before(gv.Occurrences[j].EffectiveStart())
		})
		gv.Count = gv.Group.AppointmentsCount
		if n := len(gv.Occurrences); n > gv.Count {
			gv.Count = n
		}
	}

	sort.SliceStable(view.Singles, func(i, j int) bool {
		return view.Singles[i].CreatedAt.After(view.Singles[j].CreatedAt)
	})

	return view
}
