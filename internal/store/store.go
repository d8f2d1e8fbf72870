// Package store is the state container for all authoritative client state:
// appointments, recurring groups and their lazily fetched occurrences, the
// user roster, search results, and per-operation lifecycle. Mutation happens
// only through typed actions fed to a pure reducer; the Store wraps the
// reducer with a mutex so all writers are serialized.
package store

import (
	"sync"
	"time"

	"github.com/merridale/bookline/internal/domain"
)

// State is the reducer's value. Treat snapshots as read-only: the reducer
// clones every container it touches, so a snapshot taken before a dispatch
// is never mutated afterwards.
type State struct {
	Appointments []domain.Appointment
	Groups       []domain.RecurringGroup

	// Occurrences caches server-fetched occurrence lists per group id;
	// Fetched marks groups whose lazy load already ran, so expanding a
	// group twice never refetches.
	Occurrences map[string][]domain.Appointment
	Fetched     map[string]bool

	Users    []domain.User
	Contacts []domain.Contact
	People   []domain.Person

	Ops map[Op]OpState

	// Success is set when a create fulfills and cleared when the next one
	// starts; the creator flow consumes it to reset its form.
	Success bool

	// Rollback holds pre-patch snapshots for optimistic updates that have
	// not been confirmed yet, keyed by appointment id.
	Rollback map[string]domain.Appointment

	LastUpdated time.Time
}

func initialState() State {
	return State{
		Occurrences: map[string][]domain.Appointment{},
		Fetched:     map[string]bool{},
		Ops:         map[Op]OpState{},
		Rollback:    map[string]domain.Appointment{},
	}
}

// Store serializes dispatches over the reducer.
type Store struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{state: initialState(), now: time.Now}
}

// Dispatch applies one action.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = reduce(s.state, a, s.now())
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Op returns the lifecycle state of one operation kind.
func (s *Store) Op(op Op) OpState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.Ops[op]
	if !ok {
		return OpState{Phase: PhaseIdle}
	}
	return st
}

// Appointment looks up one appointment in the flat list.
func (s *Store) Appointment(id string) (domain.Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.state.Appointments {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Appointment{}, false
}

// GroupFetched reports whether a group's occurrences were already loaded.
func (s *Store) GroupFetched(groupID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Fetched[groupID]
}

// reduce is the single pure transition function: given a state and an
// action it returns the next state, cloning whatever it changes.
func reduce(s State, a Action, now time.Time) State {
	switch act := a.(type) {
	case Pending:
		s.Ops = cloneOps(s.Ops)
		s.Ops[act.Op] = OpState{Phase: PhasePending}
		if act.Op == OpCreate {
			s.Success = false
		}
		return s

	case Rejected:
		s.Ops = cloneOps(s.Ops)
		s.Ops[act.Op] = OpState{Phase: PhaseRejected, Err: act.Err}
		if act.Op == OpUpdate && len(s.Rollback) > 0 {
			// A failed update must not leave optimistic mutations behind.
			s = restoreRollback(s)
		}
		return s

	case AppointmentsLoaded:
		s.Appointments = append([]domain.Appointment(nil), act.Items...)
		s = fulfilled(s, OpLoad, now)
		return s

	case AppointmentsCreated:
		s.Appointments = append(append([]domain.Appointment(nil), s.Appointments...), act.Items...)
		s = fulfilled(s, OpCreate, now)
		s.Success = true
		return s

	case OptimisticUpdate:
		s.Rollback = cloneRollback(s.Rollback)
		if _, taken := s.Rollback[act.ID]; !taken {
			if orig, ok := findAppointment(s.Appointments, act.ID); ok {
				s.Rollback[act.ID] = orig
			} else if orig, ok := findCached(s.Occurrences, act.ID); ok {
				s.Rollback[act.ID] = orig
			}
		}
		s = patchEverywhere(s, act.ID, act.Patch)
		return s

	case AppointmentUpdated:
		s = patchEverywhere(s, act.ID, act.Patch)
		if _, ok := s.Rollback[act.ID]; ok {
			s.Rollback = cloneRollback(s.Rollback)
			delete(s.Rollback, act.ID)
		}
		s = fulfilled(s, OpUpdate, now)
		return s

	case AppointmentDeleted:
		s.Appointments = filterByID(s.Appointments, act.ID)
		s.Occurrences = filterCached(s.Occurrences, act.ID)
		s = fulfilled(s, OpDelete, now)
		return s

	case SeriesDeleted:
		groups := make([]domain.RecurringGroup, 0, len(s.Groups))
		for _, g := range s.Groups {
			if g.ID != act.GroupID {
				groups = append(groups, g)
			}
		}
		s.Groups = groups

		occ := cloneOccurrences(s.Occurrences)
		delete(occ, act.GroupID)
		s.Occurrences = occ

		fetched := cloneFetched(s.Fetched)
		delete(fetched, act.GroupID)
		s.Fetched = fetched

		// A locally generated series carries the same id as recurring
		// linkage on its flat entries.
		flat := make([]domain.Appointment, 0, len(s.Appointments))
		for _, a := range s.Appointments {
			if a.RecurringID != act.GroupID {
				flat = append(flat, a)
			}
		}
		s.Appointments = flat
		s = fulfilled(s, OpDeleteSeries, now)
		return s

	case GroupsLoaded:
		s.Groups = append([]domain.RecurringGroup(nil), act.Items...)
		s = fulfilled(s, OpLoadGroups, now)
		return s

	case OccurrencesLoaded:
		occ := cloneOccurrences(s.Occurrences)
		occ[act.GroupID] = append([]domain.Appointment(nil), act.Items...)
		s.Occurrences = occ

		fetched := cloneFetched(s.Fetched)
		fetched[act.GroupID] = true
		s.Fetched = fetched

		if act.Count > 0 {
			groups := append([]domain.RecurringGroup(nil), s.Groups...)
			for i := range groups {
				if groups[i].ID == act.GroupID {
					groups[i].AppointmentsCount = act.Count
				}
			}
			s.Groups = groups
		}
		s.LastUpdated = now
		return s

	case UsersLoaded:
		s.Users = append([]domain.User(nil), act.Items...)
		s = fulfilled(s, OpLoadUsers, now)
		return s

	case UserCalendarUpdated:
		users := append([]domain.User(nil), s.Users...)
		for i := range users {
			if users[i].ID == act.UserID {
				if act.CalendarID == "" {
					users[i].CalendarID = nil
				} else {
					id := act.CalendarID
					users[i].CalendarID = &id
				}
			}
		}
		s.Users = users
		s = fulfilled(s, OpUpdateCalendar, now)
		return s

	case ContactsLoaded:
		s.Contacts = append([]domain.Contact(nil), act.Items...)
		s = fulfilled(s, OpSearchContacts, now)
		return s

	case PeopleLoaded:
		s.People = append([]domain.Person(nil), act.Items...)
		s = fulfilled(s, OpSearchPeople, now)
		return s

	case ClearError:
		s.Ops = cloneOps(s.Ops)
		s.Ops[act.Op] = OpState{Phase: PhaseIdle}
		return s

	case Reset:
		return initialState()
	}
	return s
}

func fulfilled(s State, op Op, now time.Time) State {
	s.Ops = cloneOps(s.Ops)
	s.Ops[op] = OpState{Phase: PhaseFulfilled}
	s.LastUpdated = now
	return s
}

func patchEverywhere(s State, id string, p Patch) State {
	flat := append([]domain.Appointment(nil), s.Appointments...)
	for i := range flat {
		if flat[i].ID == id {
			flat[i] = p.Apply(flat[i])
		}
	}
	s.Appointments = flat

	occ := cloneOccurrences(s.Occurrences)
	for gid, list := range occ {
		changed := false
		next := append([]domain.Appointment(nil), list...)
		for i := range next {
			if next[i].ID == id {
				next[i] = p.Apply(next[i])
				changed = true
			}
		}
		if changed {
			occ[gid] = next
		}
	}
	s.Occurrences = occ
	return s
}

func restoreRollback(s State) State {
	for id, orig := range s.Rollback {
		flat := append([]domain.Appointment(nil), s.Appointments...)
		for i := range flat {
			if flat[i].ID == id {
				flat[i] = orig
			}
		}
		s.Appointments = flat

		occ := cloneOccurrences(s.Occurrences)
		for gid, list := range occ {
			next := append([]domain.Appointment(nil), list...)
			for i := range next {
				if next[i].ID == id {
					next[i] = orig
				}
			}
			occ[gid] = next
		}
		s.Occurrences = occ
	}
	s.Rollback = map[string]domain.Appointment{}
	return s
}

func findAppointment(items []domain.Appointment, id string) (domain.Appointment, bool) {
	for _, a := range items {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Appointment{}, false
}

func findCached(occ map[string][]domain.Appointment, id string) (domain.Appointment, bool) {
	for _, list := range occ {
		if a, ok := findAppointment(list, id); ok {
			return a, true
		}
	}
	return domain.Appointment{}, false
}

func filterByID(items []domain.Appointment, id string) []domain.Appointment {
	out := make([]domain.Appointment, 0, len(items))
	for _, a := range items {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

func filterCached(occ map[string][]domain.Appointment, id string) map[string][]domain.Appointment {
	out := make(map[string][]domain.Appointment, len(occ))
	for gid, list := range occ {
		out[gid] = filterByID(list, id)
	}
	return out
}

func cloneOps(in map[Op]OpState) map[Op]OpState {
	out := make(map[Op]OpState, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneRollback(in map[string]domain.Appointment) map[string]domain.Appointment {
	out := make(map[string]domain.Appointment, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneOccurrences(in map[string][]domain.Appointment) map[string][]domain.Appointment {
	out := make(map[string][]domain.Appointment, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneFetched(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
