package store

import (
	"time"

	"github.com/merridale/bookline/internal/domain"
)

// Op identifies one kind of asynchronous operation tracked by the store.
type Op string

const (
	OpCreate         Op = "create"
	OpUpdate         Op = "update"
	OpDelete         Op = "delete"
	OpDeleteSeries   Op = "deleteSeries"
	OpLoad           Op = "load"
	OpLoadGroups     Op = "loadGroups"
	OpLoadUsers      Op = "loadUsers"
	OpUpdateCalendar Op = "updateCalendar"
	OpSearchContacts Op = "searchContacts"
	OpSearchPeople   Op = "searchPeople"
)

// Phase is the lifecycle phase of an operation.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// OpState is the tracked lifecycle of one operation kind.
type OpState struct {
	Phase Phase
	Err   string
}

// Action is a typed state transition. All mutation goes through
// reduce(State, Action); actions carry data, never behavior.
type Action interface{ isAction() }

// Pending marks an operation as in flight and clears its previous error.
type Pending struct{ Op Op }

// Rejected marks an operation as failed. A rejected update also rolls back
// any optimistic patches still pending confirmation.
type Rejected struct {
	Op  Op
	Err string
}

// AppointmentsLoaded replaces the flat list (load fulfilled).
type AppointmentsLoaded struct{ Items []domain.Appointment }

// AppointmentsCreated appends a confirmed single appointment or a full
// recurring batch (create fulfilled).
type AppointmentsCreated struct{ Items []domain.Appointment }

// OptimisticUpdate applies a patch immediately, before confirmation, keeping
// a rollback snapshot of the first pre-patch value per appointment.
type OptimisticUpdate struct {
	ID    string
	Patch Patch
}

// AppointmentUpdated applies a confirmed patch (idempotent re-application
// over an earlier optimistic one) and drops the rollback snapshot.
type AppointmentUpdated struct {
	ID    string
	Patch Patch
}

// AppointmentDeleted removes one occurrence from the flat list and from any
// cached group occurrence list. Authoritative group counts are untouched.
type AppointmentDeleted struct{ ID string }

// SeriesDeleted removes a group and everything linked to it: the group entry
// and occurrence cache by group id, flat entries by recurring id.
type SeriesDeleted struct{ GroupID string }

// GroupsLoaded replaces the server-sourced group list.
type GroupsLoaded struct{ Items []domain.RecurringGroup }

// OccurrencesLoaded caches one group's occurrence page set and records the
// server-authoritative count.
type OccurrencesLoaded struct {
	GroupID string
	Count   int
	Items   []domain.Appointment
}

// UsersLoaded replaces the roster.
type UsersLoaded struct{ Items []domain.User }

// UserCalendarUpdated links (or clears) a user's external calendar.
type UserCalendarUpdated struct {
	UserID     string
	CalendarID string
}

// ContactsLoaded / PeopleLoaded replace search results.
type ContactsLoaded struct{ Items []domain.Contact }
type PeopleLoaded struct{ Items []domain.Person }

// ClearError resets one operation back to idle.
type ClearError struct{ Op Op }

// Reset drops all state; dispatched on logout.
type Reset struct{}

func (Pending) isAction()             {}
func (Rejected) isAction()            {}
func (AppointmentsLoaded) isAction()  {}
func (AppointmentsCreated) isAction() {}
func (OptimisticUpdate) isAction()    {}
func (AppointmentUpdated) isAction()  {}
func (AppointmentDeleted) isAction()  {}
func (SeriesDeleted) isAction()       {}
func (GroupsLoaded) isAction()        {}
func (OccurrencesLoaded) isAction()   {}
func (UsersLoaded) isAction()         {}
func (UserCalendarUpdated) isAction() {}
func (ContactsLoaded) isAction()      {}
func (PeopleLoaded) isAction()        {}
func (ClearError) isAction()          {}
func (Reset) isAction()               {}

// Patch is a partial appointment update. Nil fields are left unchanged.
type Patch struct {
	Title     *string
	Date      *string
	TimeOfDay *string
	Status    *domain.Status
	Assignees []domain.Person // nil means unchanged
}

// Apply returns a copy of a with the patch applied.
func (p Patch) Apply(a domain.Appointment) domain.Appointment {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Date != nil {
		a.Date = *p.Date
		// A hand-edited date invalidates the explicit timestamps; ordering
		// falls back to the parsed date field.
		a.StartAt = time.Time{}
		a.EndAt = time.Time{}
	}
	if p.TimeOfDay != nil {
		a.TimeOfDay = *p.TimeOfDay
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Assignees != nil {
		a.Assignees = append([]domain.Person(nil), p.Assignees...)
	}
	return a
}

// StatusPatch is a convenience constructor for the common status toggle.
func StatusPatch(s domain.Status) Patch {
	return Patch{Status: &s}
}
