package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/merridale/bookline/internal/clients/bookingapi"
	"github.com/merridale/bookline/internal/domain"
	"github.com/merridale/bookline/internal/notify"
	"github.com/merridale/bookline/internal/recurrence"
	"github.com/merridale/bookline/internal/storage"
	"github.com/merridale/bookline/internal/store"
)

// BookingAPI is the backend surface the appointment service needs. The
// concrete client satisfies it; tests substitute a fake.
type BookingAPI interface {
	Book(ctx context.Context, req bookingapi.BookRequest) ([]domain.Appointment, error)
	ListGroups(ctx context.Context) ([]domain.RecurringGroup, error)
	ListGroupAppointments(ctx context.Context, groupID string, page int) ([]domain.Appointment, int, error)
	DeleteGroup(ctx context.Context, groupID string) error
	DeleteAppointment(ctx context.Context, id string) (bookingapi.DeleteResult, error)
}

// ValidationError rejects a booking before any network traffic.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CreateInput is a booking request as entered by the operator.
type CreateInput struct {
	Title     string
	Date      string // yyyy-mm-dd
	Time      string // HH:MM
	ContactID string
	Assignees []domain.Person
	Pattern   *domain.RecurrencePattern // nil for a single appointment
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return &ValidationError{Field: "date", Reason: "must be yyyy-mm-dd"}
	}
	if _, err := time.Parse("15:04", in.Time); err != nil {
		return &ValidationError{Field: "time", Reason: "must be HH:MM"}
	}
	if in.ContactID == "" {
		return &ValidationError{Field: "contact", Reason: "must be selected"}
	}
	if len(in.Assignees) == 0 {
		return &ValidationError{Field: "assignees", Reason: "at least one required"}
	}
	if in.Pattern != nil {
		if err := in.Pattern.Validate(); err != nil {
			return &ValidationError{Field: "recurrence", Reason: err.Error()}
		}
	}
	return nil
}

// AppointmentService drives the booking lifecycle: every outcome flows
// through the store so readers always see a consistent snapshot, and
// confirmed data is mirrored into local storage for offline loads.
type AppointmentService struct {
	api        BookingAPI
	store      *store.Store
	storage    *storage.Storage
	notify     *notify.Center
	sync       *CalendarSync
	locationID string
	loc        *time.Location
	log        zerolog.Logger
}

func NewAppointmentService(api BookingAPI, st *store.Store, db *storage.Storage,
	nc *notify.Center, sync *CalendarSync, locationID string, loc *time.Location,
	log zerolog.Logger) *AppointmentService {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentService{
		api:        api,
		store:      st,
		storage:    db,
		notify:     nc,
		sync:       sync,
		locationID: locationID,
		loc:        loc,
		log:        log,
	}
}

// Create books a single appointment or a recurring series. The backend
// expands recurring bookings; if it is unreachable the series is generated
// locally so the schedule stays usable offline.
func (s *AppointmentService) Create(ctx context.Context, in CreateInput) error {
	if err := in.validate(); err != nil {
		s.store.Dispatch(store.Rejected{Op: store.OpCreate, Err: err.Error()})
		return err
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.Time, s.loc)
	if err != nil {
		verr := &ValidationError{Field: "date", Reason: "does not form a valid timestamp"}
		s.store.Dispatch(store.Rejected{Op: store.OpCreate, Err: verr.Error()})
		return verr
	}

	s.store.Dispatch(store.Pending{Op: store.OpCreate})

	req := bookingapi.NewBookRequest(in.Title, start, s.locationID, in.ContactID, in.Assignees, in.Pattern)
	appts, err := s.api.Book(ctx, req)
	switch {
	case err == nil:
		s.store.Dispatch(store.AppointmentsCreated{Items: appts})
		if err := s.storage.UpsertAppointments(appts); err != nil {
			s.log.Warn().Err(err).Msg("cache booked appointments")
		}
		s.notify.Success("Booked", bookedSummary(in, len(appts)))
		s.pushToCalendar(ctx, appts, in.Pattern)
		return nil

	case isRemote(err):
		msg := remoteMessage(err)
		s.store.Dispatch(store.Rejected{Op: store.OpCreate, Err: msg})
		s.notify.Error("Booking failed", msg)
		return err

	case in.Pattern != nil && !isAuth(err):
		// Backend unreachable: expand the series locally so it shows up
		// in the schedule, to be reconciled on the next sync.
		base := recurrence.Base{
			Title:     in.Title,
			Start:     start,
			ContactID: in.ContactID,
			Assignees: in.Assignees,
		}
		local, expErr := recurrence.Expand(base, *in.Pattern)
		if expErr != nil {
			s.store.Dispatch(store.Rejected{Op: store.OpCreate, Err: expErr.Error()})
			return expErr
		}
		s.store.Dispatch(store.AppointmentsCreated{Items: local})
		if err := s.storage.UpsertAppointments(local); err != nil {
			s.log.Warn().Err(err).Msg("cache local series")
		}
		s.notify.Warning("Booked locally", "backend unreachable, series generated locally")
		s.log.Warn().Err(err).Msg("booking fell back to local expansion")
		return nil

	default:
		s.store.Dispatch(store.Rejected{Op: store.OpCreate, Err: "booking failed"})
		s.notify.Error("Booking failed", "could not reach the booking service")
		return err
	}
}

// Update applies a patch optimistically, then confirms it against local
// storage. A storage failure rolls the optimistic patch back.
func (s *AppointmentService) Update(ctx context.Context, id string, patch store.Patch) error {
	current, ok := s.store.Appointment(id)
	if !ok {
		return fmt.Errorf("appointment %s not found", id)
	}

	s.store.Dispatch(store.Pending{Op: store.OpUpdate})
	s.store.Dispatch(store.OptimisticUpdate{ID: id, Patch: patch})

	updated := patch.Apply(current)
	if err := s.storage.UpsertAppointments([]domain.Appointment{updated}); err != nil {
		s.store.Dispatch(store.Rejected{Op: store.OpUpdate, Err: err.Error()})
		s.notify.Error("Update failed", "change could not be saved")
		return fmt.Errorf("persist update: %w", err)
	}

	s.store.Dispatch(store.AppointmentUpdated{ID: id, Patch: patch})
	return nil
}

// Delete removes one appointment, server first.
func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	s.store.Dispatch(store.Pending{Op: store.OpDelete})

	res, err := s.api.DeleteAppointment(ctx, id)
	if err != nil {
		msg := remoteMessage(err)
		s.store.Dispatch(store.Rejected{Op: store.OpDelete, Err: msg})
		s.notify.Error("Delete failed", msg)
		return err
	}

	s.store.Dispatch(store.AppointmentDeleted{ID: id})
	if err := s.storage.DeleteAppointment(id); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("evict deleted appointment from cache")
	}
	s.removeFromCalendar(ctx, id)
	s.log.Debug().Str("id", res.ID).Str("provider_id", res.ProviderID).Msg("appointment deleted")
	s.notify.Success("Deleted", "appointment removed")
	return nil
}

// DeleteSeries removes a whole recurring group and all of its occurrences.
func (s *AppointmentService) DeleteSeries(ctx context.Context, groupID string) error {
	s.store.Dispatch(store.Pending{Op: store.OpDeleteSeries})

	if err := s.api.DeleteGroup(ctx, groupID); err != nil {
		msg := remoteMessage(err)
		s.store.Dispatch(store.Rejected{Op: store.OpDeleteSeries, Err: msg})
		s.notify.Error("Delete failed", msg)
		return err
	}

	s.store.Dispatch(store.SeriesDeleted{GroupID: groupID})
	if err := s.storage.DeleteSeries(groupID); err != nil {
		s.log.Warn().Err(err).Str("group_id", groupID).Msg("evict deleted series from cache")
	}
	s.notify.Success("Deleted", "recurring series removed")
	return nil
}

// Load restores the flat appointment list from local storage.
func (s *AppointmentService) Load(ctx context.Context) error {
	s.store.Dispatch(store.Pending{Op: store.OpLoad})

	appts, err := s.storage.ListAppointments()
	if err != nil {
		s.store.Dispatch(store.Rejected{Op: store.OpLoad, Err: err.Error()})
		return fmt.Errorf("load appointments: %w", err)
	}

	s.store.Dispatch(store.AppointmentsLoaded{Items: appts})
	return nil
}

// LoadGroups refreshes the server-side group list, falling back to the
// local cache when the backend is unreachable.
func (s *AppointmentService) LoadGroups(ctx context.Context) error {
	s.store.Dispatch(store.Pending{Op: store.OpLoadGroups})

	groups, err := s.api.ListGroups(ctx)
	if err != nil {
		cached, cacheErr := s.storage.ListGroups()
		if cacheErr != nil || len(cached) == 0 {
			msg := remoteMessage(err)
			s.store.Dispatch(store.Rejected{Op: store.OpLoadGroups, Err: msg})
			return err
		}
		s.store.Dispatch(store.GroupsLoaded{Items: cached})
		s.log.Warn().Err(err).Msg("groups served from cache")
		return nil
	}

	s.store.Dispatch(store.GroupsLoaded{Items: groups})
	if err := s.storage.ReplaceGroups(groups); err != nil {
		s.log.Warn().Err(err).Msg("cache groups")
	}
	return nil
}

// LoadGroupAppointments lazily fetches a group's occurrences, once per
// group. The server paginates; pages are walked until the authoritative
// count is satisfied.
func (s *AppointmentService) LoadGroupAppointments(ctx context.Context, groupID string) error {
	if s.store.GroupFetched(groupID) {
		return nil
	}

	var all []domain.Appointment
	total := 0
	for page := 1; ; page++ {
		items, count, err := s.api.ListGroupAppointments(ctx, groupID, page)
		if err != nil {
			return fmt.Errorf("fetch group %s page %d: %w", groupID, page, err)
		}
		if count > total {
			total = count
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			break
		}
	}

	s.store.Dispatch(store.OccurrencesLoaded{GroupID: groupID, Count: total, Items: all})
	if err := s.storage.UpsertAppointments(all); err != nil {
		s.log.Warn().Err(err).Str("group_id", groupID).Msg("cache group occurrences")
	}
	return nil
}

func (s *AppointmentService) pushToCalendar(ctx context.Context, appts []domain.Appointment, pattern *domain.RecurrencePattern) {
	if s.sync == nil || !s.sync.Configured() {
		return
	}
	if pattern != nil && len(appts) > 0 {
		if err := s.sync.PushSeries(ctx, appts[0], *pattern); err != nil {
			s.log.Warn().Err(err).Msg("calendar sync push series")
		}
		return
	}
	for _, a := range appts {
		if err := s.sync.PushAppointment(ctx, a); err != nil {
			s.log.Warn().Err(err).Str("id", a.ID).Msg("calendar sync push")
		}
	}
}

func (s *AppointmentService) removeFromCalendar(ctx context.Context, id string) {
	if s.sync == nil || !s.sync.Configured() {
		return
	}
	if err := s.sync.Remove(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("calendar sync remove")
	}
}

func bookedSummary(in CreateInput, n int) string {
	if in.Pattern == nil {
		return fmt.Sprintf("%s on %s at %s", in.Title, in.Date, in.Time)
	}
	return fmt.Sprintf("%s, %d occurrences", in.Title, n)
}

func isRemote(err error) bool {
	var re *bookingapi.RemoteError
	return errors.As(err, &re)
}

func isAuth(err error) bool {
	var ae *bookingapi.AuthError
	return errors.As(err, &ae)
}

// remoteMessage surfaces the server's own message when there is one and a
// generic fallback otherwise.
func remoteMessage(err error) string {
	var re *bookingapi.RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	var ae *bookingapi.AuthError
	if errors.As(err, &ae) {
		return "session expired, please log in again"
	}
	return "request failed"
}
