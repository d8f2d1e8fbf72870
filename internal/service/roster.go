package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/merridale/bookline/internal/domain"
	"github.com/merridale/bookline/internal/notify"
	"github.com/merridale/bookline/internal/storage"
	"github.com/merridale/bookline/internal/store"
)

// RosterAPI is the backend surface for user and calendar management.
type RosterAPI interface {
	CalendarStats(ctx context.Context) ([]domain.User, error)
	UpdateUserCalendar(ctx context.Context, userID, calendarID string) error
}

// RosterService maintains the user list and their calendar bindings.
type RosterService struct {
	api     RosterAPI
	store   *store.Store
	storage *storage.Storage
	notify  *notify.Center
	log     zerolog.Logger
}

func NewRosterService(api RosterAPI, st *store.Store, db *storage.Storage,
	nc *notify.Center, log zerolog.Logger) *RosterService {
	return &RosterService{api: api, store: st, storage: db, notify: nc, log: log}
}

// LoadUsers refreshes the roster from the calendar stats endpoint, falling
// back to the local cache when the backend is unreachable.
func (s *RosterService) LoadUsers(ctx context.Context) error {
	s.store.Dispatch(store.Pending{Op: store.OpLoadUsers})

	users, err := s.api.CalendarStats(ctx)
	if err != nil {
		cached, cacheErr := s.storage.ListUsers()
		if cacheErr != nil || len(cached) == 0 {
			s.store.Dispatch(store.Rejected{Op: store.OpLoadUsers, Err: remoteMessage(err)})
			return err
		}
		s.store.Dispatch(store.UsersLoaded{Items: cached})
		s.log.Warn().Err(err).Msg("roster served from cache")
		return nil
	}

	s.store.Dispatch(store.UsersLoaded{Items: users})
	if err := s.storage.ReplaceUsers(users); err != nil {
		s.log.Warn().Err(err).Msg("cache roster")
	}
	return nil
}

// UpdateCalendar binds a user to a calendar, or clears the binding when
// calendarID is empty.
func (s *RosterService) UpdateCalendar(ctx context.Context, userID, calendarID string) error {
	s.store.Dispatch(store.Pending{Op: store.OpUpdateCalendar})

	if err := s.api.UpdateUserCalendar(ctx, userID, calendarID); err != nil {
		msg := remoteMessage(err)
		s.store.Dispatch(store.Rejected{Op: store.OpUpdateCalendar, Err: msg})
		s.notify.Error("Calendar update failed", msg)
		return err
	}

	s.store.Dispatch(store.UserCalendarUpdated{UserID: userID, CalendarID: calendarID})

	var ptr *string
	if calendarID != "" {
		ptr = &calendarID
	}
	if err := s.storage.SetUserCalendar(userID, ptr); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("cache calendar binding")
	}

	if calendarID == "" {
		s.notify.Success("Calendar unlinked", fmt.Sprintf("user %s has no calendar", userID))
	} else {
		s.notify.Success("Calendar linked", fmt.Sprintf("user %s bound to %s", userID, calendarID))
	}
	return nil
}
