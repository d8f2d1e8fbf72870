// Package scheduler runs the agent's background jobs: appointment
// reminders, a morning digest and proactive token refresh.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/merridale/bookline/internal/auth"
	"github.com/merridale/bookline/internal/domain"
	"github.com/merridale/bookline/internal/notify"
	"github.com/merridale/bookline/internal/store"
)

// Refresher renews the access token before it expires.
type Refresher interface {
	ForceRefresh(ctx context.Context) error
}

// tokenRefreshLead is how close to expiry the access token may get before
// the scheduler renews it.
const tokenRefreshLead = 2 * time.Minute

type Scheduler struct {
	cron         *cron.Cron
	store        *store.Store
	notify       *notify.Center
	session      *auth.Session
	refresher    Refresher
	reminderLead time.Duration
	morningTime  string // HH:MM
	loc          *time.Location
	log          zerolog.Logger

	mu       sync.Mutex
	reminded map[string]bool
}

func New(st *store.Store, nc *notify.Center, session *auth.Session, refresher Refresher,
	reminderLead time.Duration, morningTime string, loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		store:        st,
		notify:       nc,
		session:      session,
		refresher:    refresher,
		reminderLead: reminderLead,
		morningTime:  morningTime,
		loc:          loc,
		log:          log,
		reminded:     make(map[string]bool),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	morningSpec, err := cronSpecFor(s.morningTime)
	if err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(morningSpec, s.morningDigest); err != nil {
		return fmt.Errorf("add morning digest: %w", err)
	}
	if _, err := s.cron.AddFunc("* * * * *", s.checkReminders); err != nil {
		return fmt.Errorf("add reminder check: %w", err)
	}
	if _, err := s.cron.AddFunc("* * * * *", func() { s.refreshTokenIfNeeded(ctx) }); err != nil {
		return fmt.Errorf("add token refresh: %w", err)
	}

	s.cron.Start()
	s.log.Info().Str("tz", s.loc.String()).Str("morning", s.morningTime).Msg("scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// checkReminders warns about appointments starting within the lead window.
// Each appointment is announced once.
func (s *Scheduler) checkReminders() {
	now := time.Now().In(s.loc)
	window := now.Add(s.reminderLead)

	// Ids still worth tracking: appointments that have not started yet.
	pending := make(map[string]bool)

	for _, a := range s.upcoming() {
		start := a.EffectiveStart()
		if start.IsZero() || start.Before(now) {
			continue
		}
		pending[a.ID] = true
		if start.After(window) {
			continue
		}

		s.mu.Lock()
		seen := s.reminded[a.ID]
		if !seen {
			s.reminded[a.ID] = true
		}
		s.mu.Unlock()
		if seen {
			continue
		}

		s.notify.Warning("Upcoming appointment",
			fmt.Sprintf("%s at %s", a.Title, start.In(s.loc).Format("15:04")))
		s.log.Debug().Str("id", a.ID).Time("start", start).Msg("reminder sent")
	}

	// Drop dedupe entries for appointments that have started or vanished,
	// so the set stays bounded over a long-running agent.
	s.mu.Lock()
	for id := range s.reminded {
		if !pending[id] {
			delete(s.reminded, id)
		}
	}
	s.mu.Unlock()
}

// morningDigest summarizes today's schedule.
func (s *Scheduler) morningDigest() {
	now := time.Now().In(s.loc)
	today := now.Format("2006-01-02")

	var lines []string
	for _, a := range s.upcoming() {
		start := a.EffectiveStart()
		if start.IsZero() || start.In(s.loc).Format("2006-01-02") != today {
			continue
		}
		if a.Status != domain.StatusScheduled {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s", start.In(s.loc).Format("15:04"), a.Title))
	}

	if len(lines) == 0 {
		s.notify.Info("Today", "no appointments scheduled")
		return
	}
	s.notify.Push(domain.SeverityInfo, fmt.Sprintf("Today: %d appointments", len(lines)),
		strings.Join(lines, "\n"), true)
}

func (s *Scheduler) refreshTokenIfNeeded(ctx context.Context) {
	if s.refresher == nil || !s.session.Authenticated() {
		return
	}
	if !s.session.ExpiresWithin(tokenRefreshLead) {
		return
	}
	if err := s.refresher.ForceRefresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("proactive token refresh failed")
		return
	}
	s.log.Debug().Msg("access token refreshed ahead of expiry")
}

// upcoming flattens the store's appointment view: the flat list plus every
// cached group occurrence.
func (s *Scheduler) upcoming() []domain.Appointment {
	state := s.store.State()
	out := append([]domain.Appointment(nil), state.Appointments...)
	for _, occ := range state.Occurrences {
		out = append(out, occ...)
	}
	return out
}

// cronSpecFor turns "HH:MM" into a daily cron spec.
func cronSpecFor(hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("parse morning time %q: %w", hhmm, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}
