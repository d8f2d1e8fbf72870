package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/merridale/bookline/internal/domain"
	"github.com/merridale/bookline/internal/store"
)

// SearchAPI is the lookup surface used while filling a booking form.
type SearchAPI interface {
	SearchContacts(ctx context.Context, query string) ([]domain.Contact, error)
	SearchPeople(ctx context.Context, query string) ([]domain.Person, error)
}

const (
	DefaultDebounce = 300 * time.Millisecond
	minQueryLength  = 2
)

// Searcher debounces typeahead queries and discards stale responses. Each
// field carries a monotonically increasing sequence; only the response
// matching the latest issued sequence may touch the store, so a slow early
// response can never overwrite a newer one.
type Searcher struct {
	api      SearchAPI
	store    *store.Store
	debounce time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	timers   map[store.Op]*time.Timer
	sequence map[store.Op]uint64
}

func NewSearcher(api SearchAPI, st *store.Store, debounce time.Duration, log zerolog.Logger) *Searcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Searcher{
		api:      api,
		store:    st,
		debounce: debounce,
		log:      log,
		timers:   make(map[store.Op]*time.Timer),
		sequence: make(map[store.Op]uint64),
	}
}

// QueryContacts schedules a debounced contact search. Queries shorter than
// the minimum clear the result list immediately.
func (s *Searcher) QueryContacts(ctx context.Context, query string) {
	s.schedule(ctx, store.OpSearchContacts, query, func(ctx context.Context, q string, seq uint64) {
		results, err := s.api.SearchContacts(ctx, q)
		s.deliver(store.OpSearchContacts, seq, err, func() {
			s.store.Dispatch(store.ContactsLoaded{Items: results})
		})
	})
}

// QueryPeople schedules a debounced assignee search.
func (s *Searcher) QueryPeople(ctx context.Context, query string) {
	s.schedule(ctx, store.OpSearchPeople, query, func(ctx context.Context, q string, seq uint64) {
		results, err := s.api.SearchPeople(ctx, q)
		s.deliver(store.OpSearchPeople, seq, err, func() {
			s.store.Dispatch(store.PeopleLoaded{Items: results})
		})
	})
}

func (s *Searcher) schedule(ctx context.Context, op store.Op, query string, run func(context.Context, string, uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[op]; ok {
		t.Stop()
	}

	s.sequence[op]++
	seq := s.sequence[op]

	if len(query) < minQueryLength {
		delete(s.timers, op)
		s.clear(op)
		return
	}

	s.timers[op] = time.AfterFunc(s.debounce, func() {
		s.store.Dispatch(store.Pending{Op: op})
		run(ctx, query, seq)
	})
}

// deliver applies a response only if no newer query has been issued since.
func (s *Searcher) deliver(op store.Op, seq uint64, err error, apply func()) {
	s.mu.Lock()
	stale := seq != s.sequence[op]
	s.mu.Unlock()

	if stale {
		s.log.Debug().Str("op", string(op)).Uint64("seq", seq).Msg("discarding superseded search response")
		return
	}
	if err != nil {
		s.store.Dispatch(store.Rejected{Op: op, Err: remoteMessage(err)})
		return
	}
	apply()
}

func (s *Searcher) clear(op store.Op) {
	switch op {
	case store.OpSearchContacts:
		s.store.Dispatch(store.ContactsLoaded{Items: nil})
	case store.OpSearchPeople:
		s.store.Dispatch(store.PeopleLoaded{Items: nil})
	}
}

// Flush cancels pending queries; used on form close.
func (s *Searcher) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for op, t := range s.timers {
		t.Stop()
		delete(s.timers, op)
	}
}
