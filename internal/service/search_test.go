package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/merridale/bookline/internal/domain"
	"github.com/merridale/bookline/internal/store"
)

type fakeSearchAPI struct {
	mu       sync.Mutex
	queries  []string
	blockers map[string]chan struct{}
}

func newFakeSearchAPI() *fakeSearchAPI {
	return &fakeSearchAPI{blockers: make(map[string]chan struct{})}
}

// blockQuery makes the given query hang until the returned channel closes.
func (f *fakeSearchAPI) blockQuery(q string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.blockers[q] = ch
	return ch
}

func (f *fakeSearchAPI) SearchContacts(ctx context.Context, query string) ([]domain.Contact, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	blocker := f.blockers[query]
	f.mu.Unlock()
	if blocker != nil {
		<-blocker
	}
	return []domain.Contact{{ID: "c-" + query, Name: query}}, nil
}

func (f *fakeSearchAPI) SearchPeople(ctx context.Context, query string) ([]domain.Person, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return []domain.Person{{UserID: "u-" + query, Name: query}}, nil
}

func (f *fakeSearchAPI) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDebounceCoalescesKeystrokes(t *testing.T) {
	t.Parallel()

	api := newFakeSearchAPI()
	st := store.New()
	s := NewSearcher(api, st, 30*time.Millisecond, zerolog.Nop())

	ctx := context.Background()
	s.QueryContacts(ctx, "sm")
	s.QueryContacts(ctx, "smi")
	s.QueryContacts(ctx, "smit")
	s.QueryContacts(ctx, "smith")

	waitFor(t, func() bool { return len(st.State().Contacts) > 0 })
	if got := api.queryCount(); got != 1 {
		t.Fatalf("api calls = %d, want 1 (debounced)", got)
	}
	if got := st.State().Contacts; len(got) != 1 || got[0].Name != "smith" {
		t.Fatalf("contacts = %+v", got)
	}
}

func TestShortQueryClearsResults(t *testing.T) {
	t.Parallel()

	api := newFakeSearchAPI()
	st := store.New()
	s := NewSearcher(api, st, 5*time.Millisecond, zerolog.Nop())

	ctx := context.Background()
	s.QueryContacts(ctx, "smith")
	waitFor(t, func() bool { return len(st.State().Contacts) > 0 })

	s.QueryContacts(ctx, "s")
	waitFor(t, func() bool { return len(st.State().Contacts) == 0 })
	if got := api.queryCount(); got != 1 {
		t.Fatalf("api calls = %d, short query must not hit the network", got)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	t.Parallel()

	api := newFakeSearchAPI()
	st := store.New()
	s := NewSearcher(api, st, 5*time.Millisecond, zerolog.Nop())

	ctx := context.Background()
	release := api.blockQuery("al")

	s.QueryContacts(ctx, "al")
	waitFor(t, func() bool { return api.queryCount() == 1 })

	// A newer query completes while the old one is still in flight.
	s.QueryContacts(ctx, "alice")
	waitFor(t, func() bool {
		got := st.State().Contacts
		return len(got) == 1 && got[0].Name == "alice"
	})

	// Releasing the stale response must not overwrite the newer result.
	close(release)
	time.Sleep(30 * time.Millisecond)
	if got := st.State().Contacts; len(got) != 1 || got[0].Name != "alice" {
		t.Fatalf("stale response overwrote results: %+v", got)
	}
}

func TestPeopleAndContactSequencesAreIndependent(t *testing.T) {
	t.Parallel()

	api := newFakeSearchAPI()
	st := store.New()
	s := NewSearcher(api, st, 5*time.Millisecond, zerolog.Nop())

	ctx := context.Background()
	s.QueryContacts(ctx, "smith")
	s.QueryPeople(ctx, "alice")

	waitFor(t, func() bool {
		state := st.State()
		return len(state.Contacts) == 1 && len(state.People) == 1
	})
	state := st.State()
	if state.Contacts[0].Name != "smith" || state.People[0].Name != "alice" {
		t.Fatalf("contacts = %+v, people = %+v", state.Contacts, state.People)
	}
}

func TestFlushCancelsPending(t *testing.T) {
	t.Parallel()

	api := newFakeSearchAPI()
	st := store.New()
	s := NewSearcher(api, st, 50*time.Millisecond, zerolog.Nop())

	s.QueryContacts(context.Background(), "smith")
	s.Flush()

	time.Sleep(120 * time.Millisecond)
	if got := api.queryCount(); got != 0 {
		t.Fatalf("api calls = %d, want 0 after flush", got)
	}
}
