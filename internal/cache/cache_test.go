package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chrisdamba/chowrider/internal/logger"
)

// gatedFetcher returns values in the order the test releases them.
type gatedFetcher struct {
	mu    sync.Mutex
	calls int
	gates []chan string
}

func newGatedFetcher(n int) *gatedFetcher {
	g := &gatedFetcher{}
	for i := 0; i < n; i++ {
		g.gates = append(g.gates, make(chan string))
	}
	return g
}

func (g *gatedFetcher) fetch(ctx context.Context) (interface{}, error) {
	g.mu.Lock()
	gate := g.gates[g.calls]
	g.calls++
	g.mu.Unlock()
	return <-gate, nil
}

func waitForStatus(t *testing.T, c *Cache, key Key, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Get(key).Status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("status of %s never became %s (got %s)", key, want, c.Get(key).Status)
}

func TestStaleResponseDoesNotOverwriteFresher(t *testing.T) {
	c := New(logger.Discard())
	g := newGatedFetcher(2)
	c.Register(KeyDispatcherDashboard, g.fetch, Options{})

	first := make(chan Snapshot)
	go func() {
		s, _ := c.Fetch(context.Background(), KeyDispatcherDashboard)
		first <- s
	}()
	waitForStatus(t, c, KeyDispatcherDashboard, StatusLoading)

	second := make(chan Snapshot)
	go func() {
		s, _ := c.Fetch(context.Background(), KeyDispatcherDashboard)
		second <- s
	}()
	for {
		g.mu.Lock()
		n := g.calls
		g.mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// The later fetch resolves first.
	g.gates[1] <- "fresh"
	if s := <-second; s.Data != "fresh" {
		t.Fatalf("second fetch data = %v", s.Data)
	}
	g.gates[0] <- "stale"
	if s := <-first; s.Data != "fresh" {
		t.Fatalf("stale response leaked into snapshot: %v", s.Data)
	}
	if got := c.Get(KeyDispatcherDashboard).Data; got != "fresh" {
		t.Fatalf("cached data = %v, want fresh", got)
	}
}

func TestLoadingThenRefetching(t *testing.T) {
	c := New(logger.Discard())
	g := newGatedFetcher(2)
	c.Register(KeyEarnings, g.fetch, Options{})

	if s := c.Get(KeyEarnings); s.Status != StatusIdle {
		t.Fatalf("initial status = %s", s.Status)
	}

	done := make(chan struct{})
	go func() { c.Fetch(context.Background(), KeyEarnings); close(done) }()
	waitForStatus(t, c, KeyEarnings, StatusLoading)
	g.gates[0] <- "v1"
	<-done

	done = make(chan struct{})
	go func() { c.Fetch(context.Background(), KeyEarnings); close(done) }()
	waitForStatus(t, c, KeyEarnings, StatusRefetching)
	if s := c.Get(KeyEarnings); s.Data != "v1" {
		t.Errorf("data during refetch = %v, want v1", s.Data)
	}
	g.gates[1] <- "v2"
	<-done

	s := c.Get(KeyEarnings)
	if s.Status != StatusSuccess || s.Data != "v2" {
		t.Fatalf("final snapshot = %+v", s)
	}
}

func TestFetchErrorKeepsLastValue(t *testing.T) {
	c := New(logger.Discard())
	fail := false
	c.Register(KeyBanks, func(ctx context.Context) (interface{}, error) {
		if fail {
			return nil, errors.New("network down")
		}
		return []string{"GTBank"}, nil
	}, Options{})

	if _, err := c.Fetch(context.Background(), KeyBanks); err != nil {
		t.Fatal(err)
	}
	fail = true
	s, err := c.Fetch(context.Background(), KeyBanks)
	if err == nil {
		t.Fatal("expected error")
	}
	if s.Status != StatusError || s.Err == nil {
		t.Errorf("status = %s err = %v", s.Status, s.Err)
	}
	if banks, ok := Value[[]string](s); !ok || len(banks) != 1 {
		t.Errorf("last good value lost: %v", s.Data)
	}
}

func TestPatchReconciledByLaterFetch(t *testing.T) {
	c := New(logger.Discard())
	server := []string{"a"}
	c.Register(KeyAvailableOrders, func(ctx context.Context) (interface{}, error) {
		return append([]string(nil), server...), nil
	}, Options{})
	if _, err := c.Fetch(context.Background(), KeyAvailableOrders); err != nil {
		t.Fatal(err)
	}

	c.Patch(KeyAvailableOrders, func(cur interface{}) interface{} {
		list, _ := cur.([]string)
		return append([]string{"b"}, list...)
	})
	s := c.Get(KeyAvailableOrders)
	if list, _ := Value[[]string](s); len(list) != 2 || s.Pending != 1 {
		t.Fatalf("patched view = %v pending=%d", s.Data, s.Pending)
	}

	server = []string{"b", "a"}
	s, err := c.Fetch(context.Background(), KeyAvailableOrders)
	if err != nil {
		t.Fatal(err)
	}
	list, _ := Value[[]string](s)
	if len(list) != 2 || s.Pending != 0 {
		t.Fatalf("after reconcile view = %v pending=%d (patch must not double-apply)", list, s.Pending)
	}
}

func TestPatchSurvivesFetchStartedBeforeIt(t *testing.T) {
	c := New(logger.Discard())
	g := newGatedFetcher(1)
	c.Register(KeyAvailableOrders, g.fetch, Options{})

	done := make(chan struct{})
	go func() { c.Fetch(context.Background(), KeyAvailableOrders); close(done) }()
	waitForStatus(t, c, KeyAvailableOrders, StatusLoading)

	c.Patch(KeyAvailableOrders, func(cur interface{}) interface{} { return "patched" })
	g.gates[0] <- "server"
	<-done

	s := c.Get(KeyAvailableOrders)
	if s.Data != "patched" || s.Pending != 1 {
		t.Fatalf("patch recorded after fetch start must survive it: %+v", s)
	}
}

func TestRollback(t *testing.T) {
	c := New(logger.Discard())
	c.Register(KeyActiveOrder, func(ctx context.Context) (interface{}, error) { return "server", nil }, Options{})
	c.Fetch(context.Background(), KeyActiveOrder)

	id := c.Patch(KeyActiveOrder, func(interface{}) interface{} { return "optimistic" })
	if c.Get(KeyActiveOrder).Data != "optimistic" {
		t.Fatal("patch not applied")
	}
	c.Rollback(KeyActiveOrder, id)
	if s := c.Get(KeyActiveOrder); s.Data != "server" || s.Pending != 0 {
		t.Fatalf("after rollback = %+v", s)
	}
}

func TestSubscribeReceivesLatest(t *testing.T) {
	c := New(logger.Discard())
	n := 0
	c.Register(KeyHistory, func(ctx context.Context) (interface{}, error) { n++; return n, nil }, Options{})

	ch, cancel := c.Subscribe(KeyHistory)
	if s := <-ch; s.Status != StatusIdle {
		t.Fatalf("first snapshot status = %s", s.Status)
	}

	c.Fetch(context.Background(), KeyHistory)
	c.Fetch(context.Background(), KeyHistory)

	// Only the newest undelivered snapshot is kept.
	s := <-ch
	if s.Data != 2 {
		t.Fatalf("subscriber got %v, want 2", s.Data)
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
}

func TestEnsureHonoursStaleTime(t *testing.T) {
	c := New(logger.Discard())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	calls := 0
	c.Register(KeyBanks, func(ctx context.Context) (interface{}, error) { calls++; return calls, nil }, Options{StaleTime: 24 * time.Hour})

	c.Ensure(context.Background(), KeyBanks)
	c.Ensure(context.Background(), KeyBanks)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 while fresh", calls)
	}
	now = now.Add(25 * time.Hour)
	c.Ensure(context.Background(), KeyBanks)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 after stale", calls)
	}
}

func TestInvalidateSkipsUnusedKeys(t *testing.T) {
	c := New(logger.Discard())
	var mu sync.Mutex
	calls := map[Key]int{}
	fetch := func(k Key) Fetcher {
		return func(ctx context.Context) (interface{}, error) {
			mu.Lock()
			calls[k]++
			mu.Unlock()
			return k, nil
		}
	}
	c.Register(KeyDispatcherDashboard, fetch(KeyDispatcherDashboard), Options{})
	c.Register(KeyEarnings, fetch(KeyEarnings), Options{})
	c.Fetch(context.Background(), KeyDispatcherDashboard)

	c.Invalidate(context.Background(), KeyDispatcherDashboard, KeyEarnings)
	if calls[KeyDispatcherDashboard] != 2 {
		t.Errorf("dashboard fetched %d times, want 2", calls[KeyDispatcherDashboard])
	}
	if calls[KeyEarnings] != 0 {
		t.Errorf("unused key fetched %d times", calls[KeyEarnings])
	}
}

func TestClearDropsInFlightResponse(t *testing.T) {
	c := New(logger.Discard())
	g := newGatedFetcher(1)
	c.Register(KeyCurrentUser, g.fetch, Options{})

	done := make(chan struct{})
	go func() { c.Fetch(context.Background(), KeyCurrentUser); close(done) }()
	waitForStatus(t, c, KeyCurrentUser, StatusLoading)
	c.Clear()
	g.gates[0] <- "previous-session-user"
	<-done

	if s := c.Get(KeyCurrentUser); s.Data != nil {
		t.Fatalf("response from before Clear was applied: %v", s.Data)
	}
}

func TestFetchUnregistered(t *testing.T) {
	c := New(logger.Discard())
	if _, err := c.Fetch(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unregistered key")
	}
}

func TestPolling(t *testing.T) {
	c := New(logger.Discard())
	var mu sync.Mutex
	calls := 0
	c.Register(KeyAvailableOrders, func(ctx context.Context) (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return calls, nil
	}, Options{RefetchInterval: 5 * time.Millisecond})
	c.Fetch(context.Background(), KeyAvailableOrders)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartPolling(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 3 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("polling did not refetch")
}

func TestSetDiscardsInFlightFetch(t *testing.T) {
	c := New(logger.Discard())
	g := newGatedFetcher(1)
	c.Register(KeyCurrentUser, g.fetch, Options{})

	done := make(chan Snapshot)
	go func() {
		s, _ := c.Fetch(context.Background(), KeyCurrentUser)
		done <- s
	}()
	waitForStatus(t, c, KeyCurrentUser, StatusLoading)

	c.Set(KeyCurrentUser, "from-login")
	g.gates[0] <- "from-profile"
	<-done

	if got := c.Get(KeyCurrentUser).Data; got != "from-login" {
		t.Fatalf("data = %v, want from-login", got)
	}
}
