package eventsync

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/factories"
	"github.com/chrisdamba/chowrider/internal/logger"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/realtime"
)

type fakeSource struct {
	mu       sync.Mutex
	handlers map[string][]realtime.Handler
}

func (f *fakeSource) On(event string, h realtime.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string][]realtime.Handler)
	}
	f.handlers[event] = append(f.handlers[event], h)
	idx := len(f.handlers[event]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[event][idx] = nil
	}
}

func (f *fakeSource) emit(event string, payload interface{}) {
	b, _ := json.Marshal(payload)
	f.mu.Lock()
	hs := append([]realtime.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			h(b)
		}
	}
}

func ids(t *testing.T, s cache.Snapshot) []string {
	t.Helper()
	orders, ok := cache.Value[[]models.RiderOrder](s)
	if !ok && s.Data != nil {
		t.Fatalf("unexpected data type %T", s.Data)
	}
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func setup(t *testing.T) (*cache.Cache, *Dispatcher, *fakeSource) {
	t.Helper()
	c := cache.New(logger.Discard())
	d := NewDispatcher(c, DefaultTable(), logger.Discard())
	src := &fakeSource{}
	d.Start(context.Background(), src)
	t.Cleanup(d.Stop)
	return c, d, src
}

func TestNewDeliveryPrependsOptimisticallyThenReconciles(t *testing.T) {
	c, d, src := setup(t)

	release := make(chan []models.RiderOrder, 1)
	var calls int32
	c.Register(cache.KeyAvailableOrders, func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return []models.RiderOrder{{ID: "a"}}, nil
		}
		return <-release, nil
	}, cache.Options{})
	if _, err := c.Fetch(context.Background(), cache.KeyAvailableOrders); err != nil {
		t.Fatal(err)
	}

	src.emit(models.EventNewDeliveryAvailable, models.NewDeliveryPayload{Type: "NEW_ORDER", Order: models.RiderOrder{ID: "b"}})
	s := c.Get(cache.KeyAvailableOrders)
	if got := ids(t, s); !equal(got, []string{"b", "a"}) {
		t.Fatalf("optimistic list = %v", got)
	}
	if s.Pending != 1 {
		t.Fatalf("pending = %d", s.Pending)
	}

	release <- []models.RiderOrder{{ID: "b"}, {ID: "a"}}
	d.Stop()

	s = c.Get(cache.KeyAvailableOrders)
	if got := ids(t, s); !equal(got, []string{"b", "a"}) {
		t.Fatalf("reconciled list = %v", got)
	}
	if s.Pending != 0 {
		t.Fatalf("patch not reconciled, pending = %d", s.Pending)
	}
}

func TestNewDeliveryIsDeduplicated(t *testing.T) {
	c, _, src := setup(t)
	c.Register(cache.KeyAvailableOrders, func(ctx context.Context) (interface{}, error) {
		return []models.RiderOrder{{ID: "a"}}, nil
	}, cache.Options{})

	payload := models.NewDeliveryPayload{Order: models.RiderOrder{ID: "a"}}
	src.emit(models.EventNewDeliveryAvailable, payload)
	src.emit(models.EventNewDeliveryAvailable, payload)

	if got := ids(t, c.Get(cache.KeyAvailableOrders)); !equal(got, []string{"a"}) {
		t.Fatalf("list = %v", got)
	}
}

func TestOrderTakenRemovesOrder(t *testing.T) {
	c, _, src := setup(t)
	c.Set(cache.KeyAvailableOrders, []models.RiderOrder{{ID: "a"}, {ID: "b"}})

	src.emit(models.EventOrderTaken, models.OrderRefPayload{OrderID: "a"})

	if got := ids(t, c.Get(cache.KeyAvailableOrders)); !equal(got, []string{"b"}) {
		t.Fatalf("list = %v", got)
	}
}

func TestEventsInvalidateTheirKeys(t *testing.T) {
	c, d, src := setup(t)

	var dashboard, active, earnings int32
	counter := func(n *int32) cache.Fetcher {
		return func(ctx context.Context) (interface{}, error) {
			atomic.AddInt32(n, 1)
			return "ok", nil
		}
	}
	c.Register(cache.KeyDispatcherDashboard, counter(&dashboard), cache.Options{})
	c.Register(cache.KeyActiveOrder, counter(&active), cache.Options{})
	c.Register(cache.KeyEarnings, counter(&earnings), cache.Options{})
	ctx := context.Background()
	c.Fetch(ctx, cache.KeyDispatcherDashboard)
	c.Fetch(ctx, cache.KeyActiveOrder)

	src.emit(models.EventOrderDelivered, models.OrderRefPayload{OrderID: "o1"})
	src.emit(models.EventNewDispatcherRequest, map[string]string{"orderId": "o2"})
	d.Stop()

	if n := atomic.LoadInt32(&dashboard); n != 3 {
		t.Errorf("dashboard fetched %d times, want 3", n)
	}
	if n := atomic.LoadInt32(&active); n != 2 {
		t.Errorf("active order fetched %d times, want 2", n)
	}
	if n := atomic.LoadInt32(&earnings); n != 0 {
		t.Errorf("earnings not in use but fetched %d times", n)
	}
}

func TestStopUnwiresTable(t *testing.T) {
	c, d, src := setup(t)
	var n int32
	c.Register(cache.KeyDispatcherDashboard, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&n, 1)
		return "ok", nil
	}, cache.Options{})
	c.Fetch(context.Background(), cache.KeyDispatcherDashboard)

	d.Stop()
	src.emit(models.EventOrderUpdated, models.OrderRefPayload{OrderID: "o1"})

	if got := atomic.LoadInt32(&n); got != 1 {
		t.Fatalf("fetched %d times after Stop", got)
	}
}

func TestObserverSeesEvents(t *testing.T) {
	_, d, src := setup(t)
	var seen []string
	var mu sync.Mutex
	off := d.Observe(func(event string, _ json.RawMessage) {
		mu.Lock()
		seen = append(seen, event)
		mu.Unlock()
	})

	src.emit(models.EventOrderUpdated, models.OrderRefPayload{OrderID: "o1"})
	off()
	src.emit(models.EventOrderUpdated, models.OrderRefPayload{OrderID: "o2"})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != models.EventOrderUpdated {
		t.Fatalf("seen = %v", seen)
	}
}

func TestLocationFeed(t *testing.T) {
	_, d, src := setup(t)
	feed := NewLocationFeed(logger.Discard())
	d.Observe(feed.Observe)

	ch, cancel := feed.Subscribe("o1")
	defer cancel()

	now := time.Now()
	src.emit(models.EventRiderMoved, models.RiderLocation{OrderID: "o2", Lat: 1, Lon: 1, Timestamp: now})
	src.emit(models.EventRiderMoved, models.RiderLocation{OrderID: "o1", Lat: 6.5, Lon: 3.3, Timestamp: now})
	src.emit(models.EventRiderMoved, models.RiderLocation{OrderID: "o1", Lat: 9, Lon: 9, Timestamp: now.Add(-time.Minute)})

	select {
	case loc := <-ch:
		if loc.Lat != 6.5 || loc.Lon != 3.3 {
			t.Fatalf("got %+v", loc)
		}
	default:
		t.Fatal("no location delivered")
	}
	select {
	case loc := <-ch:
		t.Fatalf("out-of-order position delivered: %+v", loc)
	default:
	}

	late, lateCancel := feed.Subscribe("o1")
	defer lateCancel()
	if loc := <-late; loc.Lat != 6.5 {
		t.Fatalf("late subscriber got %+v", loc)
	}

	src.emit(models.EventOrderDelivered, models.OrderRefPayload{OrderID: "o1"})
	if _, ok := feed.Last("o1"); ok {
		t.Fatal("position kept after delivery")
	}
}

func TestLocationFeedKeepsNewestSample(t *testing.T) {
	_, d, src := setup(t)
	feed := NewLocationFeed(logger.Discard())
	d.Observe(feed.Observe)

	df := &factories.DeliveryPartnerFactory{}
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	samples := []models.RiderLocation{
		df.CreateRiderLocation("o7", base.Add(2*time.Second)),
		df.CreateRiderLocation("o7", base),
		df.CreateRiderLocation("o7", base.Add(time.Second)),
	}
	for _, s := range samples {
		src.emit(models.EventRiderMoved, s)
	}

	last, ok := feed.Last("o7")
	if !ok {
		t.Fatal("no position kept")
	}
	if !last.Timestamp.Equal(samples[0].Timestamp) || last.Lat != samples[0].Lat {
		t.Fatalf("last = %+v, want %+v", last, samples[0])
	}
}
