package eventsync

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chrisdamba/chowrider/internal/models"
)

// LocationFeed fans rider-moved updates out to watchers of an order. Register
// its Observe method on a Dispatcher.
type LocationFeed struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	subs   map[string]map[int]chan models.RiderLocation
	last   map[string]models.RiderLocation
	nextID int
}

func NewLocationFeed(logger *slog.Logger) *LocationFeed {
	return &LocationFeed{
		logger: logger,
		now:    time.Now,
		subs:   make(map[string]map[int]chan models.RiderLocation),
		last:   make(map[string]models.RiderLocation),
	}
}

func (f *LocationFeed) Observe(event string, payload json.RawMessage) {
	switch event {
	case models.EventRiderMoved:
	case models.EventOrderDelivered:
		var ref models.OrderRefPayload
		if json.Unmarshal(payload, &ref) == nil && ref.OrderID != "" {
			f.Forget(ref.OrderID)
		}
		return
	default:
		return
	}
	var loc models.RiderLocation
	if err := json.Unmarshal(payload, &loc); err != nil {
		f.logger.Warn("bad rider-moved payload", "error", err)
		return
	}
	if loc.OrderID == "" {
		return
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.last[loc.OrderID]; ok && loc.Timestamp.Before(prev.Timestamp) {
		return
	}
	f.last[loc.OrderID] = loc
	for _, ch := range f.subs[loc.OrderID] {
		select {
		case <-ch:
		default:
		}
		ch <- loc
	}
}

// Subscribe watches one order. The channel holds only the newest position;
// the last known one, if any, is delivered straight away.
func (f *LocationFeed) Subscribe(orderID string) (<-chan models.RiderLocation, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	ch := make(chan models.RiderLocation, 1)
	if f.subs[orderID] == nil {
		f.subs[orderID] = make(map[int]chan models.RiderLocation)
	}
	f.subs[orderID][id] = ch
	if loc, ok := f.last[orderID]; ok {
		ch <- loc
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[orderID][id]; ok {
				delete(f.subs[orderID], id)
				close(sub)
			}
			if len(f.subs[orderID]) == 0 {
				delete(f.subs, orderID)
			}
		})
	}
}

func (f *LocationFeed) Last(orderID string) (models.RiderLocation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.last[orderID]
	return loc, ok
}

// Forget drops the last known position of an order, once it is delivered.
func (f *LocationFeed) Forget(orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.last, orderID)
}
