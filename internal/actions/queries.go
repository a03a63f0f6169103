package actions

import (
	"context"
	"sync"
	"time"

	"github.com/chrisdamba/chowrider/internal/api"
	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/models"
)

// RiderAPI is the rider side of the backend.
type RiderAPI interface {
	AvailableOrders(ctx context.Context) ([]models.RiderOrder, error)
	ActiveOrder(ctx context.Context) (*models.RiderOrder, error)
	AcceptOrder(ctx context.Context, orderID string, opts ...api.RequestOption) (*models.RiderOrder, error)
	RejectOrder(ctx context.Context, orderID, reason string, opts ...api.RequestOption) (*models.RiderOrder, error)
	ConfirmPickup(ctx context.Context, orderID string, opts ...api.RequestOption) (*models.RiderOrder, error)
	ConfirmDelivery(ctx context.Context, orderID, code string, opts ...api.RequestOption) (*models.RiderOrder, error)
	Earnings(ctx context.Context) (*models.Earnings, error)
	RequestPayout(ctx context.Context, req models.PayoutRequest, opts ...api.RequestOption) (*models.PayoutResponse, error)
	Banks(ctx context.Context) ([]models.Bank, error)
	History(ctx context.Context) ([]models.RiderOrder, error)
	UpdateStatus(ctx context.Context, online bool, opts ...api.RequestOption) (*models.StatusResponse, error)
}

const (
	availableRefetchInterval = 10 * time.Second
	banksStaleTime           = 24 * time.Hour
	// takenTTL bounds how long a claimed order is kept out of the available
	// list regardless of what the backend returns.
	takenTTL = 10 * time.Minute
)

// RiderQueries owns the rider cache entries.
type RiderQueries struct {
	cache *cache.Cache
	now   func() time.Time

	mu    sync.Mutex
	taken map[string]time.Time
}

// RegisterRiderQueries registers every rider query on c.
func RegisterRiderQueries(c *cache.Cache, rider RiderAPI) *RiderQueries {
	q := &RiderQueries{cache: c, now: time.Now, taken: make(map[string]time.Time)}

	c.Register(cache.KeyAvailableOrders, func(ctx context.Context) (interface{}, error) {
		orders, err := rider.AvailableOrders(ctx)
		if err != nil {
			return nil, err
		}
		return q.withoutTaken(orders), nil
	}, cache.Options{RefetchInterval: availableRefetchInterval})

	c.Register(cache.KeyActiveOrder, func(ctx context.Context) (interface{}, error) {
		order, err := rider.ActiveOrder(ctx)
		if err != nil || order == nil {
			return nil, err
		}
		return order, nil
	}, cache.Options{})

	c.Register(cache.KeyEarnings, func(ctx context.Context) (interface{}, error) {
		e, err := rider.Earnings(ctx)
		if err != nil {
			return nil, err
		}
		return e, nil
	}, cache.Options{})

	c.Register(cache.KeyHistory, func(ctx context.Context) (interface{}, error) {
		h, err := rider.History(ctx)
		if err != nil {
			return nil, err
		}
		return h, nil
	}, cache.Options{})

	c.Register(cache.KeyBanks, func(ctx context.Context) (interface{}, error) {
		b, err := rider.Banks(ctx)
		if err != nil {
			return nil, err
		}
		return b, nil
	}, cache.Options{StaleTime: banksStaleTime})

	return q
}

// exclude keeps id out of the available list for takenTTL.
func (q *RiderQueries) exclude(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.taken[id] = q.now()
}

func (q *RiderQueries) withoutTaken(orders []models.RiderOrder) []models.RiderOrder {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for id, at := range q.taken {
		if now.Sub(at) > takenTTL {
			delete(q.taken, id)
		}
	}
	out := make([]models.RiderOrder, 0, len(orders))
	for _, o := range orders {
		if _, gone := q.taken[o.ID]; !gone {
			out = append(out, o)
		}
	}
	return out
}

func (q *RiderQueries) AvailableOrders(ctx context.Context) ([]models.RiderOrder, error) {
	snap, err := q.cache.Ensure(ctx, cache.KeyAvailableOrders)
	if err != nil {
		return nil, err
	}
	orders, _ := cache.Value[[]models.RiderOrder](snap)
	return orders, nil
}

// ActiveOrder returns nil when the rider has no order in progress.
func (q *RiderQueries) ActiveOrder(ctx context.Context) (*models.RiderOrder, error) {
	snap, err := q.cache.Ensure(ctx, cache.KeyActiveOrder)
	if err != nil {
		return nil, err
	}
	order, _ := cache.Value[*models.RiderOrder](snap)
	return order, nil
}

func (q *RiderQueries) Earnings(ctx context.Context) (*models.Earnings, error) {
	snap, err := q.cache.Ensure(ctx, cache.KeyEarnings)
	if err != nil {
		return nil, err
	}
	e, _ := cache.Value[*models.Earnings](snap)
	return e, nil
}

func (q *RiderQueries) History(ctx context.Context) ([]models.RiderOrder, error) {
	snap, err := q.cache.Ensure(ctx, cache.KeyHistory)
	if err != nil {
		return nil, err
	}
	h, _ := cache.Value[[]models.RiderOrder](snap)
	return h, nil
}

func (q *RiderQueries) Banks(ctx context.Context) ([]models.Bank, error) {
	snap, err := q.cache.Ensure(ctx, cache.KeyBanks)
	if err != nil {
		return nil, err
	}
	b, _ := cache.Value[[]models.Bank](snap)
	return b, nil
}
