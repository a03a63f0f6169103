// Package dashboard keeps the dispatcher dashboard in the query cache fresh
// and derives the views screens show from that one cached value.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/models"
)

var ErrNoTrackingID = errors.New("dashboard: order has no tracking id yet")

type Tab string

const (
	TabRequests Tab = "requests"
	TabActive   Tab = "active"
)

// API is the slice of the backend the dashboard reads.
type API interface {
	Dashboard(ctx context.Context) (*models.DashboardData, error)
	DispatcherWallet(ctx context.Context) (*models.WalletData, error)
}

const walletRefetchInterval = 60 * time.Second

// View is one rendering of the dashboard.
type View struct {
	Data       *models.DashboardData
	Err        error
	Loading    bool
	Refetching bool
	UpdatedAt  time.Time
}

func viewOf(s cache.Snapshot) View {
	data, _ := cache.Value[*models.DashboardData](s)
	return View{
		Data:       data,
		Err:        s.Err,
		Loading:    s.Loading(),
		Refetching: s.Refetching(),
		UpdatedAt:  s.UpdatedAt,
	}
}

// Requests lists orders still waiting for the dispatcher, newest backend
// order preserved and duplicates dropped.
func (v View) Requests() []models.DispatcherOrderRequest {
	return v.filter(func(o models.DispatcherOrderRequest) bool { return o.IsRequest() })
}

// ActiveTrips lists accepted orders, the ones with a tracking id.
func (v View) ActiveTrips() []models.DispatcherOrderRequest {
	return v.filter(func(o models.DispatcherOrderRequest) bool { return !o.IsRequest() })
}

func (v View) Tab(tab Tab) []models.DispatcherOrderRequest {
	if tab == TabActive {
		return v.ActiveTrips()
	}
	return v.Requests()
}

func (v View) filter(keep func(models.DispatcherOrderRequest) bool) []models.DispatcherOrderRequest {
	if v.Data == nil {
		return nil
	}
	seen := make(map[string]bool, len(v.Data.Requests))
	var out []models.DispatcherOrderRequest
	for _, o := range v.Data.Requests {
		if seen[o.ID] || !keep(o) {
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	return out
}

// Synchronizer owns the dispatcher-dashboard cache entry.
type Synchronizer struct {
	cache        *cache.Cache
	trackingBase string
	logger       *slog.Logger
}

// New registers the dashboard and wallet queries on c.
func New(c *cache.Cache, api API, trackingBaseURL string, logger *slog.Logger) *Synchronizer {
	c.Register(cache.KeyDispatcherDashboard, func(ctx context.Context) (interface{}, error) {
		d, err := api.Dashboard(ctx)
		if err != nil {
			return nil, err
		}
		return d, nil
	}, cache.Options{})
	c.Register(cache.KeyDispatcherWallet, func(ctx context.Context) (interface{}, error) {
		w, err := api.DispatcherWallet(ctx)
		if err != nil {
			return nil, err
		}
		return w, nil
	}, cache.Options{RefetchInterval: walletRefetchInterval})

	return &Synchronizer{
		cache:        c,
		trackingBase: strings.TrimRight(trackingBaseURL, "/"),
		logger:       logger,
	}
}

// Mount loads the dashboard the first time a screen shows it.
func (s *Synchronizer) Mount(ctx context.Context) (View, error) {
	snap, err := s.cache.Ensure(ctx, cache.KeyDispatcherDashboard)
	return viewOf(snap), err
}

// Focus refetches when the screen comes back into view.
func (s *Synchronizer) Focus(ctx context.Context) (View, error) {
	return s.fetch(ctx, "focus")
}

// Refresh is the pull-to-refresh trigger.
func (s *Synchronizer) Refresh(ctx context.Context) (View, error) {
	return s.fetch(ctx, "refresh")
}

func (s *Synchronizer) fetch(ctx context.Context, trigger string) (View, error) {
	snap, err := s.cache.Fetch(ctx, cache.KeyDispatcherDashboard)
	if err != nil {
		s.logger.Warn("dashboard fetch failed", "trigger", trigger, "error", err)
	}
	return viewOf(snap), err
}

func (s *Synchronizer) Snapshot() View {
	return viewOf(s.cache.Get(cache.KeyDispatcherDashboard))
}

// Watch calls fn with every new view until ctx is done.
func (s *Synchronizer) Watch(ctx context.Context, fn func(View)) {
	ch, cancel := s.cache.Subscribe(cache.KeyDispatcherDashboard)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			fn(viewOf(snap))
		}
	}
}

// Wallet loads the dispatcher wallet, served from cache while fresh.
func (s *Synchronizer) Wallet(ctx context.Context) (*models.WalletData, error) {
	snap, err := s.cache.Ensure(ctx, cache.KeyDispatcherWallet)
	if err != nil {
		return nil, err
	}
	w, _ := cache.Value[*models.WalletData](snap)
	return w, nil
}

// ShareLink is the public tracking link handed to the assigned rider.
func (s *Synchronizer) ShareLink(o models.DispatcherOrderRequest) (string, error) {
	if o.TrackingID == "" {
		return "", ErrNoTrackingID
	}
	return s.trackingBase + "/" + url.PathEscape(o.TrackingID), nil
}

// ShareMessage is the text shared with a rider for an accepted order.
func (s *Synchronizer) ShareMessage(o models.DispatcherOrderRequest) (string, error) {
	link, err := s.ShareLink(o)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🚴 New Delivery Task!\n\nPickup: %s\nDropoff: %s\n\nClick to Accept & Navigate:\n%s",
		o.Vendor, o.CustomerAddress, link), nil
}
