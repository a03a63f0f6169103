// Package app wires the client together: storage, backend client, query
// cache, session, realtime socket, event table, action mutators, push
// registration and the optional event mirror.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chrisdamba/chowrider/internal/actions"
	"github.com/chrisdamba/chowrider/internal/api"
	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/dashboard"
	"github.com/chrisdamba/chowrider/internal/eventsync"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/output"
	"github.com/chrisdamba/chowrider/internal/push"
	"github.com/chrisdamba/chowrider/internal/realtime"
	"github.com/chrisdamba/chowrider/internal/session"
	"github.com/chrisdamba/chowrider/internal/storage"
)

type Options struct {
	// Store overrides the backend named in the config.
	Store storage.Store
	// Notifier receives action notifications; defaults to the logger.
	Notifier actions.Notifier
	// Platform is the push platform; defaults to a platform without a token.
	Platform push.Platform
	// Output overrides the mirror destination named in the config.
	Output output.Destination
}

type App struct {
	Config *models.Config
	Logger *slog.Logger

	Store     storage.Store
	API       *api.Client
	Cache     *cache.Cache
	Session   *session.Controller
	Socket    *realtime.Manager
	Events    *eventsync.Dispatcher
	Locations *eventsync.LocationFeed
	Dashboard *dashboard.Synchronizer
	Rider     *actions.RiderQueries
	Actions   *actions.Mutator
	Push      *push.Registrant

	mirror *output.Mirror

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cleanup []func()
}

func New(ctx context.Context, cfg *models.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	a.Store = opts.Store
	if a.Store == nil {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		a.Store = store
		if pg, ok := store.(*storage.PostgresStore); ok {
			a.cleanup = append(a.cleanup, pg.Close)
		}
	}

	token := func(ctx context.Context) (string, error) {
		return storage.GetOptional(ctx, a.Store, models.KeyAuthToken)
	}

	a.API = api.NewClient(cfg.API, token, logger.With("component", "api"))
	a.Cache = cache.New(logger.With("component", "cache"))
	a.Session = session.NewController(a.API, a.Store, a.Cache, logger.With("component", "session"))
	a.Socket = realtime.NewManager(cfg.Socket, token, logger.With("component", "realtime"))
	a.Events = eventsync.NewDispatcher(a.Cache, eventsync.DefaultTable(), logger.With("component", "eventsync"))
	a.Locations = eventsync.NewLocationFeed(logger.With("component", "location"))
	a.Dashboard = dashboard.New(a.Cache, a.API, cfg.Tracking.BaseURL, logger.With("component", "dashboard"))
	a.Rider = actions.RegisterRiderQueries(a.Cache, a.API)

	notifier := opts.Notifier
	if notifier == nil {
		notifier = actions.LogNotifier{Logger: logger.With("component", "notify")}
	}
	a.Actions = actions.New(a.API, a.API, a.Rider, a.Cache, notifier, cfg.Payout, logger.With("component", "actions"))

	platform := opts.Platform
	if platform == nil {
		platform = push.StaticPlatform{}
	}
	a.Push = push.NewRegistrant(platform, a.API, a.Session, logger.With("component", "push"))

	dest := opts.Output
	if dest == nil {
		var err error
		dest, err = output.New(ctx, cfg.Output, logger.With("component", "output"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create event output: %w", err)
		}
	}
	if dest != nil {
		a.mirror = output.NewMirror(dest, cfg.Output.KafkaTopicPrefix, a.actorID, logger.With("component", "mirror"))
	}

	return a, nil
}

func (a *App) actorID() string {
	if u := a.Session.State().User; u != nil {
		return u.ID
	}
	return ""
}

// Start launches the background work: the event table on the socket, the
// socket following the session, push registration on sign-in and polling.
// It returns immediately; Close stops everything.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)

	a.Events.Start(ctx, a.Socket)
	offs := []func(){a.Events.Observe(a.Locations.Observe)}
	if a.mirror != nil {
		offs = append(offs, a.Events.Observe(a.mirror.Observe))
	}
	a.cleanup = append(a.cleanup, func() {
		for _, off := range offs {
			off()
		}
	})

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		realtime.Bind(ctx, a.Socket, a.Session)
	}()
	go func() {
		defer a.wg.Done()
		a.Push.Run(ctx)
	}()
	a.Cache.StartPolling(ctx)
}

// Close stops background work and releases every resource. It is safe to
// call more than once.
func (a *App) Close() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	cleanup := a.cleanup
	a.cleanup = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	if a.Events != nil {
		a.Events.Stop()
	}
	if a.Socket != nil {
		a.Socket.Close()
	}
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.Logger.Warn("failed to close event output", "error", err)
		}
		a.mirror = nil
	}
}
