package eventsync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/realtime"
)

// Source delivers named events; *realtime.Manager satisfies it.
type Source interface {
	On(event string, h realtime.Handler) func()
}

// Observer sees every event that matched a table row, after its patch.
type Observer func(event string, payload json.RawMessage)

type Dispatcher struct {
	cache  *cache.Cache
	rules  map[string]Rule
	logger *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	offs      []func()
	observers map[int]Observer
	nextID    int
	wg        sync.WaitGroup
}

func NewDispatcher(c *cache.Cache, table []Rule, logger *slog.Logger) *Dispatcher {
	rules := make(map[string]Rule, len(table))
	for _, r := range table {
		rules[r.Event] = r
	}
	return &Dispatcher{
		cache:     c,
		rules:     rules,
		logger:    logger,
		observers: make(map[int]Observer),
	}
}

// Start registers one listener per table row on src. Refetches triggered by
// events run under ctx.
func (d *Dispatcher) Start(ctx context.Context, src Source) {
	d.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx, d.cancel = context.WithCancel(ctx)
	for event := range d.rules {
		event := event
		d.offs = append(d.offs, src.On(event, func(payload json.RawMessage) {
			d.Handle(event, payload)
		}))
	}
	d.logger.Debug("event table wired", "rules", len(d.rules))
}

// Stop removes every listener and waits for refetches already started.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	offs, cancel := d.offs, d.cancel
	d.offs, d.cancel, d.ctx = nil, nil, nil
	d.mu.Unlock()

	for _, off := range offs {
		off()
	}
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

// Observe registers fn for every handled event and returns a func that
// removes it.
func (d *Dispatcher) Observe(fn Observer) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.observers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.observers, id)
	}
}

// Handle applies the table row for event. The optimistic patch lands before
// Handle returns; the refetch runs in the background.
func (d *Dispatcher) Handle(event string, payload json.RawMessage) {
	rule, ok := d.rules[event]
	if !ok {
		return
	}

	if rule.Patch != nil {
		key, fn, err := rule.Patch(payload)
		switch {
		case err != nil:
			d.logger.Warn("skipping optimistic update", "event", event, "error", err)
		case fn != nil:
			d.cache.Patch(key, fn)
		}
	}

	d.mu.Lock()
	ctx := d.ctx
	observers := make([]Observer, 0, len(d.observers))
	for _, o := range d.observers {
		observers = append(observers, o)
	}
	if ctx != nil && len(rule.Keys) > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.cache.Invalidate(ctx, rule.Keys...)
		}()
	}
	d.mu.Unlock()

	d.logger.Debug("event handled", "event", event, "invalidated", len(rule.Keys))
	for _, o := range observers {
		o(event, payload)
	}
}
