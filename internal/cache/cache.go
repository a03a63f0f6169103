// Package cache mirrors backend query results keyed by logical query keys.
//
// Every fetch takes a sequence number when it starts. A result is applied only
// if no fetch that started later has already been applied, so a slow response
// can never overwrite a fresher one. Local optimistic patches sit on top of
// the authoritative value until a fetch that started after them lands.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lucsky/cuid"
)

// Key identifies a logical query.
type Key string

const (
	KeyDispatcherDashboard Key = "dispatcher-dashboard"
	KeyDispatcherWallet    Key = "dispatcher-wallet"
	KeyAvailableOrders     Key = "rider-available-orders"
	KeyActiveOrder         Key = "rider-active-order"
	KeyEarnings            Key = "rider-earnings"
	KeyHistory             Key = "rider-history"
	KeyBanks               Key = "banks"
	KeyCurrentUser         Key = "current-user"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusRefetching Status = "refetching"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Fetcher loads the authoritative value for a key.
type Fetcher func(ctx context.Context) (interface{}, error)

// PatchFunc derives a new view from the current one. It must not mutate its
// argument.
type PatchFunc func(current interface{}) interface{}

type Options struct {
	// StaleTime is how long a successful value is served by Ensure without
	// refetching.
	StaleTime time.Duration
	// RefetchInterval enables background polling when positive.
	RefetchInterval time.Duration
}

// Snapshot is an immutable view of one cache entry.
type Snapshot struct {
	Key       Key
	Data      interface{}
	Err       error
	Status    Status
	Version   uint64
	UpdatedAt time.Time
	Pending   int // optimistic patches not yet reconciled
}

func (s Snapshot) Loading() bool    { return s.Status == StatusLoading }
func (s Snapshot) Refetching() bool { return s.Status == StatusRefetching }
func (s Snapshot) HasData() bool    { return s.Data != nil }

type patch struct {
	id  string
	seq uint64 // sequence counter value when the patch was recorded
	fn  PatchFunc
}

type entry struct {
	key     Key
	fetcher Fetcher
	opts    Options

	authoritative interface{}
	err           error
	appliedSeq    uint64
	inFlight      int
	fetched       bool
	version       uint64
	updatedAt     time.Time
	patches       []patch
	subscribers   map[int]chan Snapshot
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	seq     uint64
	nextSub int
	entries map[Key]*entry
	logger  *slog.Logger
	now     func() time.Time
}

func New(logger *slog.Logger) *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		logger:  logger,
		now:     time.Now,
	}
}

// Register binds a fetcher to key. Registering an existing key replaces its
// fetcher and options but keeps cached data.
func (c *Cache) Register(key Key, fetcher Fetcher, opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.fetcher = fetcher
	e.opts = opts
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, subscribers: make(map[int]chan Snapshot)}
		c.entries[key] = e
	}
	return e
}

// Fetch loads key from the backend and returns the resulting snapshot. The
// snapshot reflects whatever is newest once this fetch completes, which may
// come from a later fetch if one finished first.
func (c *Cache) Fetch(ctx context.Context, key Key) (Snapshot, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.fetcher == nil {
		c.mu.Unlock()
		return Snapshot{}, fmt.Errorf("cache: no fetcher registered for %q", key)
	}
	c.seq++
	seq := c.seq
	e.inFlight++
	fetcher := e.fetcher
	c.notifyLocked(e)
	c.mu.Unlock()

	data, err := fetcher(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.inFlight--
	if seq <= e.appliedSeq {
		c.logger.Debug("discarding stale response", "key", string(key), "seq", seq, "applied", e.appliedSeq)
		c.notifyLocked(e)
		return c.snapshotLocked(e), err
	}
	if err != nil {
		// A failed fetch keeps the last good value so the view does not blank out.
		e.err = err
		c.notifyLocked(e)
		return c.snapshotLocked(e), err
	}

	e.appliedSeq = seq
	e.authoritative = data
	e.err = nil
	e.fetched = true
	e.updatedAt = c.now()
	kept := e.patches[:0]
	for _, p := range e.patches {
		if p.seq >= seq {
			kept = append(kept, p)
		}
	}
	e.patches = kept
	e.version++
	c.notifyLocked(e)
	return c.snapshotLocked(e), nil
}

// Set stores data as if a fetch had just returned it. Fetches already in
// flight are discarded when they land, and pending patches are dropped.
func (c *Cache) Set(key Key, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	c.seq++
	e.appliedSeq = c.seq
	e.authoritative = data
	e.err = nil
	e.fetched = true
	e.updatedAt = c.now()
	e.patches = nil
	e.version++
	c.notifyLocked(e)
}

// Ensure returns cached data when it is still fresh under StaleTime and
// fetches otherwise.
func (c *Cache) Ensure(ctx context.Context, key Key) (Snapshot, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.fetched && e.err == nil && e.opts.StaleTime > 0 && c.now().Sub(e.updatedAt) < e.opts.StaleTime {
		s := c.snapshotLocked(e)
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()
	return c.Fetch(ctx, key)
}

// Invalidate refetches every key that is in use, meaning it has been fetched
// before or has subscribers. Errors are logged; the latest snapshot is still
// delivered to subscribers.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) {
	var wg sync.WaitGroup
	for _, key := range keys {
		if !c.inUse(key) {
			continue
		}
		wg.Add(1)
		go func(key Key) {
			defer wg.Done()
			if _, err := c.Fetch(ctx, key); err != nil {
				c.logger.Warn("refetch failed", "key", string(key), "error", err)
			}
		}(key)
	}
	wg.Wait()
}

func (c *Cache) inUse(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.fetcher != nil && (e.fetched || e.inFlight > 0 || len(e.subscribers) > 0)
}

// Patch applies fn on top of the authoritative value until a fetch that
// started after this call is applied. It returns the patch id.
func (c *Cache) Patch(key Key, fn PatchFunc) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	id := cuid.New()
	e.patches = append(e.patches, patch{id: id, seq: c.seq, fn: fn})
	e.version++
	c.notifyLocked(e)
	return id
}

// Rollback drops a pending patch, used when the action it anticipated failed.
func (c *Cache) Rollback(key Key, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	for i, p := range e.patches {
		if p.id == id {
			e.patches = append(e.patches[:i], e.patches[i+1:]...)
			e.version++
			c.notifyLocked(e)
			return
		}
	}
}

func (c *Cache) Get(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key, Status: StatusIdle}
	}
	return c.snapshotLocked(e)
}

// Subscribe delivers the current snapshot and every later change. The
// channel keeps only the newest undelivered snapshot, so a slow reader never
// blocks the cache.
func (c *Cache) Subscribe(key Key) (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	id := c.nextSub
	c.nextSub++
	ch := make(chan Snapshot, 1)
	e.subscribers[id] = ch
	ch <- c.snapshotLocked(e)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := e.subscribers[id]; ok {
				delete(e.subscribers, id)
				close(sub)
			}
		})
	}
}

// Remove forgets a key's data and patches but keeps its fetcher.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.resetLocked(e)
}

// Clear forgets every key's data, as on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		c.resetLocked(e)
	}
}

func (c *Cache) resetLocked(e *entry) {
	e.authoritative = nil
	e.err = nil
	e.fetched = false
	e.patches = nil
	e.updatedAt = time.Time{}
	// Responses still in flight belong to the old session.
	e.appliedSeq = c.seq
	e.version++
	c.notifyLocked(e)
}

// StartPolling refetches keys with a RefetchInterval until ctx is done.
func (c *Cache) StartPolling(ctx context.Context) {
	c.mu.Lock()
	type poll struct {
		key      Key
		interval time.Duration
	}
	var polls []poll
	for key, e := range c.entries {
		if e.opts.RefetchInterval > 0 {
			polls = append(polls, poll{key, e.opts.RefetchInterval})
		}
	}
	c.mu.Unlock()

	for _, p := range polls {
		go func(p poll) {
			ticker := time.NewTicker(p.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if !c.inUse(p.key) {
						continue
					}
					if _, err := c.Fetch(ctx, p.key); err != nil && ctx.Err() == nil {
						c.logger.Warn("poll failed", "key", string(p.key), "error", err)
					}
				}
			}
		}(p)
	}
}

func (c *Cache) snapshotLocked(e *entry) Snapshot {
	data := e.authoritative
	for _, p := range e.patches {
		data = p.fn(data)
	}
	status := StatusIdle
	switch {
	case e.inFlight > 0 && e.fetched:
		status = StatusRefetching
	case e.inFlight > 0:
		status = StatusLoading
	case e.err != nil:
		status = StatusError
	case e.fetched:
		status = StatusSuccess
	}
	return Snapshot{
		Key:       e.key,
		Data:      data,
		Err:       e.err,
		Status:    status,
		Version:   e.version,
		UpdatedAt: e.updatedAt,
		Pending:   len(e.patches),
	}
}

func (c *Cache) notifyLocked(e *entry) {
	if len(e.subscribers) == 0 {
		return
	}
	s := c.snapshotLocked(e)
	for _, ch := range e.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Value extracts typed data from a snapshot.
func Value[T any](s Snapshot) (T, bool) {
	v, ok := s.Data.(T)
	return v, ok
}
