// Package cache implements the TTL cache engine behind every upstream data
// service: air quality, routes, and geocoding each own a namespaced Store.
// A Store layers request de-duplication, stale-while-revalidate,
// stale-if-error, an LRU entry cap, and an optional periodic refresh on top
// of a fetch function supplied per key.
package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("cache: store closed")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the Clock used when Config.Clock is nil.
var SystemClock Clock = systemClock{}

// FetchFunc loads the value for a key from upstream.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Config controls a Store. Zero values fall back to defaults.
type Config struct {
	// Name identifies the namespace in logs and stats.
	Name string

	// TTL is how long an entry is served without revalidation.
	TTL time.Duration

	// StaleFor extends an expired entry's usability: within the window the
	// entry is served immediately while a background revalidation runs, and
	// it also backs stale-if-error serving when a fetch fails.
	StaleFor time.Duration

	// MaxEntries caps the namespace; least-recently-used entries are evicted
	// on overflow.
	MaxEntries int

	// RefreshEvery, when positive, re-fetches every live key on a timer.
	RefreshEvery time.Duration

	// FetchTimeout bounds background revalidation and refresh fetches.
	FetchTimeout time.Duration

	Clock  Clock
	Logger zerolog.Logger
}

const (
	defaultTTL          = 5 * time.Minute
	defaultMaxEntries   = 256
	defaultFetchTimeout = 15 * time.Second
)

type entry[V any] struct {
	key       string
	value     V
	fetchedAt time.Time
	expiresAt time.Time
	fetch     FetchFunc[V]
	elem      *list.Element
}

// Store is a namespaced TTL cache. All methods are safe for concurrent use.
type Store[V any] struct {
	cfg    Config
	clock  Clock
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry[V]
	lru     *list.List
	closed  bool

	group singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	staleServes atomic.Int64
	evictions   atomic.Int64
	refreshErrs atomic.Int64

	refreshCancel context.CancelFunc
	refreshDone   chan struct{}
}

// New creates a Store from cfg, applying defaults for zero values.
func New[V any](cfg Config) *Store[V] {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}

	s := &Store[V]{
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  cfg.Logger.With().Str("cache", cfg.Name).Logger(),
		entries: make(map[string]*entry[V]),
		lru:     list.New(),
	}

	if cfg.RefreshEvery > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.refreshCancel = cancel
		s.refreshDone = make(chan struct{})
		go s.refreshLoop(ctx)
	}

	return s
}

// Get returns the cached value for key, fetching on miss. A fresh entry is
// returned immediately. An entry inside the stale window is returned
// immediately while a deduplicated background revalidation runs. Concurrent
// misses for the same key share a single upstream fetch. When the fetch fails
// and a stale entry is available, the stale value is served with a nil error.
func (s *Store[V]) Get(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		var zero V
		return zero, ErrClosed
	}
	now := s.clock.Now()
	if e, ok := s.entries[key]; ok {
		if now.Before(e.expiresAt) {
			s.lru.MoveToFront(e.elem)
			e.fetch = fetch
			v := e.value
			s.mu.Unlock()
			s.hits.Add(1)
			return v, nil
		}
		if now.Before(e.expiresAt.Add(s.cfg.StaleFor)) {
			s.lru.MoveToFront(e.elem)
			e.fetch = fetch
			v := e.value
			age := now.Sub(e.fetchedAt)
			s.mu.Unlock()
			s.staleServes.Add(1)
			s.logger.Debug().Str("key", key).Dur("age", age).Msg("serving stale entry, revalidating")
			go s.revalidate(key, fetch)
			return v, nil
		}
	}
	s.mu.Unlock()

	s.misses.Add(1)
	return s.fetchAndStore(ctx, key, fetch)
}

// Peek returns the cached value without fetching or touching LRU order. The
// second return reports whether a usable (fresh or stale-window) entry exists.
func (s *Store[V]) Peek(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero V
	e, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	if s.clock.Now().After(e.expiresAt.Add(s.cfg.StaleFor)) {
		return zero, false
	}
	return e.value, true
}

func (s *Store[V]) fetchAndStore(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	v, err, _ := s.group.Do(key, func() (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		// Stale-if-error: a revalidation miss must not take down a reader
		// that a moment ago would have been served stale.
		s.mu.Lock()
		if e, ok := s.entries[key]; ok && s.clock.Now().Before(e.expiresAt.Add(s.cfg.StaleFor)) {
			s.lru.MoveToFront(e.elem)
			stale := e.value
			s.mu.Unlock()
			s.staleServes.Add(1)
			s.logger.Warn().Str("key", key).Err(err).Msg("fetch failed, serving stale entry")
			return stale, nil
		}
		s.mu.Unlock()
		var zero V
		return zero, err
	}

	val := v.(V)
	s.store(key, val, fetch)
	return val, nil
}

func (s *Store[V]) store(key string, value V, fetch FetchFunc[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := s.clock.Now()
	if e, ok := s.entries[key]; ok {
		e.value = value
		e.fetchedAt = now
		e.expiresAt = now.Add(s.cfg.TTL)
		e.fetch = fetch
		s.lru.MoveToFront(e.elem)
		return
	}
	e := &entry[V]{
		key:       key,
		value:     value,
		fetchedAt: now,
		expiresAt: now.Add(s.cfg.TTL),
		fetch:     fetch,
	}
	e.elem = s.lru.PushFront(e)
	s.entries[key] = e

	for len(s.entries) > s.cfg.MaxEntries {
		oldest := s.lru.Back()
		if oldest == nil {
			break
		}
		victim := oldest.Value.(*entry[V])
		s.lru.Remove(oldest)
		delete(s.entries, victim.key)
		s.evictions.Add(1)
		s.logger.Debug().Str("key", victim.key).Msg("evicted least recently used entry")
	}
}

func (s *Store[V]) revalidate(key string, fetch FetchFunc[V]) {
	v, err, _ := s.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
		defer cancel()
		return fetch(ctx)
	})
	if err != nil {
		s.refreshErrs.Add(1)
		s.logger.Warn().Str("key", key).Err(err).Msg("background revalidation failed")
		return
	}
	s.store(key, v.(V), fetch)
}

func (s *Store[V]) refreshLoop(ctx context.Context) {
	defer close(s.refreshDone)
	ticker := time.NewTicker(s.cfg.RefreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *Store[V]) refreshAll(ctx context.Context) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	fetches := make([]FetchFunc[V], 0, len(s.entries))
	for k, e := range s.entries {
		keys = append(keys, k)
		fetches = append(fetches, e.fetch)
	}
	s.mu.Unlock()

	for i, key := range keys {
		if ctx.Err() != nil {
			return
		}
		// Keys evicted since the snapshot stay refreshed-out: store only
		// rewrites entries that still exist.
		s.mu.Lock()
		_, live := s.entries[key]
		s.mu.Unlock()
		if !live {
			continue
		}
		s.revalidate(key, fetches[i])
	}
}

// Invalidate drops the entry for key if present.
func (s *Store[V]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		s.lru.Remove(e.elem)
		delete(s.entries, key)
	}
}

// InvalidateAll drops every entry.
func (s *Store[V]) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry[V])
	s.lru.Init()
}

// Len returns the current entry count.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	Name        string `json:"name"`
	Entries     int    `json:"entries"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	StaleServes int64  `json:"stale_serves"`
	Evictions   int64  `json:"evictions"`
	RefreshErrs int64  `json:"refresh_errors"`
}

// Stats returns current counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	entries := len(s.entries)
	s.mu.Unlock()
	return Stats{
		Name:        s.cfg.Name,
		Entries:     entries,
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		StaleServes: s.staleServes.Load(),
		Evictions:   s.evictions.Load(),
		RefreshErrs: s.refreshErrs.Load(),
	}
}

// Close stops the refresh loop and rejects further Gets.
func (s *Store[V]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.refreshCancel != nil {
		s.refreshCancel()
		<-s.refreshDone
	}
}
