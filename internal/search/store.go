// Package search owns the per-session route search state: the endpoint
// pair, the attempt sequence, ranked results, and the repository-backed
// favorites, history, and recent locations.
//
// The store never fetches routes itself. Begin captures an attempt and the
// caller performs the fetch outside any lock; Complete applies the outcome,
// discarding attempts that are no longer the latest.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/routing"
)

// Attempt is one search attempt handed out by Begin. The caller performs
// the fetch and reports back through Complete with the same Seq.
type Attempt struct {
	Seq   uint64
	Start geo.Location
	End   geo.Location
}

// Config configures a Store.
type Config struct {
	// DeviceID scopes favorites and history persistence.
	DeviceID uuid.UUID

	// Repo persists favorites and history.
	Repo Repository

	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time

	// Emit, when set, receives store events synchronously.
	Emit func(event any)

	Logger zerolog.Logger
}

// Store is the per-session search orchestrator state.
type Store struct {
	deviceID uuid.UUID
	repo     Repository
	now      func() time.Time
	emit     func(event any)
	logger   zerolog.Logger

	mu           sync.Mutex
	start        *geo.Location
	end          *geo.Location
	pendingStart geo.Location
	pendingEnd   geo.Location
	results      []routing.Route
	optimalID    string
	searching    bool
	lastErr      error
	seq          uint64
}

// NewStore builds the per-session search store.
func NewStore(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Store{
		deviceID: cfg.DeviceID,
		repo:     cfg.Repo,
		now:      cfg.Clock,
		emit:     cfg.Emit,
		logger:   cfg.Logger.With().Str("component", "search").Logger(),
	}
}

// SetStart sets the search start location.
func (s *Store) SetStart(loc geo.Location) error {
	if err := geo.ValidatePoint(loc.Point); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = &loc
	return nil
}

// SetEnd sets the search end location.
func (s *Store) SetEnd(loc geo.Location) error {
	if err := geo.ValidatePoint(loc.Point); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end = &loc
	return nil
}

// ClearStart unsets the start location.
func (s *Store) ClearStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = nil
}

// ClearEnd unsets the end location.
func (s *Store) ClearEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end = nil
}

// Swap exchanges start and end, including partially set pairs.
func (s *Store) Swap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start, s.end = s.end, s.start
}

// CanSearch reports whether the endpoints form a searchable pair: both set,
// and not equal on both axes. A pair that matches on exactly one axis is
// searchable.
func (s *Store) CanSearch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSearchLocked()
}

func (s *Store) canSearchLocked() bool {
	if s.start == nil || s.end == nil {
		return false
	}
	return !s.start.Point.Equal(s.end.Point)
}

// Begin starts a new attempt: it bumps the sequence, marks the store
// searching, clears the last error, and returns the captured endpoints.
// Returns ErrNotReady when CanSearch is false.
func (s *Store) Begin() (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canSearchLocked() {
		return Attempt{}, ErrNotReady
	}

	s.seq++
	s.searching = true
	s.lastErr = nil
	s.pendingStart = *s.start
	s.pendingEnd = *s.end

	return Attempt{Seq: s.seq, Start: s.pendingStart, End: s.pendingEnd}, nil
}

// Complete applies the outcome of an attempt. An attempt whose seq is no
// longer the latest is discarded with no state change. Reports whether the
// outcome was applied.
func (s *Store) Complete(ctx context.Context, seq uint64, result *routing.SearchResult, err error) bool {
	s.mu.Lock()
	if seq != s.seq {
		latest := s.seq
		s.mu.Unlock()
		s.logger.Warn().
			Uint64("seq", seq).
			Uint64("latest", latest).
			Msg("discarding stale search response")
		return false
	}

	s.searching = false

	if err != nil {
		s.results = nil
		s.optimalID = ""
		s.lastErr = err
		s.mu.Unlock()
		s.send(SearchFailed{Seq: seq, Err: err})
		return true
	}

	var routes []routing.Route
	var optimalID string
	if result != nil {
		routes = result.Routes
		optimalID = result.OptimalID
	}
	s.results = routes
	s.optimalID = optimalID
	s.lastErr = nil
	entry := HistoryEntry{
		ID:         uuid.New(),
		DeviceID:   s.deviceID,
		Start:      s.pendingStart,
		End:        s.pendingEnd,
		ExecutedAt: s.now(),
	}
	s.mu.Unlock()

	s.send(ResultsUpdated{Seq: seq, Results: routes})

	if s.repo != nil {
		if err := s.repo.AppendHistory(ctx, entry); err != nil {
			s.logger.Warn().Err(err).Msg("recording search history failed")
		}
	}
	return true
}

// Start returns the start location; ok is false when unset.
func (s *Store) Start() (geo.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start == nil {
		return geo.Location{}, false
	}
	return *s.start, true
}

// End returns the end location; ok is false when unset.
func (s *Store) End() (geo.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.end == nil {
		return geo.Location{}, false
	}
	return *s.end, true
}

// Results returns the latest ranked routes.
func (s *Store) Results() []routing.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]routing.Route, len(s.results))
	copy(out, s.results)
	return out
}

// OptimalRouteID returns the id of the best combined air-and-time route in
// the latest results, empty when there are none.
func (s *Store) OptimalRouteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optimalID
}

// Searching reports whether an attempt is in flight.
func (s *Store) Searching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searching
}

// LastError returns the error of the latest failed attempt, nil after a
// success or a fresh Begin.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SaveFavorite stores a labeled start/end pair for the device. A pair the
// device already saved gets its label updated instead.
func (s *Store) SaveFavorite(ctx context.Context, label string, start, end geo.Location) (Favorite, error) {
	if err := geo.ValidatePoint(start.Point); err != nil {
		return Favorite{}, err
	}
	if err := geo.ValidatePoint(end.Point); err != nil {
		return Favorite{}, err
	}

	now := s.now()
	return s.repo.SaveFavorite(ctx, Favorite{
		ID:        uuid.New(),
		DeviceID:  s.deviceID,
		Label:     label,
		Start:     start,
		End:       end,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Favorites lists the device's saved pairs, newest first.
func (s *Store) Favorites(ctx context.Context) ([]Favorite, error) {
	return s.repo.Favorites(ctx, s.deviceID)
}

// DeleteFavorite removes one saved pair.
func (s *Store) DeleteFavorite(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteFavorite(ctx, s.deviceID, id)
}

// History lists executed searches, most recent first.
func (s *Store) History(ctx context.Context) ([]HistoryEntry, error) {
	return s.repo.History(ctx, s.deviceID, MaxHistory)
}

// Recents derives the last distinct locations used as either endpoint,
// most recent first, deduplicated on rounded coordinates.
func (s *Store) Recents(ctx context.Context) ([]geo.Location, error) {
	entries, err := s.repo.History(ctx, s.deviceID, MaxHistory)
	if err != nil {
		return nil, err
	}
	return recentLocations(entries, MaxRecents), nil
}

// recentLocations walks history newest first; within one entry the end
// counts as more recent than the start.
func recentLocations(entries []HistoryEntry, limit int) []geo.Location {
	seen := make(map[string]bool, limit)
	out := make([]geo.Location, 0, limit)
	add := func(loc geo.Location) {
		key := pointKey(loc.Point)
		if seen[key] || len(out) >= limit {
			return
		}
		seen[key] = true
		out = append(out, loc)
	}
	for _, entry := range entries {
		add(entry.End)
		add(entry.Start)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (s *Store) send(event any) {
	if s.emit != nil {
		s.emit(event)
	}
}
