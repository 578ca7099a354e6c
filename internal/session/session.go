// Package session composes the per-device stores behind a single turn lock.
// Every exported operation is one turn: lock, mutate, let rules cascade,
// persist the viewport snapshot if it changed, unlock. Async work started by
// a turn (route search, heatmap fetch, geocoding) re-enters through the same
// lock as its own turn.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/geocode"
	"github.com/cleanairroute/cleanairroute/internal/notify"
	"github.com/cleanairroute/cleanairroute/internal/prefs"
	"github.com/cleanairroute/cleanairroute/internal/routing"
	"github.com/cleanairroute/cleanairroute/internal/rules"
	"github.com/cleanairroute/cleanairroute/internal/search"
	"github.com/cleanairroute/cleanairroute/internal/viewport"
)

// ErrUnknownRoute indicates a route id that is not in the current results.
var ErrUnknownRoute = errors.New("route not in current results")

// overlayPollutant is the layer the session's heatmap overlay shows.
const overlayPollutant = airquality.PollutantPM25

// Config holds the collaborators a session is built from. The services are
// shared across sessions; the stores the session creates are its own.
type Config struct {
	// DeviceID identifies the device this session belongs to.
	DeviceID uuid.UUID

	// Prefs loads and saves the persisted viewport snapshot.
	Prefs *prefs.Service

	// SearchRepo persists favorites and history.
	SearchRepo search.Repository

	// AirQuality serves current conditions and heatmap tiles.
	AirQuality *airquality.Service

	// Routing performs route searches.
	Routing *routing.Service

	// Geocoder resolves committed address text.
	Geocoder *geocode.Service

	// Aspect is the viewport width/height ratio (default: 1).
	Aspect float64

	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time

	Logger zerolog.Logger
}

// Session is the reactive state of one device: viewport, search, overlay,
// and notifications, kept consistent by a single turn lock.
type Session struct {
	deviceID uuid.UUID
	prefs    *prefs.Service
	air      *airquality.Service
	routes   *routing.Service
	geocoder *geocode.Service
	now      func() time.Time
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	viewport *viewport.Store
	search   *search.Store
	queue    *notify.Queue
	engine   *rules.Engine

	mu         sync.Mutex
	heatmap    *airquality.Heatmap
	version    uint64
	dirty      bool
	lastActive time.Time
}

// New builds a session for the device, hydrating the viewport from the
// stored preference snapshot. When the restored state has the heatmap layer
// on, an overlay fetch is kicked immediately; no toggle event will fire for
// a toggle that is already on.
func New(ctx context.Context, cfg Config) *Session {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		deviceID:   cfg.DeviceID,
		prefs:      cfg.Prefs,
		air:        cfg.AirQuality,
		routes:     cfg.Routing,
		geocoder:   cfg.Geocoder,
		now:        now,
		logger:     cfg.Logger.With().Str("component", "session").Str("device_id", cfg.DeviceID.String()).Logger(),
		ctx:        sctx,
		cancel:     cancel,
		lastActive: now(),
	}

	snap := prefs.DefaultSnapshot(cfg.DeviceID)
	if cfg.Prefs != nil {
		snap = cfg.Prefs.Snapshot(ctx, cfg.DeviceID)
	}

	s.viewport = viewport.New(viewport.Config{
		Center:        snap.Center,
		Zoom:          snap.Zoom,
		Aspect:        cfg.Aspect,
		ShowHeatmap:   snap.ShowHeatmap,
		ShowFavorites: snap.ShowFavorites,
		Emit:          s.emit,
		Logger:        cfg.Logger,
	})
	s.search = search.NewStore(search.Config{
		DeviceID: cfg.DeviceID,
		Repo:     cfg.SearchRepo,
		Clock:    now,
		Emit:     s.emit,
		Logger:   cfg.Logger,
	})
	s.queue = notify.New(notify.Config{
		Clock:  now,
		Emit:   s.emit,
		Logger: cfg.Logger,
	})
	s.engine = rules.New(rules.Config{
		Actions: sessionActions{s: s},
		Logger:  cfg.Logger,
	})

	s.hydrate(ctx)

	if snap.ShowHeatmap {
		s.requestHeatmap(s.viewport.Bounds())
	}

	return s
}

// hydrate touches the search repositories so a broken backing store surfaces
// at session start instead of on the first favorites read.
func (s *Session) hydrate(ctx context.Context) {
	favorites, err := s.search.Favorites(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("hydrating favorites failed")
	}
	history, err := s.search.History(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("hydrating history failed")
	}
	s.logger.Debug().
		Int("favorites", len(favorites)).
		Int("history", len(history)).
		Msg("session hydrated")
}

// DeviceID returns the device this session belongs to.
func (s *Session) DeviceID() uuid.UUID {
	return s.deviceID
}

// LastActive returns the time of the last turn or selector read.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close stops the session's background work. Shared services stay open.
func (s *Session) Close() {
	s.cancel()
}

// turn runs fn as one serialized turn.
func (s *Session) turn(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	fn()
	s.flushLocked()
}

// turnErr is turn for operations that can reject their input.
func (s *Session) turnErr(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	err := fn()
	s.flushLocked()
	return err
}

// emit receives every store event inside the emitting turn. It bumps the
// state version, tracks what needs persisting, turns search failures into
// notifications, and hands the event to the rule engine.
func (s *Session) emit(event any) {
	s.version++

	switch ev := event.(type) {
	case viewport.CameraChanged:
		s.dirty = true
	case viewport.ToggleChanged:
		s.dirty = true
		if ev.Toggle == viewport.ToggleHeatmap && !ev.On {
			s.heatmap = nil
		}
	case search.SearchFailed:
		s.logger.Warn().Err(ev.Err).Uint64("seq", ev.Seq).Msg("search failed")
		s.queue.Push(notify.LevelError, "SEARCH_FAILED", "Route search failed. Please try again.")
	}

	s.engine.Dispatch(event)
}

// flushLocked persists the viewport snapshot when a camera or toggle event
// was seen this turn.
func (s *Session) flushLocked() {
	if !s.dirty {
		return
	}
	s.dirty = false
	if s.prefs == nil {
		return
	}

	cam := s.viewport.Camera()
	toggles := s.viewport.Toggles()
	snap := prefs.Snapshot{
		DeviceID:      s.deviceID,
		Center:        cam.Center,
		Zoom:          cam.Zoom,
		ShowHeatmap:   toggles.ShowHeatmap,
		ShowFavorites: toggles.ShowFavorites,
	}
	if err := s.prefs.Save(s.ctx, snap); err != nil {
		s.logger.Warn().Err(err).Msg("persisting viewport snapshot failed")
	}
}

// --- viewport operations ---

// SetCenter moves the camera center.
func (s *Session) SetCenter(p geo.Point) error {
	return s.turnErr(func() error { return s.viewport.SetCenter(p) })
}

// SetZoom zooms the camera, clamped to the valid range.
func (s *Session) SetZoom(z float64) {
	s.turn(func() { s.viewport.SetZoom(z) })
}

// SetCamera moves center and zoom together.
func (s *Session) SetCamera(center geo.Point, zoom float64) error {
	return s.turnErr(func() error { return s.viewport.SetCamera(center, zoom) })
}

// FitBounds moves the camera to frame the given bounds.
func (s *Session) FitBounds(b geo.Bounds) {
	s.turn(func() { s.viewport.FitBounds(b) })
}

// SetToggles applies the provided toggle changes in one turn. Nil fields are
// left untouched.
func (s *Session) SetToggles(showHeatmap, showFavorites *bool) {
	s.turn(func() {
		if showHeatmap != nil {
			s.viewport.SetShowHeatmap(*showHeatmap)
		}
		if showFavorites != nil {
			s.viewport.SetShowFavorites(*showFavorites)
		}
	})
}

// SelectRoute highlights a route from the current results.
func (s *Session) SelectRoute(id string) error {
	return s.turnErr(func() error {
		if id != "" && !s.hasRoute(id) {
			return ErrUnknownRoute
		}
		s.viewport.SelectRoute(id)
		return nil
	})
}

func (s *Session) hasRoute(id string) bool {
	for _, r := range s.search.Results() {
		if r.ID == id {
			return true
		}
	}
	return false
}

// ClearSelection drops the route highlight.
func (s *Session) ClearSelection() {
	s.turn(func() { s.viewport.ClearSelection() })
}

// MapClick reports a tap on the map background.
func (s *Session) MapClick(p geo.Point) {
	s.turn(func() { s.emit(rules.MapClicked{Point: p}) })
}

// CommitAddress reports address text leaving edit focus. Resolution is
// asynchronous and silent on failure.
func (s *Session) CommitAddress(field rules.Field, text string) {
	s.turn(func() { s.emit(rules.AddressCommitted{Field: field, Text: text}) })
}

// --- search operations ---

// SetStart sets the search start location.
func (s *Session) SetStart(loc geo.Location) error {
	return s.turnErr(func() error { return s.search.SetStart(loc) })
}

// SetEnd sets the search end location.
func (s *Session) SetEnd(loc geo.Location) error {
	return s.turnErr(func() error { return s.search.SetEnd(loc) })
}

// Swap exchanges start and end.
func (s *Session) Swap() {
	s.turn(func() { s.search.Swap() })
}

// ExecuteSearch starts a route search for the current endpoints. The fetch
// runs outside the turn lock; the outcome re-enters as its own turn, where a
// stale attempt is discarded. Returns search.ErrNotReady when the endpoints
// are not searchable.
func (s *Session) ExecuteSearch() error {
	var attempt search.Attempt
	err := s.turnErr(func() error {
		a, err := s.search.Begin()
		if err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return err
	}

	go s.completeSearch(attempt)
	return nil
}

func (s *Session) completeSearch(attempt search.Attempt) {
	result, err := s.routes.Search(s.ctx, routing.SearchRequest{
		Start: attempt.Start.Point,
		End:   attempt.End.Point,
	})
	if err == nil {
		// The routing cache shares results across sessions; enrichment
		// must write to a private copy.
		result = cloneResult(result)
	}
	if s.ctx.Err() != nil {
		return
	}

	s.turn(func() {
		if err == nil {
			s.enrichResultLocked(result)
		}
		s.search.Complete(s.ctx, attempt.Seq, result, err)
	})
}

func cloneResult(in *routing.SearchResult) *routing.SearchResult {
	if in == nil {
		return nil
	}
	out := *in
	out.Routes = make([]routing.Route, len(in.Routes))
	copy(out.Routes, in.Routes)
	return &out
}

// enrichResultLocked fills exposure for routes the engine returned without
// it, estimated from the session's current overlay.
func (s *Session) enrichResultLocked(result *routing.SearchResult) {
	if result == nil || s.heatmap == nil {
		return
	}
	for i := range result.Routes {
		r := &result.Routes[i]
		if !r.Exposure.IsZero() {
			continue
		}
		if exp, ok := routing.EstimateExposure(*r, s.heatmap); ok {
			r.Exposure = exp
		}
	}
}

// --- favorites, history, recents ---

// SaveFavorite stores a labeled start/end pair for the device.
func (s *Session) SaveFavorite(ctx context.Context, label string, start, end geo.Location) (search.Favorite, error) {
	var fav search.Favorite
	err := s.turnErr(func() error {
		var err error
		fav, err = s.search.SaveFavorite(ctx, label, start, end)
		return err
	})
	return fav, err
}

// Favorites lists the device's favorites, newest first.
func (s *Session) Favorites(ctx context.Context) ([]search.Favorite, error) {
	var out []search.Favorite
	err := s.turnErr(func() error {
		var err error
		out, err = s.search.Favorites(ctx)
		return err
	})
	return out, err
}

// DeleteFavorite removes a favorite by id.
func (s *Session) DeleteFavorite(ctx context.Context, id uuid.UUID) error {
	return s.turnErr(func() error { return s.search.DeleteFavorite(ctx, id) })
}

// History lists the device's search history, newest first.
func (s *Session) History(ctx context.Context) ([]search.HistoryEntry, error) {
	var out []search.HistoryEntry
	err := s.turnErr(func() error {
		var err error
		out, err = s.search.History(ctx)
		return err
	})
	return out, err
}

// Recents lists recently used locations derived from history.
func (s *Session) Recents(ctx context.Context) ([]geo.Location, error) {
	var out []geo.Location
	err := s.turnErr(func() error {
		var err error
		out, err = s.search.Recents(ctx)
		return err
	})
	return out, err
}

// --- notifications ---

// Notifications lists pending notifications, newest first.
func (s *Session) Notifications() []notify.Notification {
	var out []notify.Notification
	s.turn(func() { out = s.queue.List() })
	return out
}

// DismissNotification removes one notification by id.
func (s *Session) DismissNotification(id uuid.UUID) error {
	return s.turnErr(func() error { return s.queue.Dismiss(id) })
}

// DismissAllNotifications clears the queue.
func (s *Session) DismissAllNotifications() {
	s.turn(func() { s.queue.DismissAll() })
}

// --- async fetch paths ---

// requestHeatmap starts an overlay fetch for the given bounds. The result
// lands in a later turn; a fetch that fails after the cache's stale window
// is exhausted pushes exactly one error notification.
func (s *Session) requestHeatmap(b geo.Bounds) {
	if b.IsZero() || s.air == nil {
		return
	}

	go func() {
		hm, err := s.air.HeatmapByBounds(s.ctx, b, overlayPollutant)
		if s.ctx.Err() != nil {
			return
		}

		s.turn(func() {
			if err != nil {
				s.logger.Warn().Err(err).Msg("heatmap refresh failed")
				s.queue.Push(notify.LevelError, "HEATMAP_UNAVAILABLE", "Air quality overlay could not be updated.")
				return
			}
			if !s.viewport.Toggles().ShowHeatmap {
				// The layer went off while the fetch was in flight.
				return
			}
			s.heatmap = hm
			s.emit(HeatmapUpdated{Bounds: hm.Bounds, Pollutant: hm.Pollutant})
		})
	}()
}

// resolveAddress geocodes committed text and applies it to the search
// endpoint. Failures are silent: a Debug log, no notification, field left
// unset.
func (s *Session) resolveAddress(field rules.Field, text string) {
	if s.geocoder == nil {
		return
	}

	go func() {
		loc, err := s.geocoder.Geocode(s.ctx, text)
		if err != nil {
			s.logger.Debug().Err(err).Str("field", string(field)).Msg("address resolution failed")
			return
		}
		if s.ctx.Err() != nil {
			return
		}

		s.turn(func() {
			var setErr error
			switch field {
			case rules.FieldStart:
				setErr = s.search.SetStart(loc)
			case rules.FieldEnd:
				setErr = s.search.SetEnd(loc)
			}
			if setErr != nil {
				s.logger.Debug().Err(setErr).Str("field", string(field)).Msg("resolved location rejected")
			}
		})
	}()
}
