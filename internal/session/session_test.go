package session_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/geocode"
	"github.com/cleanairroute/cleanairroute/internal/notify"
	"github.com/cleanairroute/cleanairroute/internal/prefs"
	"github.com/cleanairroute/cleanairroute/internal/routing"
	"github.com/cleanairroute/cleanairroute/internal/rules"
	"github.com/cleanairroute/cleanairroute/internal/search"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

var (
	cityHall = geo.Location{Name: "Seoul City Hall", Point: geo.Point{Lat: 37.5665, Lon: 126.9780}}
	namsan   = geo.Location{Name: "Namsan", Point: geo.Point{Lat: 37.5512, Lon: 126.9882}}
)

type fakeAirProvider struct {
	mu           sync.Mutex
	heatmapCalls int
	failHeatmap  bool
}

func (p *fakeAirProvider) Current(_ context.Context, pt geo.Point) (*airquality.Conditions, error) {
	return &airquality.Conditions{Point: pt, PM25: 20, Grade: airquality.GradeModerate}, nil
}

// Heatmap returns a uniform 6x6 PM2.5 grid over the requested bounds, dense
// enough that any path inside the bounds has cells within estimation range.
func (p *fakeAirProvider) Heatmap(_ context.Context, b geo.Bounds, pollutant airquality.Pollutant) (*airquality.Heatmap, error) {
	p.mu.Lock()
	p.heatmapCalls++
	fail := p.failHeatmap
	p.mu.Unlock()

	if fail {
		return nil, airquality.ErrProviderUnavailable
	}

	const n = 6
	latStep := (b.NorthEast.Lat - b.SouthWest.Lat) / (n - 1)
	lonStep := (b.NorthEast.Lon - b.SouthWest.Lon) / (n - 1)
	cells := make([]airquality.HeatmapCell, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cells = append(cells, airquality.HeatmapCell{
				Point: geo.Point{
					Lat: b.SouthWest.Lat + latStep*float64(i),
					Lon: b.SouthWest.Lon + lonStep*float64(j),
				},
				Intensity: 40,
				Grade:     airquality.GradeUnhealthy,
			})
		}
	}
	return &airquality.Heatmap{Bounds: b, Pollutant: pollutant, Cells: cells}, nil
}

func (p *fakeAirProvider) Forecast(_ context.Context, pt geo.Point, _ int) (*airquality.Forecast, error) {
	return &airquality.Forecast{Point: pt}, nil
}

func (p *fakeAirProvider) Name() string { return "fake-air" }

func (p *fakeAirProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heatmapCalls
}

type fakeRouteProvider struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (p *fakeRouteProvider) Routes(_ context.Context, req routing.SearchRequest) (*routing.SearchResult, error) {
	p.mu.Lock()
	p.calls++
	fail := p.fail
	p.mu.Unlock()

	if fail {
		return nil, routing.ErrProviderUnavailable
	}

	waypoints := []geo.Point{req.Start, req.End}
	return &routing.SearchResult{
		Routes: []routing.Route{
			{
				ID:              "route_001",
				Kind:            routing.KindHealthiest,
				DurationMinutes: 25,
				DistanceKM:      2.1,
				AirScore:        85,
				Waypoints:       waypoints,
				Bounds:          geo.NewBounds(req.Start, req.End),
			},
			{
				ID:              "route_002",
				Kind:            routing.KindFastest,
				DurationMinutes: 18,
				DistanceKM:      1.9,
				AirScore:        60,
				Waypoints:       waypoints,
				Bounds:          geo.NewBounds(req.Start, req.End),
			},
		},
	}, nil
}

func (p *fakeRouteProvider) Name() string { return "fake-routes" }

func (p *fakeRouteProvider) SupportedKinds() []routing.Kind { return routing.AllKinds }

func (p *fakeRouteProvider) setFail(v bool) {
	p.mu.Lock()
	p.fail = v
	p.mu.Unlock()
}

func (p *fakeRouteProvider) routeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeGeocoder struct {
	mu      sync.Mutex
	results map[string]geo.Location
	queries int
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (geo.Location, error) {
	g.mu.Lock()
	g.queries++
	loc, ok := g.results[address]
	g.mu.Unlock()

	if !ok {
		return geo.Location{}, geocode.ErrNoMatch
	}
	return loc, nil
}

func (g *fakeGeocoder) Name() string { return "fake-geocoder" }

func (g *fakeGeocoder) queryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries
}

type testEnv struct {
	air       *fakeAirProvider
	route     *fakeRouteProvider
	geocoder  *fakeGeocoder
	prefsRepo *prefs.InMemoryRepository

	prefsSvc   *prefs.Service
	airSvc     *airquality.Service
	routeSvc   *routing.Service
	geoSvc     *geocode.Service
	searchRepo *search.InMemoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		air:        &fakeAirProvider{},
		route:      &fakeRouteProvider{},
		geocoder:   &fakeGeocoder{results: map[string]geo.Location{}},
		prefsRepo:  prefs.NewInMemoryRepository(),
		searchRepo: search.NewInMemoryRepository(),
	}
	logger := zerolog.New(io.Discard)
	env.prefsSvc = prefs.NewService(prefs.ServiceConfig{Repo: env.prefsRepo, Logger: logger})
	env.airSvc = airquality.NewService(airquality.ServiceConfig{Provider: env.air, Logger: logger})
	env.routeSvc = routing.NewService(routing.ServiceConfig{Provider: env.route, Logger: logger})
	env.geoSvc = geocode.NewService(geocode.ServiceConfig{Geocoder: env.geocoder, Logger: logger})

	t.Cleanup(func() {
		env.prefsSvc.Close()
		env.airSvc.Close()
		env.routeSvc.Close()
		env.geoSvc.Close()
	})
	return env
}

func (e *testEnv) config(deviceID uuid.UUID) session.Config {
	return session.Config{
		DeviceID:   deviceID,
		Prefs:      e.prefsSvc,
		SearchRepo: e.searchRepo,
		AirQuality: e.airSvc,
		Routing:    e.routeSvc,
		Geocoder:   e.geoSvc,
		Logger:     zerolog.New(io.Discard),
	}
}

func (e *testEnv) newSession(t *testing.T, deviceID uuid.UUID) *session.Session {
	t.Helper()
	s := session.New(context.Background(), e.config(deviceID))
	t.Cleanup(s.Close)
	return s
}

func setEndpoints(t *testing.T, s *session.Session) {
	t.Helper()
	require.NoError(t, s.SetStart(cityHall))
	require.NoError(t, s.SetEnd(namsan))
}

func TestSessionStartsWithDefaults(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t, uuid.New())

	st := s.State()
	assert.Equal(t, uint64(0), st.Version, "construction must not emit events")
	assert.InDelta(t, 37.5665, st.Camera.Center.Lat, 1e-9)
	assert.InDelta(t, 126.9780, st.Camera.Center.Lon, 1e-9)
	assert.Equal(t, 12.0, st.Camera.Zoom)
	assert.False(t, st.Toggles.ShowHeatmap)
	assert.False(t, st.Toggles.ShowFavorites)
	assert.False(t, st.CanSearch)
	assert.Empty(t, st.Results)
	assert.Nil(t, st.Heatmap)
	assert.Empty(t, st.Notifications)
	assert.Equal(t, 0, env.air.calls(), "heatmap off must not fetch an overlay")
}

func TestSessionRestoresStoredViewport(t *testing.T) {
	env := newTestEnv(t)
	deviceID := uuid.New()
	require.NoError(t, env.prefsRepo.Save(context.Background(), prefs.Snapshot{
		DeviceID:      deviceID,
		Center:        namsan.Point,
		Zoom:          14,
		ShowFavorites: true,
	}))

	s := env.newSession(t, deviceID)

	st := s.State()
	assert.Equal(t, uint64(0), st.Version, "restoring state must not emit events")
	assert.Equal(t, namsan.Point, st.Camera.Center)
	assert.Equal(t, 14.0, st.Camera.Zoom)
	assert.True(t, st.Toggles.ShowFavorites)
	assert.False(t, st.Toggles.ShowHeatmap)
}

func TestSessionRestoredHeatmapOnFetchesOverlay(t *testing.T) {
	env := newTestEnv(t)
	deviceID := uuid.New()
	require.NoError(t, env.prefsRepo.Save(context.Background(), prefs.Snapshot{
		DeviceID:    deviceID,
		Center:      cityHall.Point,
		Zoom:        12,
		ShowHeatmap: true,
	}))

	s := env.newSession(t, deviceID)

	require.Eventually(t, func() bool { return s.State().Heatmap != nil }, waitFor, tick)
	st := s.State()
	assert.Equal(t, airquality.PollutantPM25, st.Heatmap.Pollutant)
	assert.Equal(t, 1, env.air.calls())
	assert.GreaterOrEqual(t, st.Version, uint64(1), "the landed overlay must bump the version")
}

func TestSessionCameraMovePersistsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	deviceID := uuid.New()
	s := env.newSession(t, deviceID)

	require.NoError(t, s.SetCenter(namsan.Point))

	snap, err := env.prefsRepo.Load(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Equal(t, namsan.Point, snap.Center)
	assert.Equal(t, 12.0, snap.Zoom)

	s.SetZoom(15)
	snap, err = env.prefsRepo.Load(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, snap.Zoom)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestSessionHeatmapFollowsToggleAndCamera(t *testing.T) {
	env := newTestEnv(t)
	deviceID := uuid.New()
	s := env.newSession(t, deviceID)

	on := true
	s.SetToggles(&on, nil)
	require.Eventually(t, func() bool { return s.State().Heatmap != nil }, waitFor, tick)
	require.Equal(t, 1, env.air.calls())

	require.NoError(t, s.SetCenter(namsan.Point))
	require.Eventually(t, func() bool { return env.air.calls() == 2 }, waitFor, tick,
		"a camera move with the layer on must refresh the overlay")

	off := false
	s.SetToggles(&off, nil)
	assert.Nil(t, s.State().Heatmap, "turning the layer off must drop the overlay")

	snap, err := env.prefsRepo.Load(context.Background(), deviceID)
	require.NoError(t, err)
	assert.False(t, snap.ShowHeatmap)
}

func TestSessionHeatmapFailureNotifiesOnce(t *testing.T) {
	env := newTestEnv(t)
	env.air.failHeatmap = true
	s := env.newSession(t, uuid.New())

	on := true
	s.SetToggles(&on, nil)

	require.Eventually(t, func() bool { return len(s.Notifications()) == 1 }, waitFor, tick)
	n := s.Notifications()[0]
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Equal(t, "HEATMAP_UNAVAILABLE", n.Code)
	assert.Nil(t, s.State().Heatmap)
}

func TestSessionExecuteSearchHappyPath(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t, uuid.New())
	setEndpoints(t, s)

	require.True(t, s.State().CanSearch)
	require.NoError(t, s.ExecuteSearch())

	require.Eventually(t, func() bool {
		st := s.State()
		return !st.Searching && len(st.Results) == 2
	}, waitFor, tick)

	st := s.State()
	assert.Equal(t, "route_001", st.Results[0].ID, "results must be ranked by air score")
	assert.Equal(t, "route_001", st.OptimalRouteID)
	assert.Empty(t, st.LastError)
	assert.True(t, st.Bounds.Contains(cityHall.Point), "the camera must fit the results")
	assert.True(t, st.Bounds.Contains(namsan.Point))
	assert.Equal(t, 0, env.air.calls(), "heatmap off must stay off across the cascade")

	history, err := s.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Seoul City Hall", history[0].Start.Name)

	recents, err := s.Recents(context.Background())
	require.NoError(t, err)
	require.Len(t, recents, 2)
	assert.Equal(t, "Namsan", recents[0].Name, "the destination is the most recent location")
}

func TestSessionExecuteSearchNotReady(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t, uuid.New())

	err := s.ExecuteSearch()
	require.ErrorIs(t, err, search.ErrNotReady)
	assert.Equal(t, 0, env.route.routeCalls())
}

func TestSessionSearchFailureNotifiesOnce(t *testing.T) {
	env := newTestEnv(t)
	env.route.setFail(true)
	s := env.newSession(t, uuid.New())
	setEndpoints(t, s)

	require.NoError(t, s.ExecuteSearch())

	require.Eventually(t, func() bool { return len(s.Notifications()) == 1 }, waitFor, tick)
	n := s.Notifications()[0]
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Equal(t, "SEARCH_FAILED", n.Code)

	st := s.State()
	assert.False(t, st.Searching)
	assert.Empty(t, st.Results)
	assert.NotEmpty(t, st.LastError)

	require.NoError(t, s.DismissNotification(n.ID))
	assert.Empty(t, s.Notifications())
}

func TestSessionSelectRouteFitsAndMapClickClears(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t, uuid.New())
	setEndpoints(t, s)
	require.NoError(t, s.ExecuteSearch())
	require.Eventually(t, func() bool { return len(s.State().Results) == 2 }, waitFor, tick)

	require.NoError(t, s.SelectRoute("route_002"))
	st := s.State()
	assert.Equal(t, "route_002", st.SelectedRouteID)
	assert.True(t, st.Bounds.Contains(cityHall.Point))
	assert.True(t, st.Bounds.Contains(namsan.Point))

	require.ErrorIs(t, s.SelectRoute("route_404"), session.ErrUnknownRoute)

	s.MapClick(geo.Point{Lat: 37.56, Lon: 126.98})
	assert.Empty(t, s.State().SelectedRouteID, "a map click must clear the selection")
}

func TestSessionCommitAddressResolvesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.geocoder.results["seoul city hall"] = cityHall
	s := env.newSession(t, uuid.New())

	s.CommitAddress(rules.FieldStart, "Seoul  City Hall")

	require.Eventually(t, func() bool { return s.State().Start != nil }, waitFor, tick)
	st := s.State()
	assert.Equal(t, cityHall.Point, st.Start.Point)
	assert.Equal(t, 1, env.geocoder.queryCount())
}

func TestSessionCommitAddressFailureIsSilent(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t, uuid.New())

	s.CommitAddress(rules.FieldEnd, "nowhere special")

	require.Eventually(t, func() bool { return env.geocoder.queryCount() == 1 }, waitFor, tick)
	st := s.State()
	assert.Nil(t, st.End, "a failed resolution must leave the field unset")
	assert.Empty(t, st.Notifications, "geocoding failures never notify")
}

func TestSessionResultsEnrichedFromOverlay(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t, uuid.New())

	on := true
	s.SetToggles(&on, nil)
	require.Eventually(t, func() bool { return s.State().Heatmap != nil }, waitFor, tick)

	setEndpoints(t, s)
	require.NoError(t, s.ExecuteSearch())
	require.Eventually(t, func() bool { return len(s.State().Results) == 2 }, waitFor, tick)

	st := s.State()
	assert.InDelta(t, 40, st.Results[0].Exposure.PM25, 1e-9,
		"routes without engine exposure must be estimated from the overlay")
	assert.Zero(t, st.Results[0].Exposure.PM10)
}

func TestSessionFavoritesRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSession(t, uuid.New())

	fav, err := s.SaveFavorite(context.Background(), "Commute", cityHall, namsan)
	require.NoError(t, err)
	assert.Equal(t, "Commute", fav.Label)

	favorites, err := s.Favorites(context.Background())
	require.NoError(t, err)
	require.Len(t, favorites, 1)

	require.NoError(t, s.DeleteFavorite(context.Background(), fav.ID))
	favorites, err = s.Favorites(context.Background())
	require.NoError(t, err)
	assert.Empty(t, favorites)
}
