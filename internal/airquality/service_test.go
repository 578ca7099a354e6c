package airquality_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// mockProvider is a test provider that returns configurable data.
type mockProvider struct {
	currentCalls  atomic.Int32
	heatmapCalls  atomic.Int32
	forecastCalls atomic.Int32

	lastHorizon atomic.Int32

	err error
}

func (m *mockProvider) Current(_ context.Context, p geo.Point) (*airquality.Conditions, error) {
	m.currentCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &airquality.Conditions{
		Point: p,
		PM25:  25.5,
		PM10:  45.2,
		O3:    0.045,
		Grade: airquality.GradeModerate,
		Score: airquality.Score(25.5, 45.2, 0.045),
	}, nil
}

func (m *mockProvider) Heatmap(_ context.Context, b geo.Bounds, pollutant airquality.Pollutant) (*airquality.Heatmap, error) {
	m.heatmapCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &airquality.Heatmap{
		Bounds:    b,
		Pollutant: pollutant,
		Cells: []airquality.HeatmapCell{
			{Point: geo.Point{Lat: 37.5665, Lon: 126.9780}, Intensity: 25.5, Grade: airquality.GradeModerate},
		},
	}, nil
}

func (m *mockProvider) Forecast(_ context.Context, p geo.Point, horizonHours int) (*airquality.Forecast, error) {
	m.forecastCalls.Add(1)
	m.lastHorizon.Store(int32(horizonHours))
	if m.err != nil {
		return nil, m.err
	}
	return &airquality.Forecast{Point: p}, nil
}

func (m *mockProvider) Name() string { return "mock" }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(provider airquality.Provider, clock *testClock) *airquality.Service {
	return airquality.NewService(airquality.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.New(io.Discard),
		Clock:    clock,
	})
}

func TestService_CurrentSharesGridCell(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, newTestClock())
	defer svc.Close()

	ctx := context.Background()

	// Both points fall inside the same 0.01 degree cache cell.
	_, err := svc.Current(ctx, geo.Point{Lat: 37.5665, Lon: 126.9780})
	require.NoError(t, err)
	_, err = svc.Current(ctx, geo.Point{Lat: 37.5669, Lon: 126.9789})
	require.NoError(t, err)

	assert.Equal(t, int32(1), provider.currentCalls.Load())

	// A point in a different cell triggers a fresh fetch.
	_, err = svc.Current(ctx, geo.Point{Lat: 37.5912, Lon: 126.9780})
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.currentCalls.Load())
}

func TestService_CurrentCacheExpiry(t *testing.T) {
	provider := &mockProvider{}
	clock := newTestClock()
	svc := airquality.NewService(airquality.ServiceConfig{
		Provider:   provider,
		Logger:     zerolog.New(io.Discard),
		CurrentTTL: 10 * time.Minute,
		StaleFor:   time.Nanosecond,
		Clock:      clock,
	})
	defer svc.Close()

	ctx := context.Background()
	p := geo.Point{Lat: 37.5665, Lon: 126.9780}

	_, err := svc.Current(ctx, p)
	require.NoError(t, err)

	// Within the TTL the cached value is served.
	clock.Advance(9 * time.Minute)
	_, err = svc.Current(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.currentCalls.Load())

	// Past the TTL and the stale window it fetches again.
	clock.Advance(2 * time.Minute)
	_, err = svc.Current(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.currentCalls.Load())
}

func TestService_CurrentInvalidCoordinates(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, newTestClock())
	defer svc.Close()

	_, err := svc.Current(context.Background(), geo.Point{Lat: 91, Lon: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, airquality.ErrInvalidCoordinates)
	assert.Equal(t, int32(0), provider.currentCalls.Load())
}

func TestService_HeatmapDefaultPollutant(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, newTestClock())
	defer svc.Close()

	bounds, err := geo.ParseBounds("37.40,126.70,37.70,127.20")
	require.NoError(t, err)

	heatmap, err := svc.HeatmapByBounds(context.Background(), bounds, "")
	require.NoError(t, err)
	assert.Equal(t, airquality.PollutantPM25, heatmap.Pollutant)
}

func TestService_HeatmapUnsupportedPollutant(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, newTestClock())
	defer svc.Close()

	bounds, err := geo.ParseBounds("37.40,126.70,37.70,127.20")
	require.NoError(t, err)

	_, err = svc.HeatmapByBounds(context.Background(), bounds, airquality.PollutantSO2)
	require.Error(t, err)
	assert.ErrorIs(t, err, airquality.ErrNoData)
	assert.Equal(t, int32(0), provider.heatmapCalls.Load())
}

func TestService_HeatmapCachesByQuantizedBounds(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, newTestClock())
	defer svc.Close()

	ctx := context.Background()

	a, err := geo.ParseBounds("37.401,126.701,37.701,127.201")
	require.NoError(t, err)
	b, err := geo.ParseBounds("37.404,126.704,37.704,127.204")
	require.NoError(t, err)

	_, err = svc.HeatmapByBounds(ctx, a, airquality.PollutantPM25)
	require.NoError(t, err)
	_, err = svc.HeatmapByBounds(ctx, b, airquality.PollutantPM25)
	require.NoError(t, err)

	// Both viewports quantize to the same tile key.
	assert.Equal(t, int32(1), provider.heatmapCalls.Load())

	// A different pollutant is a separate cache entry.
	_, err = svc.HeatmapByBounds(ctx, a, airquality.PollutantPM10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.heatmapCalls.Load())
}

func TestService_ForecastClampsHorizon(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, newTestClock())
	defer svc.Close()

	ctx := context.Background()
	p := geo.Point{Lat: 37.5665, Lon: 126.9780}

	_, err := svc.ForecastAt(ctx, p, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(72), provider.lastHorizon.Load())

	_, err = svc.ForecastAt(ctx, p, 500)
	require.NoError(t, err)
	assert.Equal(t, int32(168), provider.lastHorizon.Load())

	assert.Equal(t, int32(2), provider.forecastCalls.Load())
}

func TestService_StaleServedOnProviderError(t *testing.T) {
	provider := &mockProvider{}
	clock := newTestClock()
	svc := airquality.NewService(airquality.ServiceConfig{
		Provider:   provider,
		Logger:     zerolog.New(io.Discard),
		CurrentTTL: 10 * time.Minute,
		StaleFor:   30 * time.Minute,
		Clock:      clock,
	})
	defer svc.Close()

	ctx := context.Background()
	p := geo.Point{Lat: 37.5665, Lon: 126.9780}

	cond, err := svc.Current(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, cond)

	// Provider goes down while the entry is inside its stale window.
	provider.err = airquality.ErrProviderUnavailable
	clock.Advance(15 * time.Minute)

	stale, err := svc.Current(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, cond.PM25, stale.PM25)

	// Once the stale window lapses the error surfaces.
	clock.Advance(40 * time.Minute)
	_, err = svc.Current(ctx, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, airquality.ErrProviderUnavailable)
}

func TestService_CacheStats(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, newTestClock())
	defer svc.Close()

	ctx := context.Background()
	p := geo.Point{Lat: 37.5665, Lon: 126.9780}
	_, _ = svc.Current(ctx, p)
	_, _ = svc.Current(ctx, p)

	stats := svc.CacheStats()
	require.Len(t, stats, 3)
	assert.Equal(t, "aq_current", stats[0].Name)
	assert.Equal(t, int64(1), stats[0].Hits)
	assert.Equal(t, int64(1), stats[0].Misses)
}

func TestService_InvalidateAll(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, newTestClock())
	defer svc.Close()

	ctx := context.Background()
	p := geo.Point{Lat: 37.5665, Lon: 126.9780}

	_, err := svc.Current(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.currentCalls.Load())

	svc.InvalidateAll()

	_, err = svc.Current(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.currentCalls.Load())
}
