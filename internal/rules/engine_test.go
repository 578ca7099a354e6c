package rules_test

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/routing"
	"github.com/cleanairroute/cleanairroute/internal/rules"
	"github.com/cleanairroute/cleanairroute/internal/search"
	"github.com/cleanairroute/cleanairroute/internal/viewport"
)

type resolveCall struct {
	field rules.Field
	text  string
}

type mockActions struct {
	heatmapOn bool
	bounds    geo.Bounds
	routes    map[string]geo.Bounds

	heatmapRequests []geo.Bounds
	fitCalls        []geo.Bounds
	clearCalls      int
	resolveCalls    []resolveCall

	onFitBounds      func(geo.Bounds)
	onRequestHeatmap func(geo.Bounds)
}

func (m *mockActions) HeatmapEnabled() bool       { return m.heatmapOn }
func (m *mockActions) ViewportBounds() geo.Bounds { return m.bounds }

func (m *mockActions) FitBounds(b geo.Bounds) {
	m.fitCalls = append(m.fitCalls, b)
	if m.onFitBounds != nil {
		m.onFitBounds(b)
	}
}

func (m *mockActions) ClearSelection() { m.clearCalls++ }

func (m *mockActions) RouteBounds(id string) (geo.Bounds, bool) {
	b, ok := m.routes[id]
	return b, ok
}

func (m *mockActions) RequestHeatmap(b geo.Bounds) {
	m.heatmapRequests = append(m.heatmapRequests, b)
	if m.onRequestHeatmap != nil {
		m.onRequestHeatmap(b)
	}
}

func (m *mockActions) ResolveAddress(field rules.Field, text string) {
	m.resolveCalls = append(m.resolveCalls, resolveCall{field: field, text: text})
}

func newTestEngine(actions *mockActions, maxDepth int) *rules.Engine {
	return rules.New(rules.Config{
		Actions:  actions,
		MaxDepth: maxDepth,
		Logger:   zerolog.New(io.Discard),
	})
}

func seoulBounds(t *testing.T) geo.Bounds {
	t.Helper()
	b, err := geo.ParseBounds("37.40,126.70,37.70,127.20")
	require.NoError(t, err)
	return b
}

func TestEngine_HeatmapFollowsCamera(t *testing.T) {
	actions := &mockActions{heatmapOn: true}
	engine := newTestEngine(actions, 0)

	moved := seoulBounds(t)
	engine.Dispatch(viewport.CameraChanged{Bounds: moved})

	require.Len(t, actions.heatmapRequests, 1)
	assert.Equal(t, moved, actions.heatmapRequests[0])
}

func TestEngine_HeatmapOffIgnoresCamera(t *testing.T) {
	actions := &mockActions{heatmapOn: false}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(viewport.CameraChanged{Bounds: seoulBounds(t)})

	assert.Empty(t, actions.heatmapRequests)
}

func TestEngine_HeatmapToggleOnRequestsCurrentBounds(t *testing.T) {
	current := geo.NewBounds(
		geo.Point{Lat: 37.52, Lon: 126.95},
		geo.Point{Lat: 37.60, Lon: 127.02},
	)
	actions := &mockActions{heatmapOn: true, bounds: current}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(viewport.ToggleChanged{Toggle: viewport.ToggleHeatmap, On: true})

	require.Len(t, actions.heatmapRequests, 1)
	assert.Equal(t, current, actions.heatmapRequests[0])
}

func TestEngine_HeatmapToggleOffOrOtherToggleIgnored(t *testing.T) {
	actions := &mockActions{heatmapOn: true, bounds: seoulBounds(t)}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(viewport.ToggleChanged{Toggle: viewport.ToggleHeatmap, On: false})
	engine.Dispatch(viewport.ToggleChanged{Toggle: viewport.ToggleFavorites, On: true})

	assert.Empty(t, actions.heatmapRequests)
}

func TestEngine_SelectionFitsRouteBounds(t *testing.T) {
	routeBounds := geo.NewBounds(
		geo.Point{Lat: 37.5512, Lon: 126.9780},
		geo.Point{Lat: 37.5665, Lon: 126.9882},
	)
	actions := &mockActions{routes: map[string]geo.Bounds{"route_001": routeBounds}}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(viewport.SelectionChanged{RouteID: "route_001"})

	require.Len(t, actions.fitCalls, 1)
	assert.Equal(t, routeBounds, actions.fitCalls[0])
}

func TestEngine_SelectionClearedOrUnknownDoesNotFit(t *testing.T) {
	actions := &mockActions{routes: map[string]geo.Bounds{}}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(viewport.SelectionChanged{RouteID: ""})
	engine.Dispatch(viewport.SelectionChanged{RouteID: "route_404"})

	assert.Empty(t, actions.fitCalls)
}

func TestEngine_ResultsFitUnionOnce(t *testing.T) {
	a := geo.NewBounds(geo.Point{Lat: 37.50, Lon: 126.90}, geo.Point{Lat: 37.60, Lon: 127.00})
	b := geo.NewBounds(geo.Point{Lat: 37.55, Lon: 126.95}, geo.Point{Lat: 37.65, Lon: 127.10})

	actions := &mockActions{}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(search.ResultsUpdated{
		Seq: 1,
		Results: []routing.Route{
			{ID: "route_001", Bounds: a},
			{ID: "route_002", Bounds: b},
		},
	})

	require.Len(t, actions.fitCalls, 1, "all results must fit with a single camera move")
	want := geo.NewBounds(geo.Point{Lat: 37.50, Lon: 126.90}, geo.Point{Lat: 37.65, Lon: 127.10})
	assert.Equal(t, want, actions.fitCalls[0])
}

func TestEngine_EmptyOrZeroBoundsResultsDoNotFit(t *testing.T) {
	actions := &mockActions{}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(search.ResultsUpdated{Seq: 1})
	engine.Dispatch(search.ResultsUpdated{Seq: 2, Results: []routing.Route{{ID: "route_001"}}})

	assert.Empty(t, actions.fitCalls)
}

func TestEngine_MapClickClearsSelection(t *testing.T) {
	actions := &mockActions{}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(rules.MapClicked{Point: geo.Point{Lat: 37.56, Lon: 126.98}})

	assert.Equal(t, 1, actions.clearCalls)
}

func TestEngine_AddressCommittedResolves(t *testing.T) {
	actions := &mockActions{}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(rules.AddressCommitted{Field: rules.FieldEnd, Text: "남산서울타워"})

	require.Len(t, actions.resolveCalls, 1)
	assert.Equal(t, rules.FieldEnd, actions.resolveCalls[0].field)
	assert.Equal(t, "남산서울타워", actions.resolveCalls[0].text)
}

func TestEngine_EmptyAddressIgnored(t *testing.T) {
	actions := &mockActions{}
	engine := newTestEngine(actions, 0)

	engine.Dispatch(rules.AddressCommitted{Field: rules.FieldStart, Text: ""})

	assert.Empty(t, actions.resolveCalls)
}

// A selection fit moves the camera, and that camera event reaches only the
// heatmap rule: one fit, one heatmap request, no second fit.
func TestEngine_FitCascadesToHeatmapOnly(t *testing.T) {
	routeBounds := geo.NewBounds(
		geo.Point{Lat: 37.5512, Lon: 126.9780},
		geo.Point{Lat: 37.5665, Lon: 126.9882},
	)
	actions := &mockActions{
		heatmapOn: true,
		routes:    map[string]geo.Bounds{"route_001": routeBounds},
	}
	engine := newTestEngine(actions, 0)
	actions.onFitBounds = func(fitted geo.Bounds) {
		engine.Dispatch(viewport.CameraChanged{Bounds: fitted.PadFraction(0.1)})
	}

	engine.Dispatch(viewport.SelectionChanged{RouteID: "route_001"})

	assert.Len(t, actions.fitCalls, 1)
	assert.Len(t, actions.heatmapRequests, 1)
}

func TestEngine_DepthCapStopsRunawayCascade(t *testing.T) {
	actions := &mockActions{heatmapOn: true}
	engine := newTestEngine(actions, 3)
	actions.onRequestHeatmap = func(b geo.Bounds) {
		engine.Dispatch(viewport.CameraChanged{Bounds: b})
	}

	engine.Dispatch(viewport.CameraChanged{Bounds: seoulBounds(t)})

	assert.Len(t, actions.heatmapRequests, 3)
}
