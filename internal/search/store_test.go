package search

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/routing"
)

var (
	cityHall = geo.Location{Name: "Seoul City Hall", Point: geo.Point{Lat: 37.5665, Lon: 126.9780}}
	namsan   = geo.Location{Name: "Namsan", Point: geo.Point{Lat: 37.5512, Lon: 126.9882}}

	fixedTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
)

func loc(name string, lat, lon float64) geo.Location {
	return geo.Location{Name: name, Point: geo.Point{Lat: lat, Lon: lon}}
}

func newTestStore(emit func(any)) (*Store, *InMemoryRepository) {
	repo := NewInMemoryRepository()
	store := NewStore(Config{
		DeviceID: uuid.New(),
		Repo:     repo,
		Clock:    func() time.Time { return fixedTime },
		Emit:     emit,
		Logger:   zerolog.New(io.Discard),
	})
	return store, repo
}

func rankedResult() *routing.SearchResult {
	return &routing.SearchResult{
		Routes: []routing.Route{
			{ID: "route_003", Kind: routing.KindHealthiest, DurationMinutes: 40, AirScore: 90},
			{ID: "route_001", Kind: routing.KindFastest, DurationMinutes: 20, AirScore: 60},
		},
		OptimalID: "route_003",
		Provider:  "test-provider",
	}
}

func TestStore_CanSearch(t *testing.T) {
	tests := []struct {
		name  string
		start *geo.Location
		end   *geo.Location
		want  bool
	}{
		{name: "both unset", want: false},
		{name: "only start", start: &cityHall, want: false},
		{name: "only end", end: &namsan, want: false},
		{name: "distinct points", start: &cityHall, end: &namsan, want: true},
		{
			name:  "identical points",
			start: &cityHall,
			end:   &geo.Location{Name: "Copy", Point: cityHall.Point},
			want:  false,
		},
		{
			name:  "same latitude only",
			start: &cityHall,
			end:   &geo.Location{Point: geo.Point{Lat: 37.5665, Lon: 127.1}},
			want:  true,
		},
		{
			name:  "same longitude only",
			start: &cityHall,
			end:   &geo.Location{Point: geo.Point{Lat: 37.6, Lon: 126.9780}},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(nil)
			if tt.start != nil {
				if err := store.SetStart(*tt.start); err != nil {
					t.Fatalf("SetStart: %v", err)
				}
			}
			if tt.end != nil {
				if err := store.SetEnd(*tt.end); err != nil {
					t.Fatalf("SetEnd: %v", err)
				}
			}
			if got := store.CanSearch(); got != tt.want {
				t.Errorf("CanSearch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_SetStart_RejectsInvalid(t *testing.T) {
	store, _ := newTestStore(nil)

	err := store.SetStart(loc("nowhere", 95, 200))
	if !errors.Is(err, geo.ErrInvalidCoordinates) {
		t.Fatalf("SetStart = %v, want ErrInvalidCoordinates", err)
	}
	if _, ok := store.Start(); ok {
		t.Error("start should stay unset after a rejected set")
	}
}

func TestStore_Swap(t *testing.T) {
	store, _ := newTestStore(nil)
	if err := store.SetStart(cityHall); err != nil {
		t.Fatal(err)
	}

	store.Swap()

	if _, ok := store.Start(); ok {
		t.Error("start should be unset after swapping a partial pair")
	}
	end, ok := store.End()
	if !ok || end.Name != cityHall.Name {
		t.Errorf("end = %+v (ok=%v), want the former start", end, ok)
	}

	if err := store.SetStart(namsan); err != nil {
		t.Fatal(err)
	}
	store.Swap()

	start, _ := store.Start()
	end, _ = store.End()
	if start.Name != cityHall.Name || end.Name != namsan.Name {
		t.Errorf("swap exchanged to start=%q end=%q", start.Name, end.Name)
	}
}

func TestStore_Begin_NotReady(t *testing.T) {
	store, _ := newTestStore(nil)

	if _, err := store.Begin(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Begin = %v, want ErrNotReady", err)
	}
	if store.Searching() {
		t.Error("store must not be searching after a rejected Begin")
	}
}

func TestStore_Begin_CapturesAttempt(t *testing.T) {
	store, _ := newTestStore(nil)
	mustSetEndpoints(t, store)

	att, err := store.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if att.Seq != 1 {
		t.Errorf("Seq = %d, want 1", att.Seq)
	}
	if !att.Start.Point.Equal(cityHall.Point) || !att.End.Point.Equal(namsan.Point) {
		t.Errorf("attempt endpoints = %+v -> %+v", att.Start, att.End)
	}
	if !store.Searching() {
		t.Error("store should be searching after Begin")
	}
	if store.LastError() != nil {
		t.Errorf("LastError = %v, want nil", store.LastError())
	}
}

func TestStore_Complete_AppliesLatest(t *testing.T) {
	var events []any
	store, repo := newTestStore(func(ev any) { events = append(events, ev) })
	mustSetEndpoints(t, store)

	att, err := store.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	applied := store.Complete(context.Background(), att.Seq, rankedResult(), nil)
	if !applied {
		t.Fatal("Complete should apply the latest attempt")
	}
	if store.Searching() {
		t.Error("searching should be false after completion")
	}

	results := store.Results()
	if len(results) != 2 || results[0].ID != "route_003" {
		t.Errorf("Results = %+v, want ranked routes with route_003 first", results)
	}
	if got := store.OptimalRouteID(); got != "route_003" {
		t.Errorf("OptimalRouteID = %q, want route_003", got)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	updated, ok := events[0].(ResultsUpdated)
	if !ok {
		t.Fatalf("event is %T, want ResultsUpdated", events[0])
	}
	if updated.Seq != att.Seq || len(updated.Results) != 2 {
		t.Errorf("ResultsUpdated = %+v", updated)
	}

	entries, err := repo.History(context.Background(), store.deviceID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	if entries[0].Start.Name != cityHall.Name || entries[0].End.Name != namsan.Name {
		t.Errorf("history entry = %+v", entries[0])
	}
	if !entries[0].ExecutedAt.Equal(fixedTime) {
		t.Errorf("ExecutedAt = %v, want %v", entries[0].ExecutedAt, fixedTime)
	}
}

func TestStore_Complete_DiscardsStale(t *testing.T) {
	var events []any
	store, repo := newTestStore(func(ev any) { events = append(events, ev) })
	mustSetEndpoints(t, store)

	first, err := store.Begin()
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Begin()
	if err != nil {
		t.Fatal(err)
	}

	stale := rankedResult()
	stale.Routes = stale.Routes[:1]

	if applied := store.Complete(context.Background(), first.Seq, stale, nil); applied {
		t.Fatal("stale completion must be discarded")
	}
	if !store.Searching() {
		t.Error("a discarded completion must not clear searching")
	}
	if len(store.Results()) != 0 {
		t.Error("a discarded completion must not set results")
	}
	if len(events) != 0 {
		t.Errorf("a discarded completion emitted %d events", len(events))
	}

	if applied := store.Complete(context.Background(), second.Seq, rankedResult(), nil); !applied {
		t.Fatal("latest completion should apply")
	}
	if len(store.Results()) != 2 {
		t.Errorf("Results = %d routes, want 2", len(store.Results()))
	}

	entries, _ := repo.History(context.Background(), store.deviceID, 0)
	if len(entries) != 1 {
		t.Errorf("history has %d entries, want 1 (stale attempt discarded)", len(entries))
	}
}

func TestStore_Complete_Failure(t *testing.T) {
	var events []any
	store, repo := newTestStore(func(ev any) { events = append(events, ev) })
	mustSetEndpoints(t, store)

	att, err := store.Begin()
	if err != nil {
		t.Fatal(err)
	}

	fetchErr := routing.ErrProviderUnavailable
	if applied := store.Complete(context.Background(), att.Seq, nil, fetchErr); !applied {
		t.Fatal("failure of the latest attempt should apply")
	}

	if store.Searching() {
		t.Error("searching should be false after a failed completion")
	}
	if len(store.Results()) != 0 {
		t.Error("results should be cleared on failure")
	}
	if store.OptimalRouteID() != "" {
		t.Error("optimal route id should be cleared on failure")
	}
	if !errors.Is(store.LastError(), routing.ErrProviderUnavailable) {
		t.Errorf("LastError = %v", store.LastError())
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	failed, ok := events[0].(SearchFailed)
	if !ok {
		t.Fatalf("event is %T, want SearchFailed", events[0])
	}
	if failed.Seq != att.Seq || !errors.Is(failed.Err, routing.ErrProviderUnavailable) {
		t.Errorf("SearchFailed = %+v", failed)
	}

	entries, _ := repo.History(context.Background(), store.deviceID, 0)
	if len(entries) != 0 {
		t.Error("failed searches must not be recorded in history")
	}
}

func TestStore_Complete_StaleFailureIsSilent(t *testing.T) {
	var events []any
	store, _ := newTestStore(func(ev any) { events = append(events, ev) })
	mustSetEndpoints(t, store)

	first, err := store.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Begin(); err != nil {
		t.Fatal(err)
	}

	if applied := store.Complete(context.Background(), first.Seq, nil, routing.ErrNoRouteFound); applied {
		t.Fatal("stale failure must be discarded")
	}
	if store.LastError() != nil {
		t.Errorf("LastError = %v, want nil", store.LastError())
	}
	if len(events) != 0 {
		t.Errorf("stale failure emitted %d events", len(events))
	}
}

func TestStore_Recents(t *testing.T) {
	store, repo := newTestStore(nil)

	a := loc("A", 37.50, 127.00)
	b := loc("B", 37.51, 127.01)
	c := loc("C", 37.52, 127.02)

	ctx := context.Background()
	seed := []struct {
		start, end geo.Location
		at         time.Time
	}{
		{a, b, fixedTime},
		{b, c, fixedTime.Add(time.Minute)},
		{a, c, fixedTime.Add(2 * time.Minute)},
	}
	for _, s := range seed {
		entry := HistoryEntry{
			ID: uuid.New(), DeviceID: store.deviceID,
			Start: s.start, End: s.end, ExecutedAt: s.at,
		}
		if err := repo.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	recents, err := store.Recents(ctx)
	if err != nil {
		t.Fatalf("Recents: %v", err)
	}

	wantNames := []string{"C", "A", "B"}
	if len(recents) != len(wantNames) {
		t.Fatalf("Recents returned %d locations, want %d", len(recents), len(wantNames))
	}
	for i, name := range wantNames {
		if recents[i].Name != name {
			t.Errorf("recents[%d] = %q, want %q", i, recents[i].Name, name)
		}
	}
}

func TestStore_Recents_Cap(t *testing.T) {
	store, repo := newTestStore(nil)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		entry := HistoryEntry{
			ID:         uuid.New(),
			DeviceID:   store.deviceID,
			Start:      loc("S", 37.40+float64(i)*0.01, 127.00),
			End:        loc("E", 37.40+float64(i)*0.01, 127.10),
			ExecutedAt: fixedTime.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.AppendHistory(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	recents, err := store.Recents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recents) != MaxRecents {
		t.Errorf("Recents returned %d locations, want %d", len(recents), MaxRecents)
	}
}

func TestStore_SaveFavorite_RejectsInvalid(t *testing.T) {
	store, _ := newTestStore(nil)

	_, err := store.SaveFavorite(context.Background(), "bad", loc("x", 95, 0), namsan)
	if !errors.Is(err, geo.ErrInvalidCoordinates) {
		t.Fatalf("SaveFavorite = %v, want ErrInvalidCoordinates", err)
	}
}

func mustSetEndpoints(t *testing.T, store *Store) {
	t.Helper()
	if err := store.SetStart(cityHall); err != nil {
		t.Fatal(err)
	}
	if err := store.SetEnd(namsan); err != nil {
		t.Fatal(err)
	}
}
