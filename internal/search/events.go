package search

import "github.com/cleanairroute/cleanairroute/internal/routing"

// ResultsUpdated is emitted when the latest search attempt lands its
// results. Results carries the ranked routes so listeners never need to
// read back through the store.
type ResultsUpdated struct {
	Seq     uint64
	Results []routing.Route
}

// SearchFailed is emitted when the latest search attempt fails. Stale
// attempts are discarded without any event.
type SearchFailed struct {
	Seq uint64
	Err error
}
