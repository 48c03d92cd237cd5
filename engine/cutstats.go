package engine

import "github.com/rs/zerolog"

// SearchStats collects counts for one search call.
type SearchStats struct {
	Nodes        uint64
	TTHits       uint64
	BetaCutoffs  uint64
	DeadlineHits uint64
}

// Add accumulates o into s.
func (s *SearchStats) Add(o SearchStats) {
	s.Nodes += o.Nodes
	s.TTHits += o.TTHits
	s.BetaCutoffs += o.BetaCutoffs
	s.DeadlineHits += o.DeadlineHits
}

// MarshalZerologObject lets the stats be logged with Event.Object.
func (s SearchStats) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("nodes", s.Nodes).
		Uint64("tt_hits", s.TTHits).
		Uint64("beta_cutoffs", s.BetaCutoffs).
		Uint64("deadline_hits", s.DeadlineHits)
}
