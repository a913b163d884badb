package spreading

import (
	"context"
	"sort"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// WalkerSeeds turns a walker's choices into seeds. The latest choice on a
// position wins; accepted choices seed +confidence, rejected ones
// -confidence. Zero-confidence choices seed nothing.
func WalkerSeeds(w *models.Walker) []Seed {
	if w == nil {
		return nil
	}
	last := make(map[string]models.Choice, len(w.Choices))
	for _, c := range w.Choices {
		last[c.PositionID] = c
	}

	seeds := make([]Seed, 0, len(last))
	for id, c := range last {
		if c.Confidence == 0 {
			continue
		}
		s := Seed{PositionID: id, Activation: c.Confidence, Source: "accepted:" + id}
		if !c.Accepted {
			s.Activation = -c.Confidence
			s.Source = "rejected:" + id
		}
		seeds = append(seeds, s)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].PositionID < seeds[j].PositionID })
	return seeds
}

// Propagate spreads w's commitments through src and returns the positions
// w has not visited yet. Positive activation predicts acceptance,
// negative predicts rejection.
func (e *Engine) Propagate(ctx context.Context, src graph.Source, w *models.Walker) ([]Result, error) {
	results, err := e.Activate(ctx, src, WalkerSeeds(w))
	if err != nil {
		return nil, err
	}
	out := results[:0]
	for _, r := range results {
		if w.HasVisited(r.PositionID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
