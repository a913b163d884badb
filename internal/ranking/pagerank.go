// Package ranking computes structural importance of positions in the graph.
package ranking

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/nvandessel/ideograph/internal/graph"
)

// PageRankConfig holds configuration for PageRank computation.
type PageRankConfig struct {
	// DampingFactor (d) is the probability of following an edge vs. teleporting.
	// Standard value: 0.85.
	DampingFactor float64

	// MaxIterations is the maximum number of power iteration steps. Default: 100.
	MaxIterations int

	// Tolerance is the convergence threshold. Default: 1e-6.
	Tolerance float64

	// Weighted distributes a node's score across its links in proportion to
	// edge weight instead of evenly. Parallel edges of different types
	// between the same pair add up.
	Weighted bool
}

// DefaultPageRankConfig returns the default PageRank configuration.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

type link struct {
	from   string
	weight float64
}

// ComputePageRank calculates PageRank scores for every position in the graph.
// Returns a map of position ID to PageRank score (0.0-1.0, normalized).
//
// Algorithm: Standard power iteration
//  1. Initialize all nodes with score = 1/N
//  2. For each iteration:
//     PR(v) = (1-d)/N + d * sum(PR(u)*w(u,v)/outWeight(u)) for all u linking to v
//  3. Converge when max change < Tolerance
//  4. Normalize to [0, 1] range
//
// Edge directions: all edge types, contradictions included, are treated as
// bidirectional links. A contested position is as central as an endorsed one.
func ComputePageRank(ctx context.Context, src graph.Source, config PageRankConfig) (map[string]float64, error) {
	snap := src.Snapshot()
	positions := snap.Positions()

	n := len(positions)
	if n == 0 {
		return make(map[string]float64), nil
	}

	nodeIDs := make([]string, 0, n)
	for _, p := range positions {
		nodeIDs = append(nodeIDs, p.ID)
	}

	// Build adjacency from edges. Treat all edges as bidirectional:
	// an edge A->B creates links A->B and B->A. Self-loops are ignored.
	linkWeight := make(map[[2]string]float64)
	var linkOrder [][2]string
	addLink := func(from, to string, w float64) {
		key := [2]string{from, to}
		if _, ok := linkWeight[key]; !ok {
			linkOrder = append(linkOrder, key)
		}
		linkWeight[key] += w
	}
	for _, e := range snap.Edges() {
		if e.SourceID == e.TargetID {
			continue
		}
		if _, ok := snap.Position(e.SourceID); !ok {
			continue
		}
		if _, ok := snap.Position(e.TargetID); !ok {
			continue
		}
		w := 1.0
		if config.Weighted {
			w = e.Weight
		}
		addLink(e.SourceID, e.TargetID, w)
		addLink(e.TargetID, e.SourceID, w)
	}

	inbound := make(map[string][]link, n)
	outWeight := make(map[string]float64, n)
	for _, key := range linkOrder {
		from, to := key[0], key[1]
		w := linkWeight[key]
		if !config.Weighted {
			w = 1
		}
		inbound[to] = append(inbound[to], link{from: from, weight: w})
		outWeight[from] += w
	}

	// Power iteration.
	d := config.DampingFactor
	nf := float64(n)
	scores := make(map[string]float64, n)
	for _, id := range nodeIDs {
		scores[id] = 1.0 / nf
	}

	for iter := 0; iter < config.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("computing pagerank: %w", err)
		}

		newScores := make(map[string]float64, n)
		maxDelta := 0.0

		for _, v := range nodeIDs {
			sum := 0.0
			for _, l := range inbound[v] {
				if out := outWeight[l.from]; out > 0 {
					sum += scores[l.from] * l.weight / out
				}
			}

			newScore := (1.0-d)/nf + d*sum
			newScores[v] = newScore

			delta := math.Abs(newScore - scores[v])
			if delta > maxDelta {
				maxDelta = delta
			}
		}

		scores = newScores

		if maxDelta < config.Tolerance {
			break
		}
	}

	// Normalize to [0, 1] by dividing by max score.
	maxScore := 0.0
	for _, score := range scores {
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore > 0 {
		for id, score := range scores {
			scores[id] = score / maxScore
		}
	}

	return scores, nil
}

// Ranked is a position ID with its score.
type Ranked struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Top returns the n highest scores, best first, ties broken by ID.
// A non-positive n returns all of them.
func Top(scores map[string]float64, n int) []Ranked {
	out := make([]Ranked, 0, len(scores))
	for id, s := range scores {
		out = append(out, Ranked{ID: id, Score: s})
	}
	slices.SortFunc(out, func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
