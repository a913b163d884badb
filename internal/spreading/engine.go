// Package spreading propagates a walker's commitments through the
// ideological graph. Accepted positions seed positive activation, rejected
// ones negative; energy flows along edges, decaying with distance, and
// contradicts edges flip its sign. The result ranks the positions a walker
// is most likely to hold, or to refuse, next.
package spreading

import (
	"context"
	"math"
	"sort"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// Config holds tunable parameters for the spreading engine.
type Config struct {
	// MaxSteps is the number of propagation iterations. Default: 3.
	MaxSteps int

	// DecayFactor is the energy retention per hop. Default: 0.5.
	DecayFactor float64

	// SpreadFactor is the fraction of a position's activation that flows
	// through each edge. Default: 0.8.
	SpreadFactor float64

	// MinActivation is the magnitude below which positions are dropped. Default: 0.01.
	MinActivation float64

	// Inhibition sharpens the result. Nil disables it.
	Inhibition *InhibitionConfig
}

// DefaultConfig returns the default spreading configuration.
func DefaultConfig() Config {
	inh := DefaultInhibitionConfig()
	return Config{
		MaxSteps:      3,
		DecayFactor:   0.5,
		SpreadFactor:  0.8,
		MinActivation: 0.01,
		Inhibition:    &inh,
	}
}

// Seed is an initial activation anchor. Activation is signed: positive for
// an accepted position, negative for a rejected one.
type Seed struct {
	PositionID string
	Activation float64
	Source     string
}

// Result is a position's activation after propagation.
type Result struct {
	PositionID string  `json:"position_id"`
	Activation float64 `json:"activation"`
	Distance   int     `json:"distance"`
	SeedSource string  `json:"seed_source"`
}

// Engine performs spreading activation over a graph snapshot.
// It holds no state between calls.
type Engine struct {
	config Config
}

// NewEngine creates a spreading engine.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

type link struct {
	to     string
	weight float64
	sign   float64
}

// edgeSign says how activation crosses an edge of type t. Zero means the
// edge carries none: priorities and fork markers say nothing about
// co-holding.
func edgeSign(t models.EdgeType) float64 {
	switch t {
	case models.EdgeContradicts:
		return -1
	case models.EdgePrioritizesOver, models.EdgeFork:
		return 0
	default:
		return 1
	}
}

// adjacency builds an undirected view of the snapshot restricted to edges
// whose endpoints are both positions.
func adjacency(snap *graph.Snapshot) map[string][]link {
	adj := make(map[string][]link)
	for _, e := range snap.Edges() {
		sign := edgeSign(e.Type)
		if sign == 0 || e.SourceID == e.TargetID {
			continue
		}
		if _, ok := snap.Position(e.SourceID); !ok {
			continue
		}
		if _, ok := snap.Position(e.TargetID); !ok {
			continue
		}
		adj[e.SourceID] = append(adj[e.SourceID], link{to: e.TargetID, weight: e.Weight, sign: sign})
		adj[e.TargetID] = append(adj[e.TargetID], link{to: e.SourceID, weight: e.Weight, sign: sign})
	}
	return adj
}

// Activate spreads activation from seeds and returns every position whose
// final activation magnitude reaches MinActivation, strongest first.
// Seeds keep their initial activation throughout.
func (e *Engine) Activate(ctx context.Context, src graph.Source, seeds []Seed) ([]Result, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	snap := src.Snapshot()
	adj := adjacency(snap)

	activation := make(map[string]float64)
	distance := make(map[string]int)
	seedSource := make(map[string]string)
	fixed := make(map[string]bool)

	for _, s := range seeds {
		if _, ok := snap.Position(s.PositionID); !ok {
			continue
		}
		activation[s.PositionID] = s.Activation
		distance[s.PositionID] = 0
		seedSource[s.PositionID] = s.Source
		fixed[s.PositionID] = true
	}
	if len(activation) == 0 {
		return nil, nil
	}

	for step := 0; step < e.config.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := make(map[string]float64, len(activation))
		for id, act := range activation {
			next[id] = act
		}

		for _, nodeID := range sortedKeys(activation) {
			nodeAct := activation[nodeID]
			if math.Abs(nodeAct) < e.config.MinActivation {
				continue
			}
			links := adj[nodeID]
			if len(links) == 0 {
				continue
			}
			degree := float64(len(links))

			for _, l := range links {
				if fixed[l.to] {
					continue
				}
				energy := nodeAct * e.config.SpreadFactor * l.weight * l.sign / degree
				energy *= e.config.DecayFactor

				// Strongest signal wins; summing would run away on dense clusters.
				if math.Abs(energy) > math.Abs(next[l.to]) {
					next[l.to] = energy
				}

				d := distance[nodeID] + 1
				if existing, ok := distance[l.to]; !ok || d < existing {
					distance[l.to] = d
					seedSource[l.to] = seedSource[nodeID]
				}
			}
		}
		activation = next
	}

	if e.config.Inhibition != nil {
		activation = inhibitSigned(activation, *e.config.Inhibition)
	}

	results := make([]Result, 0, len(activation))
	for id, act := range activation {
		act = squash(act)
		if math.Abs(act) < e.config.MinActivation {
			continue
		}
		results = append(results, Result{
			PositionID: id,
			Activation: act,
			Distance:   distance[id],
			SeedSource: seedSource[id],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Activation != results[j].Activation {
			return results[i].Activation > results[j].Activation
		}
		return results[i].PositionID < results[j].PositionID
	})
	return results, nil
}

// sigmoid maps raw activation magnitude into (0, 1), centered at 0.3.
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-10.0*(x-0.3)))
}

// squash applies the sigmoid to |x| and restores the sign.
func squash(x float64) float64 {
	if x < 0 {
		return -sigmoid(-x)
	}
	return sigmoid(x)
}

// inhibitSigned runs lateral inhibition on magnitudes and keeps each sign.
func inhibitSigned(activation map[string]float64, cfg InhibitionConfig) map[string]float64 {
	mags := make(map[string]float64, len(activation))
	for id, act := range activation {
		mags[id] = math.Abs(act)
	}
	mags = ApplyInhibition(mags, cfg)
	out := make(map[string]float64, len(mags))
	for id, m := range mags {
		if activation[id] < 0 {
			m = -m
		}
		out[id] = m
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
