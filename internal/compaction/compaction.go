// Package compaction distills the fork tree down to its decisive forks: the
// few choices that determine most of a worldview. The null hypothesis is a
// linear tree where everyone thinks alike; the structure of divergence is
// the signal.
package compaction

import (
	"math"
	"sort"
	"strings"

	"github.com/nvandessel/ideograph/internal/forks"
	"github.com/nvandessel/ideograph/internal/models"
)

// DefaultTargetAccuracy is the coverage MinimalSet aims for by default.
const DefaultTargetAccuracy = 0.8

// ForkDecisiveness is how strongly a fork determines downstream positions.
type ForkDecisiveness struct {
	ForkID string `json:"fork_id"`

	// DownstreamPositions counts the fork's poles plus two per descendant fork.
	DownstreamPositions int     `json:"downstream_positions"`
	PredictionAccuracy  float64 `json:"prediction_accuracy"`
	InformationGain     float64 `json:"information_gain"`

	Betweenness float64 `json:"betweenness"`
	Depth       int     `json:"depth"`

	VarianceExplained float64 `json:"variance_explained"`

	// ArchetypeAlignment is the fraction of catalog archetypes defined in part by this fork.
	ArchetypeAlignment float64 `json:"archetype_alignment"`
}

// DecisivenessScore combines the measures:
//
//	0.3*gain + 0.25*accuracy + 0.2*min(1, downstream/50) + 0.15*variance + 0.1*betweenness
func (d ForkDecisiveness) DecisivenessScore() float64 {
	return d.InformationGain*0.3 +
		d.PredictionAccuracy*0.25 +
		math.Min(1, float64(d.DownstreamPositions)/50)*0.2 +
		d.VarianceExplained*0.15 +
		d.Betweenness*0.1
}

// Compactor scores the forks of a tree.
type Compactor struct {
	tree       *forks.Tree
	archetypes []Archetype
}

// NewCompactor creates a compactor over tree using the built-in archetypes.
func NewCompactor(tree *forks.Tree) *Compactor {
	return &Compactor{tree: tree, archetypes: Archetypes()}
}

// Analyze scores every fork, most decisive first. Prediction accuracy and
// variance explained need walkers; without them both are 0.
func (c *Compactor) Analyze(walkers []*models.Walker) []ForkDecisiveness {
	maxDepth := c.tree.MaxDepth()
	accepted := make([]map[string]bool, len(walkers))
	for i, w := range walkers {
		accepted[i] = w.AcceptedSet()
	}

	out := make([]ForkDecisiveness, 0, c.tree.Len())
	for _, f := range c.tree.Forks() {
		d := ForkDecisiveness{
			ForkID:              f.ID,
			DownstreamPositions: c.downstream(f.ID),
			Depth:               c.tree.Depth(f.ID),
			Betweenness:         c.betweenness(f.ID, maxDepth),
			InformationGain:     c.informationGain(f),
			ArchetypeAlignment:  c.archetypeAlignment(f.ID),
		}
		if len(walkers) > 0 {
			d.PredictionAccuracy = c.predictionAccuracy(f, accepted)
			d.VarianceExplained = varianceExplained(f, accepted)
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DecisivenessScore() > out[j].DecisivenessScore() })
	return out
}

func (c *Compactor) downstream(id string) int {
	return 2 + 2*len(c.tree.Descendants(id))
}

// betweenness approximates centrality as children * 0.2 scaled by a factor
// that peaks at the tree's mid-depth.
func (c *Compactor) betweenness(id string, maxDepth int) float64 {
	if _, ok := c.tree.Fork(id); !ok {
		return 0
	}
	children := len(c.tree.Children(id))
	half := float64(maxDepth) / 2
	factor := 1 - math.Abs(float64(c.tree.Depth(id))-half)/(half+1)
	return math.Min(1, float64(children)*0.2*factor)
}

func (c *Compactor) informationGain(f forks.Fork) float64 {
	maxDownstream := float64(c.tree.Len() * 2)
	return f.Polarization*0.4 + float64(c.downstream(f.ID))/maxDownstream*0.3 + f.Importance*0.3
}

func (c *Compactor) archetypeAlignment(id string) float64 {
	if len(c.archetypes) == 0 {
		return 0
	}
	n := 0
	for _, a := range c.archetypes {
		if _, ok := a.Choice(id); ok {
			n++
		}
	}
	return float64(n) / float64(len(c.archetypes))
}

// sideTaken reports the pole of f a walker accepted, preferring A.
func sideTaken(f forks.Fork, accepted map[string]bool) (forks.Pole, bool) {
	switch {
	case accepted[f.PoleID(forks.PoleA)]:
		return forks.PoleA, true
	case accepted[f.PoleID(forks.PoleB)]:
		return forks.PoleB, true
	}
	return "", false
}

// predictionAccuracy is the fraction of (walker, child fork) pairs where the
// traditions of the walker's side on f overlap the traditions of the side it
// took on the child. It is 0.5 when nothing can be measured.
func (c *Compactor) predictionAccuracy(f forks.Fork, accepted []map[string]bool) float64 {
	children := c.tree.Children(f.ID)
	if len(children) == 0 {
		return 0.5
	}
	correct, total := 0, 0
	for _, acc := range accepted {
		parentSide, ok := sideTaken(f, acc)
		if !ok {
			continue
		}
		parentTraditions := f.Traditions(parentSide)
		for _, child := range children {
			childSide, ok := sideTaken(child, acc)
			if !ok {
				continue
			}
			if overlaps(parentTraditions, child.Traditions(childSide)) {
				correct++
			}
			total++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(correct) / float64(total)
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}

// varianceExplained is 4p(1-p) where p is the share of decided walkers on
// pole A; it peaks at an even split.
func varianceExplained(f forks.Fork, accepted []map[string]bool) float64 {
	a, b := 0, 0
	for _, acc := range accepted {
		side, ok := sideTaken(f, acc)
		if !ok {
			continue
		}
		if side == forks.PoleA {
			a++
		} else {
			b++
		}
	}
	if a+b == 0 {
		return 0
	}
	p := float64(a) / float64(a+b)
	return 4 * p * (1 - p)
}

// MinimalSet returns the fewest forks, in decisiveness order, whose
// accumulated coverage reaches target. Coverage grows as
// cum += gain*(1-cum), a diminishing-returns approximation.
func (c *Compactor) MinimalSet(walkers []*models.Walker, target float64) []forks.Fork {
	return c.minimalSet(c.Analyze(walkers), target)
}

func (c *Compactor) minimalSet(ranked []ForkDecisiveness, target float64) []forks.Fork {
	var out []forks.Fork
	cum := 0.0
	for _, d := range ranked {
		f, ok := c.tree.Fork(d.ForkID)
		if !ok {
			continue
		}
		out = append(out, f)
		cum += d.InformationGain * (1 - cum)
		if cum >= target {
			break
		}
	}
	return out
}

// ExtractArchetypes returns up to n archetypes from the catalog.
func (c *Compactor) ExtractArchetypes(n int) []Archetype {
	return c.archetypes[:min(max(n, 0), len(c.archetypes))]
}

// DecisiveFork summarizes one fork in a structure report.
type DecisiveFork struct {
	ForkID          string  `json:"fork_id"`
	Question        string  `json:"question"`
	Decisiveness    float64 `json:"decisiveness"`
	InformationGain float64 `json:"information_gain"`
}

// Structure describes how linear or divergent a fork tree is.
type Structure struct {
	TotalForks     int            `json:"total_forks"`
	MaxDepth       int            `json:"max_depth"`
	AvgBranching   float64        `json:"avg_branching_factor"`
	Linearity      float64        `json:"linearity_score"`
	IsDivergent    bool           `json:"is_divergent"`
	TopDecisive    []DecisiveFork `json:"top_decisive_forks"`
	MinimalSetSize int            `json:"minimal_set_size"`
	Archetypes     []string       `json:"archetypes"`
}

// AnalyzeStructure tests the tree against the linear null hypothesis.
// Linearity is 1/average branching over forks with children; below 0.8 the
// tree is divergent.
func (c *Compactor) AnalyzeStructure() Structure {
	ranked := c.Analyze(nil)

	var branches, branching int
	for _, f := range c.tree.Forks() {
		if n := len(c.tree.Children(f.ID)); n > 0 {
			branches += n
			branching++
		}
	}
	avg := 1.0
	if branching > 0 {
		avg = float64(branches) / float64(branching)
	}
	linearity := 1 / avg

	s := Structure{
		TotalForks:     c.tree.Len(),
		MaxDepth:       c.tree.MaxDepth(),
		AvgBranching:   avg,
		Linearity:      linearity,
		IsDivergent:    linearity < 0.8,
		MinimalSetSize: len(c.minimalSet(ranked, DefaultTargetAccuracy)),
	}
	for _, d := range ranked[:min(5, len(ranked))] {
		f, _ := c.tree.Fork(d.ForkID)
		s.TopDecisive = append(s.TopDecisive, DecisiveFork{
			ForkID:          d.ForkID,
			Question:        headRunes(f.Question, 50) + "...",
			Decisiveness:    d.DecisivenessScore(),
			InformationGain: d.InformationGain,
		})
	}
	for _, a := range c.ExtractArchetypes(len(c.archetypes)) {
		s.Archetypes = append(s.Archetypes, a.Name)
	}
	return s
}

func headRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	return string(r[:min(n, len(r))])
}
