package tension

import (
	"fmt"
	"sort"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// Type classifies a tension point.
type Type string

const (
	TypeImbalancedTriad    Type = "imbalanced_triad"    // A implies B implies C, but A contradicts C
	TypePriorityConflict   Type = "priority_conflict"   // both sides of a prioritizes_over edge accepted
	TypeLevelMismatch      Type = "level_mismatch"      // a policy held without its axiom
	TypeTrajectoryFriction Type = "trajectory_friction" // movement against momentum; not yet detected
)

// maxTriads caps how many imbalanced triads feed FindProductiveTensions.
const maxTriads = 5

// Score is one tension point in a walker's belief system.
type Score struct {
	Type        Type     `json:"tension_type"`
	PositionIDs []string `json:"positions_involved"`
	// Score is the tension, 0 (none) to 1.
	Score float64 `json:"score"`
	// Tractability is how easily the positions shift, 0 to 1.
	Tractability float64 `json:"tractability"`
	Reasoning    string  `json:"reasoning,omitempty"`
}

// ChallengeValue is Score * Tractability.
func (s Score) ChallengeValue() float64 { return s.Score * s.Tractability }

// Challenge is a position ranked by how productive it would be to challenge it.
type Challenge struct {
	Position models.Position `json:"position"`
	Score    float64         `json:"score"`
}

// Analyzer finds productive tension for walkers against snapshots of a graph.
type Analyzer struct {
	src graph.Source
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(src graph.Source) *Analyzer {
	return &Analyzer{src: src}
}

// BalanceState builds the walker's weighted balance state from its full
// choice history and computes SGM, extremeness and constraint.
func (a *Analyzer) BalanceState(w *models.Walker) *BalanceState {
	return balanceState(a.src.Snapshot().Edges(), w)
}

func balanceState(edges []models.Edge, w *models.Walker) *BalanceState {
	state := NewBalanceState()
	for _, c := range w.Choices {
		sign := -1.0
		if c.Accepted {
			sign = 1
		}
		state.Set(c.PositionID, sign*c.Confidence)
	}
	state.CalculateSGM(edges)
	state.CalculateExtremeness()
	state.CalculateConstraint(edges)
	return state
}

// FindProductiveTensions returns the walker's top imbalanced triads, priority
// conflicts and level mismatches, highest challenge value first.
func (a *Analyzer) FindProductiveTensions(w *models.Walker) []Score {
	s := a.src.Snapshot()
	edges := s.Edges()

	var out []Score
	triads := balanceState(edges, w).ImbalancedTriads(edges)
	for _, t := range triads[:min(maxTriads, len(triads))] {
		out = append(out, Score{
			Type:         TypeImbalancedTriad,
			PositionIDs:  t.Members(),
			Score:        t.Strength,
			Tractability: tractability(s, t.Members(), w),
			Reasoning:    fmt.Sprintf("Imbalanced triad: %s, %s, %s", t.A, t.B, t.C),
		})
	}
	out = append(out, priorityConflicts(s, w)...)
	out = append(out, levelMismatches(s, w)...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].ChallengeValue() > out[j].ChallengeValue() })
	return out
}

func priorityConflicts(s *graph.Snapshot, w *models.Walker) []Score {
	accepted := w.AcceptedSet()
	var out []Score
	for _, e := range s.Edges() {
		if e.Type != models.EdgePrioritizesOver || !accepted[e.SourceID] || !accepted[e.TargetID] {
			continue
		}
		src, ok1 := s.Position(e.SourceID)
		tgt, ok2 := s.Position(e.TargetID)
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, Score{
			Type:         TypePriorityConflict,
			PositionIDs:  []string{e.SourceID, e.TargetID},
			Score:        e.Weight,
			Tractability: 0.7,
			Reasoning:    fmt.Sprintf("'%s...' typically prioritized over '%s...'", head(src.Claim, 30), head(tgt.Claim, 30)),
		})
	}
	return out
}

func levelMismatches(s *graph.Snapshot, w *models.Walker) []Score {
	accepted := w.AcceptedSet()
	seen := make(map[string]bool)
	var out []Score
	for _, id := range w.Accepted() {
		if seen[id] {
			continue
		}
		seen[id] = true
		pos, ok := s.Position(id)
		if !ok || pos.Level != models.LevelPolicy {
			continue
		}
		supported := false
		for _, parent := range s.ImpliedBy(id) {
			if parent.Level == models.LevelAxiom && accepted[parent.ID] {
				supported = true
				break
			}
		}
		if supported {
			continue
		}
		out = append(out, Score{
			Type:         TypeLevelMismatch,
			PositionIDs:  []string{id},
			Score:        0.6,
			Tractability: 0.8,
			Reasoning:    fmt.Sprintf("Policy '%s...' lacks axiom foundation", head(pos.Claim, 40)),
		})
	}
	return out
}

// tractabilityByLevel runs inverse to epistemic weight: leaf beliefs shift easiest.
var tractabilityByLevel = map[models.Level]float64{
	models.LevelAxiom:    0.2,
	models.LevelPosition: 0.6,
	models.LevelPolicy:   0.9,
}

// tractability averages per-position level scores, each scaled by
// (1.5 - confidence) when the walker has chosen on that position.
func tractability(s *graph.Snapshot, ids []string, w *models.Walker) float64 {
	if len(ids) == 0 {
		return 0.5
	}
	var sum float64
	for _, id := range ids {
		pos, ok := s.Position(id)
		if !ok {
			sum += 0.5
			continue
		}
		v, ok := tractabilityByLevel[pos.Level]
		if !ok {
			v = 0.5
		}
		if c, ok := firstChoice(w, id); ok {
			v *= 1.5 - c.Confidence
		}
		sum += v
	}
	return min(1, sum/float64(len(ids)))
}

func firstChoice(w *models.Walker, id string) (models.Choice, bool) {
	for _, c := range w.Choices {
		if c.PositionID == id {
			return c, true
		}
	}
	return models.Choice{}, false
}

var challengeByLevel = map[models.Level]float64{
	models.LevelAxiom:    0.3,
	models.LevelPosition: 1.0,
	models.LevelPolicy:   0.6,
}

// ScoreChallenge rates how productive challenging pos would be, in [0, 1].
// Mid-level, well-connected, loosely held positions in imbalanced triads score highest.
func (a *Analyzer) ScoreChallenge(pos models.Position, w *models.Walker) float64 {
	s := a.src.Snapshot()
	edges := s.Edges()
	return scoreChallenge(s, pos, w, balanceState(edges, w).ImbalancedTriads(edges))
}

func scoreChallenge(s *graph.Snapshot, pos models.Position, w *models.Walker, triads []Triad) float64 {
	level, ok := challengeByLevel[pos.Level]
	if !ok {
		level = 0.5
	}
	score := level * 0.3

	degree := len(s.EdgesFrom(pos.ID)) + len(s.EdgesTo(pos.ID))
	score += min(1, float64(degree)/10) * 0.3

	if c, ok := firstChoice(w, pos.ID); ok {
		score += (1 - c.Confidence) * 0.2
	}

	for _, t := range triads {
		if t.Contains(pos.ID) {
			score += 0.2
			break
		}
	}
	return min(1, score)
}

// SuggestChallenge ranks the walker's unvisited positions by ScoreChallenge
// and returns the top n.
func (a *Analyzer) SuggestChallenge(w *models.Walker, n int) []Challenge {
	s := a.src.Snapshot()
	edges := s.Edges()
	triads := balanceState(edges, w).ImbalancedTriads(edges)

	var out []Challenge
	for _, p := range s.Positions() {
		if w.HasVisited(p.ID) {
			continue
		}
		out = append(out, Challenge{Position: p, Score: scoreChallenge(s, p, w, triads)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out[:min(max(n, 0), len(out))]
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
