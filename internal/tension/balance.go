// Package tension scores productive tension in a walker's belief system
// using Weighted Balance Theory: signed relations between held attitudes,
// where triads whose signs multiply to a negative create pressure to change.
//
// Triad scans are O(k^3) in the number of attitudes a walker holds. They are
// meant for per-session attitude sets of tens of positions.
package tension

import (
	"sort"

	"github.com/nvandessel/ideograph/internal/models"
)

// Triad is three positions whose relation signs multiply to a negative.
type Triad struct {
	A, B, C string
	// Strength is the mean |attitude| of the three members.
	Strength float64
}

// Members returns the triad's position IDs.
func (t Triad) Members() []string { return []string{t.A, t.B, t.C} }

// Contains reports whether id is one of the triad's members.
func (t Triad) Contains(id string) bool { return t.A == id || t.B == id || t.C == id }

// BalanceState is the weighted balance view of one walker's attitudes.
type BalanceState struct {
	// Attitudes maps position ID to signed magnitude in [-1, 1]:
	// +confidence when accepted, -confidence when rejected.
	Attitudes map[string]float64 `json:"attitudes"`

	// SGM is (balanced - imbalanced) / total determinable triads.
	SGM float64 `json:"sgm"`

	// Extremeness is the mean |attitude|.
	Extremeness float64 `json:"extremeness"`

	// Constraint is the fraction of attitude pairs joined by an edge.
	Constraint float64 `json:"constraint"`

	order []string
}

// NewBalanceState returns an empty state.
func NewBalanceState() *BalanceState {
	return &BalanceState{Attitudes: make(map[string]float64)}
}

// Set records an attitude. A later value for the same position overwrites
// the earlier one but keeps its place in triad iteration order.
func (b *BalanceState) Set(positionID string, attitude float64) {
	if b.Attitudes == nil {
		b.Attitudes = make(map[string]float64)
	}
	if _, ok := b.Attitudes[positionID]; !ok {
		b.order = append(b.order, positionID)
	}
	b.Attitudes[positionID] = attitude
}

// IDs returns the attitude-bearing positions in first-seen order.
func (b *BalanceState) IDs() []string {
	if len(b.order) != len(b.Attitudes) {
		// Populated directly through the map; fall back to sorted keys.
		b.order = b.order[:0]
		for id := range b.Attitudes {
			b.order = append(b.order, id)
		}
		sort.Strings(b.order)
	}
	return b.order
}

type pair struct{ lo, hi string }

func pairOf(a, b string) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// signs indexes the first implies (+1) or contradicts (-1) edge between each
// unordered pair, in edge order.
type signs map[pair]float64

func indexSigns(edges []models.Edge) signs {
	idx := make(signs)
	for _, e := range edges {
		var s float64
		switch e.Type {
		case models.EdgeImplies:
			s = 1
		case models.EdgeContradicts:
			s = -1
		default:
			continue
		}
		k := pairOf(e.SourceID, e.TargetID)
		if _, ok := idx[k]; !ok {
			idx[k] = s
		}
	}
	return idx
}

// relation returns the sign between a and b: an explicit edge if one exists,
// otherwise the sign of the product of their attitudes.
func (b *BalanceState) relation(idx signs, x, y string) (float64, bool) {
	if s, ok := idx[pairOf(x, y)]; ok {
		return s, true
	}
	ax, okx := b.Attitudes[x]
	ay, oky := b.Attitudes[y]
	if !okx || !oky {
		return 0, false
	}
	if ax*ay > 0 {
		return 1, true
	}
	return -1, true
}

// eachTriad calls fn for every determinable triad with its sign product.
func (b *BalanceState) eachTriad(edges []models.Edge, fn func(x, y, z string, product float64)) {
	ids := b.IDs()
	if len(ids) < 3 {
		return
	}
	idx := indexSigns(edges)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			sxy, ok := b.relation(idx, ids[i], ids[j])
			if !ok {
				continue
			}
			for k := j + 1; k < len(ids); k++ {
				syz, ok1 := b.relation(idx, ids[j], ids[k])
				szx, ok2 := b.relation(idx, ids[k], ids[i])
				if !ok1 || !ok2 {
					continue
				}
				fn(ids[i], ids[j], ids[k], sxy*syz*szx)
			}
		}
	}
}

// CalculateSGM computes and stores the signed graph measure. It is 0 with
// fewer than three attitudes or no determinable triads.
func (b *BalanceState) CalculateSGM(edges []models.Edge) float64 {
	var balanced, imbalanced int
	b.eachTriad(edges, func(_, _, _ string, product float64) {
		if product > 0 {
			balanced++
		} else {
			imbalanced++
		}
	})
	total := balanced + imbalanced
	if total == 0 {
		b.SGM = 0
		return 0
	}
	b.SGM = float64(balanced-imbalanced) / float64(total)
	return b.SGM
}

// CalculateExtremeness computes and stores the mean |attitude|.
func (b *BalanceState) CalculateExtremeness() float64 {
	if len(b.Attitudes) == 0 {
		b.Extremeness = 0
		return 0
	}
	var sum float64
	for _, v := range b.Attitudes {
		sum += abs(v)
	}
	b.Extremeness = sum / float64(len(b.Attitudes))
	return b.Extremeness
}

// CalculateConstraint computes and stores the number of edges joining two
// attitude-bearing positions over k choose 2.
func (b *BalanceState) CalculateConstraint(edges []models.Edge) float64 {
	k := len(b.Attitudes)
	if k < 2 {
		b.Constraint = 0
		return 0
	}
	n := 0
	for _, e := range edges {
		_, src := b.Attitudes[e.SourceID]
		_, tgt := b.Attitudes[e.TargetID]
		if src && tgt {
			n++
		}
	}
	b.Constraint = float64(n) / (float64(k) * float64(k-1) / 2)
	return b.Constraint
}

// ImbalancedTriads returns every triad with a negative sign product, strongest first.
func (b *BalanceState) ImbalancedTriads(edges []models.Edge) []Triad {
	var out []Triad
	b.eachTriad(edges, func(x, y, z string, product float64) {
		if product >= 0 {
			return
		}
		strength := (abs(b.Attitudes[x]) + abs(b.Attitudes[y]) + abs(b.Attitudes[z])) / 3
		out = append(out, Triad{A: x, B: y, C: z, Strength: strength})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
