// Package attractors finds density patterns in the ideological graph:
// attractors, where many walks converge, and voids, positions the graph's
// structure says should be visited but are not.
package attractors

import (
	"sort"
	"time"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// Options holds detection thresholds. All comparisons are inclusive.
type Options struct {
	// MinVisits is the visit count a position needs to be an attractor. Default: 10.
	MinVisits int

	// MinStrength is the strength an attractor needs to be reported. Default: 0.3.
	MinStrength float64

	// MinExpected is the expected visit mass below which a position is never a void. Default: 5.
	MinExpected float64

	// MinVoidRatio is the emptiness a void needs to be reported. Default: 0.7.
	MinVoidRatio float64
}

// DefaultOptions returns the default detection thresholds.
func DefaultOptions() Options {
	return Options{
		MinVisits:    10,
		MinStrength:  0.3,
		MinExpected:  5,
		MinVoidRatio: 0.7,
	}
}

// VoidReason is a hypothesis for why a void is empty.
type VoidReason string

const (
	ReasonSociallyCostly  VoidReason = "socially_costly"  // a popular position contradicts it
	ReasonRareCombination VoidReason = "rare_combination" // inflow spans three or more domains
	ReasonUnarticulated   VoidReason = "unarticulated"    // low canonical score
	ReasonUnknown         VoidReason = "unknown"
)

// popularVisits is the visit count above which a contradicting position
// makes holding a void socially costly.
const popularVisits = 10

// Attractor is a position with disproportionately high convergent traffic.
type Attractor struct {
	CenterID      string    `json:"center_id"`
	CenterClaim   string    `json:"center_claim"`
	BasinIDs      []string  `json:"basin_ids"`
	VisitCount    int       `json:"visit_count"`
	UniqueWalkers int       `json:"unique_walkers"`
	Strength      float64   `json:"strength"`
	DetectedAt    time.Time `json:"detected_at"`
}

// InBasin reports whether id feeds into the attractor.
func (a Attractor) InBasin(id string) bool {
	for _, b := range a.BasinIDs {
		if b == id {
			return true
		}
	}
	return false
}

// Void is a position with structurally expected but absent traffic.
type Void struct {
	PositionID       string       `json:"position_id"`
	PositionClaim    string       `json:"position_claim"`
	ExpectedFrom     []string     `json:"expected_from"`
	ExpectedVisitors float64      `json:"expected_visitors"`
	ActualVisitors   int          `json:"actual_visitors"`
	VoidRatio        float64      `json:"void_ratio"`
	Reasons          []VoidReason `json:"reasons"`
	DetectedAt       time.Time    `json:"detected_at"`
}

// Detector runs attractor and void detection over snapshots of a graph.
type Detector struct {
	src  graph.Source
	opts Options
}

// NewDetector creates a detector. Zero thresholds fall back to defaults.
func NewDetector(src graph.Source, opts Options) *Detector {
	def := DefaultOptions()
	if opts.MinVisits <= 0 {
		opts.MinVisits = def.MinVisits
	}
	if opts.MinStrength <= 0 {
		opts.MinStrength = def.MinStrength
	}
	if opts.MinExpected <= 0 {
		opts.MinExpected = def.MinExpected
	}
	if opts.MinVoidRatio <= 0 {
		opts.MinVoidRatio = def.MinVoidRatio
	}
	return &Detector{src: src, opts: opts}
}

// Options returns the detector's default thresholds.
func (d *Detector) Options() Options { return d.opts }

// DetectAttractors returns positions with at least minVisits visits whose
// strength reaches minStrength, strongest first. Strength is
//
//	0.5*visits/maxVisits + 0.25*min(1, inDegree/10) + 0.25*min(1, inWeight/5)
//
// where maxVisits is recomputed from the current graph on every call.
func (d *Detector) DetectAttractors(minVisits int, minStrength float64) []Attractor {
	return detectAttractors(d.src.Snapshot(), minVisits, minStrength)
}

func detectAttractors(s *graph.Snapshot, minVisits int, minStrength float64) []Attractor {
	positions := s.Positions()
	maxVisits := 0
	for _, p := range positions {
		maxVisits = max(maxVisits, p.VisitCount)
	}
	if maxVisits == 0 {
		maxVisits = 1
	}

	now := time.Now().UTC()
	var out []Attractor
	for _, p := range positions {
		if p.VisitCount < minVisits {
			continue
		}
		incoming := s.EdgesTo(p.ID)
		var inWeight float64
		for _, e := range incoming {
			inWeight += e.Weight
		}
		strength := 0.5*float64(p.VisitCount)/float64(maxVisits) +
			0.25*min(1, float64(len(incoming))/10) +
			0.25*min(1, inWeight/5)
		if strength < minStrength {
			continue
		}

		basin := make([]string, 0, len(incoming))
		seen := make(map[string]bool)
		for _, e := range incoming {
			if !seen[e.SourceID] {
				seen[e.SourceID] = true
				basin = append(basin, e.SourceID)
			}
		}
		out = append(out, Attractor{
			CenterID:      p.ID,
			CenterClaim:   p.Claim,
			BasinIDs:      basin,
			VisitCount:    p.VisitCount,
			UniqueWalkers: uniqueWalkers(s.Walkers, p.ID),
			Strength:      strength,
			DetectedAt:    now,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

func uniqueWalkers(walkers []*models.Walker, id string) int {
	users := make(map[string]bool)
	for _, w := range walkers {
		if w.HasVisited(id) {
			users[w.UserID] = true
		}
	}
	return len(users)
}

// DetectVoids returns positions whose expected visits, the sum over incoming
// edges of source visits times edge weight, reach minExpected while actual
// visits fall short by at least minVoidRatio. Emptiest first.
func (d *Detector) DetectVoids(minExpected, minVoidRatio float64) []Void {
	return detectVoids(d.src.Snapshot(), minExpected, minVoidRatio)
}

func detectVoids(s *graph.Snapshot, minExpected, minVoidRatio float64) []Void {
	now := time.Now().UTC()
	var out []Void
	for _, p := range s.Positions() {
		incoming := s.EdgesTo(p.ID)
		if len(incoming) == 0 {
			continue
		}

		var expected float64
		from := make([]string, 0, len(incoming))
		for _, e := range incoming {
			src, ok := s.Position(e.SourceID)
			if !ok {
				continue
			}
			expected += float64(src.VisitCount) * e.Weight
			from = append(from, e.SourceID)
		}
		if expected < minExpected || expected == 0 {
			continue
		}

		ratio := 1 - float64(p.VisitCount)/expected
		if ratio < minVoidRatio {
			continue
		}
		out = append(out, Void{
			PositionID:       p.ID,
			PositionClaim:    p.Claim,
			ExpectedFrom:     from,
			ExpectedVisitors: expected,
			ActualVisitors:   p.VisitCount,
			VoidRatio:        ratio,
			Reasons:          hypothesize(s, p, incoming),
			DetectedAt:       now,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VoidRatio > out[j].VoidRatio })
	return out
}

// hypothesize tags a void with every reason that applies, or "unknown".
func hypothesize(s *graph.Snapshot, p models.Position, incoming []models.Edge) []VoidReason {
	var reasons []VoidReason

	for _, c := range s.Contradicts(p.ID) {
		if c.VisitCount > popularVisits {
			reasons = append(reasons, ReasonSociallyCostly)
			break
		}
	}

	domains := make(map[models.Domain]bool)
	for _, e := range incoming {
		if src, ok := s.Position(e.SourceID); ok {
			domains[src.Domain] = true
		}
	}
	if len(domains) >= 3 {
		reasons = append(reasons, ReasonRareCombination)
	}

	if p.CanonicalScore < 0.3 {
		reasons = append(reasons, ReasonUnarticulated)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, ReasonUnknown)
	}
	return reasons
}

// FindBasinForWalker returns the attractor whose basin best overlaps the
// walker's accepted positions, with a bonus of 2 for accepting the center
// itself. It reports false when no attractor overlaps at all.
func (d *Detector) FindBasinForWalker(w *models.Walker) (Attractor, bool) {
	accepted := w.AcceptedSet()
	attractors := d.DetectAttractors(d.opts.MinVisits, d.opts.MinStrength)

	var best Attractor
	bestOverlap := 0
	for _, a := range attractors {
		overlap := 0
		for _, id := range a.BasinIDs {
			if accepted[id] {
				overlap++
			}
		}
		if accepted[a.CenterID] {
			overlap += 2
		}
		if overlap > bestOverlap {
			best, bestOverlap = a, overlap
		}
	}
	return best, bestOverlap > 0
}

// SuggestVoidExploration returns up to n voids off the walker's path that are
// fed by positions the walker accepted, most connected first.
func (d *Detector) SuggestVoidExploration(w *models.Walker, n int) []Void {
	accepted := w.AcceptedSet()
	voids := d.DetectVoids(d.opts.MinExpected, d.opts.MinVoidRatio)

	type candidate struct {
		void  Void
		score int
	}
	var candidates []candidate
	for _, v := range voids {
		if w.HasVisited(v.PositionID) {
			continue
		}
		score := 0
		seen := make(map[string]bool)
		for _, id := range v.ExpectedFrom {
			if accepted[id] && !seen[id] {
				seen[id] = true
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, candidate{v, score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	out := make([]Void, 0, min(max(n, 0), len(candidates)))
	for i := 0; i < len(candidates) && i < n; i++ {
		out = append(out, candidates[i].void)
	}
	return out
}
