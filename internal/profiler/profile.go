package profiler

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/ideograph/internal/forks"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/stance"
)

const (
	// traditionCutoff keeps traditions scoring above this fraction of the
	// best tradition.
	traditionCutoff = 0.3
	// dominantTraditions is how many top traditions define "usual".
	dominantTraditions = 3
)

// ForkStance is a detected choice on one fork.
type ForkStance struct {
	ForkID     string      `json:"fork_id" yaml:"fork_id"`
	Choice     forks.Pole  `json:"choice" yaml:"choice"`
	Confidence float64     `json:"confidence" yaml:"confidence"`
	Evidence   []Statement `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// PositionID is the graph position for the chosen pole.
func (s ForkStance) PositionID() string { return s.ForkID + "_" + string(s.Choice) }

// Profile is the ideological profile of one figure. Stances keep the
// order in which their forks were first detected.
type Profile struct {
	Name        string                       `json:"name"`
	Statements  []Statement                  `json:"statements,omitempty"`
	Traditions  []string                     `json:"traditions,omitempty"`
	Anomalies   []string                     `json:"anomalies,omitempty"`
	Frames      map[stance.FrameType]float64 `json:"frames,omitempty"`
	ExtractedAt time.Time                    `json:"extracted_at"`

	stances []*ForkStance
	byFork  map[string]*ForkStance
}

// NewProfile creates an empty profile.
func NewProfile(name string) *Profile {
	return &Profile{Name: name, byFork: make(map[string]*ForkStance), ExtractedAt: time.Now().UTC()}
}

// Stances returns copies of the stances in detection order.
func (p *Profile) Stances() []ForkStance {
	out := make([]ForkStance, len(p.stances))
	for i, s := range p.stances {
		out[i] = *s
		out[i].Evidence = slices.Clone(s.Evidence)
	}
	return out
}

// Stance returns the stance on forkID.
func (p *Profile) Stance(forkID string) (ForkStance, bool) {
	s, ok := p.byFork[forkID]
	if !ok {
		return ForkStance{}, false
	}
	return *s, true
}

// AddStance records s, merging with an earlier stance on the same fork.
// Merged confidence is the evidence-weighted mean; the choice flips only
// when the new stance is more confident than the merged result.
func (p *Profile) AddStance(s ForkStance) {
	existing, ok := p.byFork[s.ForkID]
	if !ok {
		c := s
		c.Evidence = slices.Clone(s.Evidence)
		p.stances = append(p.stances, &c)
		p.byFork[s.ForkID] = &c
		return
	}

	oldN, newN := len(existing.Evidence), len(s.Evidence)
	existing.Evidence = append(existing.Evidence, s.Evidence...)
	if total := oldN + newN; total > 0 {
		existing.Confidence = (existing.Confidence*float64(oldN) + s.Confidence*float64(newN)) / float64(total)
	} else {
		existing.Confidence = (existing.Confidence + s.Confidence) / 2
	}
	if s.Choice != existing.Choice && s.Confidence > existing.Confidence {
		existing.Choice = s.Choice
	}
}

// InferTraditions scores each tradition by the confidence-weighted
// importance of the forks whose chosen pole it favors, and keeps those
// scoring above a fraction of the best, strongest first.
func (p *Profile) InferTraditions(tree *forks.Tree) []string {
	scores := make(map[string]float64)
	var order []string
	for _, s := range p.stances {
		f, ok := tree.Fork(s.ForkID)
		if !ok {
			continue
		}
		weight := s.Confidence * f.Importance
		for _, t := range f.Traditions(s.Choice) {
			if _, seen := scores[t]; !seen {
				order = append(order, t)
			}
			scores[t] += weight
		}
	}
	if len(order) == 0 {
		return p.Traditions
	}

	slices.SortStableFunc(order, func(a, b string) int { return cmp.Compare(scores[b], scores[a]) })
	cutoff := scores[order[0]] * traditionCutoff
	p.Traditions = nil
	for _, t := range order {
		if scores[t] > cutoff {
			p.Traditions = append(p.Traditions, t)
		}
	}
	return p.Traditions
}

// FindAnomalies lists stances whose chosen pole is favored by none of the
// profile's dominant traditions.
func (p *Profile) FindAnomalies(tree *forks.Tree) []string {
	if len(p.Traditions) == 0 {
		p.InferTraditions(tree)
	}
	p.Anomalies = nil
	if len(p.Traditions) == 0 {
		return nil
	}
	dominant := p.Traditions[:min(dominantTraditions, len(p.Traditions))]

	for _, s := range p.stances {
		f, ok := tree.Fork(s.ForkID)
		if !ok {
			continue
		}
		if slices.ContainsFunc(f.Traditions(s.Choice), func(t string) bool { return slices.Contains(dominant, t) }) {
			continue
		}
		p.Anomalies = append(p.Anomalies, fmt.Sprintf("%s: chose '%s' (unusual for %s)",
			f.Question, f.Option(s.Choice), strings.Join(dominant, ", ")))
	}
	return p.Anomalies
}

// DominantFrames returns the frames seen across the statements, strongest
// first.
func (p *Profile) DominantFrames() []stance.FrameType {
	out := make([]stance.FrameType, 0, len(p.Frames))
	for f := range p.Frames {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b stance.FrameType) int {
		if c := cmp.Compare(p.Frames[b], p.Frames[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return out
}

// ToWalker projects the profile onto g: one accepted choice per stance
// whose pole position exists in the graph. The graph is not modified.
func (p *Profile) ToWalker(src graph.Source, at time.Time) *models.Walker {
	snap := src.Snapshot()
	w := models.NewWalker("profile:"+p.Name, at)
	for _, s := range p.stances {
		id := s.PositionID()
		if _, ok := snap.Position(id); !ok {
			continue
		}
		c := models.NewChoice(id, true, s.Confidence, "")
		c.Timestamp = at
		w.RecordChoice(c)
		w.Visit(id)
	}
	return w
}

// MarshalJSON includes the stances alongside the exported fields.
func (p *Profile) MarshalJSON() ([]byte, error) {
	type plain Profile
	return json.Marshal(struct {
		*plain
		Stances []ForkStance `json:"stances"`
	}{(*plain)(p), p.Stances()})
}

// Summary renders a short human-readable description.
func (p *Profile) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s\n", p.Name)
	fmt.Fprintf(&b, "Stances: %d forks\n", len(p.stances))
	fmt.Fprintf(&b, "Statements analyzed: %d", len(p.Statements))
	if len(p.Traditions) > 0 {
		fmt.Fprintf(&b, "\nTraditions: %s", strings.Join(p.Traditions[:min(5, len(p.Traditions))], ", "))
	}
	if frames := p.DominantFrames(); len(frames) > 0 {
		names := make([]string, 0, 3)
		for _, f := range frames[:min(3, len(frames))] {
			names = append(names, string(f))
		}
		fmt.Fprintf(&b, "\nFrames: %s", strings.Join(names, ", "))
	}
	if len(p.Anomalies) > 0 {
		fmt.Fprintf(&b, "\nAnomalies: %d", len(p.Anomalies))
		for _, a := range p.Anomalies[:min(3, len(p.Anomalies))] {
			fmt.Fprintf(&b, "\n  - %s", truncate(a, 60))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
