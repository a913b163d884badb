// Package patterns names the trajectories many walkers converge on and
// matches individual walkers against them.
package patterns

import (
	"cmp"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ideograph/internal/models"
)

//go:embed patterns.yaml
var patternsYAML []byte

// DefaultThreshold is the minimum score that counts as a match.
const DefaultThreshold = 0.6

// Score weights and the neutral score used when a set is empty.
const (
	requiredWeight  = 0.5
	pathWeight      = 0.3
	forbiddenWeight = 0.2
	neutralScore    = 0.5
)

// Pattern is a named trajectory. Required positions define it, the path
// signature lists its usual traversal order, and accepting any forbidden
// position disqualifies a walker outright.
type Pattern struct {
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	PathSignature []string  `json:"path_signature,omitempty" yaml:"path_signature,omitempty"`
	Required      []string  `json:"required,omitempty" yaml:"required,omitempty"`
	Forbidden     []string  `json:"forbidden,omitempty" yaml:"forbidden,omitempty"`
	WalkerCount   int       `json:"walker_count" yaml:"walker_count,omitempty"`
	AvgFitScore   float64   `json:"avg_fit_score" yaml:"avg_fit_score,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// MatchScore returns how well w fits p, in [0, 1]:
// 0.5·required accepted + 0.3·path accepted + 0.2·forbidden rejected,
// each a fraction of its set, or 0.5 when the set is empty.
func (p Pattern) MatchScore(w *models.Walker) float64 {
	accepted, rejected := w.AcceptedSet(), w.RejectedSet()
	for _, id := range p.Forbidden {
		if accepted[id] {
			return 0
		}
	}
	return requiredWeight*fraction(p.Required, accepted) +
		pathWeight*fraction(p.PathSignature, accepted) +
		forbiddenWeight*fraction(p.Forbidden, rejected)
}

func fraction(ids []string, set map[string]bool) float64 {
	if len(ids) == 0 {
		return neutralScore
	}
	n := 0
	for _, id := range ids {
		if set[id] {
			n++
		}
	}
	return float64(n) / float64(len(ids))
}

// Match is a pattern with a walker's score against it.
type Match struct {
	Pattern Pattern `json:"pattern"`
	Score   float64 `json:"score"`
}

// Matcher holds an ordered set of patterns and tracks how many walkers
// matched each. Safe for concurrent use.
type Matcher struct {
	mu        sync.Mutex
	patterns  []*Pattern
	byName    map[string]*Pattern
	threshold float64
	now       func() time.Time
}

// NewMatcher creates a matcher with the given threshold. A non-positive
// threshold selects DefaultThreshold.
func NewMatcher(threshold float64, patterns ...Pattern) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	m := &Matcher{byName: make(map[string]*Pattern), threshold: threshold, now: time.Now}
	for _, p := range patterns {
		m.Add(p)
	}
	return m
}

// Add registers p, replacing any pattern with the same name in place.
func (m *Matcher) Add(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byName[p.Name]; ok {
		*existing = p
		return
	}
	c := p
	m.patterns = append(m.patterns, &c)
	m.byName[p.Name] = &c
}

// Patterns returns copies of the patterns in registration order.
func (m *Matcher) Patterns() []Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pattern, len(m.patterns))
	for i, p := range m.patterns {
		out[i] = *p
	}
	return out
}

// Match returns the best scoring pattern for w if it reaches the
// threshold, and records the match in that pattern's running average.
// Ties go to the earlier pattern.
func (m *Matcher) Match(w *models.Walker) (Match, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Pattern
	bestScore := 0.0
	for _, p := range m.patterns {
		if s := p.MatchScore(w); s > bestScore {
			best, bestScore = p, s
		}
	}
	if best == nil || bestScore < m.threshold {
		return Match{}, false
	}

	best.WalkerCount++
	best.AvgFitScore += (bestScore - best.AvgFitScore) / float64(best.WalkerCount)
	best.UpdatedAt = m.now()
	return Match{Pattern: *best, Score: bestScore}, true
}

// Classify matches w and stores the result as its canonical fit. A walker
// that matches nothing has its fit cleared.
func (m *Matcher) Classify(w *models.Walker) (Match, bool) {
	match, ok := m.Match(w)
	if !ok {
		w.CanonicalFit, w.CanonicalFitScore = "", 0
		return match, false
	}
	w.CanonicalFit, w.CanonicalFitScore = match.Pattern.Name, match.Score
	return match, true
}

// AllMatches returns every pattern w reaches the threshold on, best first.
// It does not record anything.
func (m *Matcher) AllMatches(w *models.Walker) []Match {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Match
	for _, p := range m.patterns {
		if s := p.MatchScore(w); s >= m.threshold {
			out = append(out, Match{Pattern: *p, Score: s})
		}
	}
	slices.SortStableFunc(out, func(a, b Match) int { return cmp.Compare(b.Score, a.Score) })
	return out
}

type patternDoc struct {
	Patterns []Pattern `yaml:"patterns"`
}

// Decode parses a YAML pattern catalog. Every pattern needs a unique name.
func Decode(data []byte) ([]Pattern, error) {
	var doc patternDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing patterns: %w", err)
	}
	seen := make(map[string]bool, len(doc.Patterns))
	for i, p := range doc.Patterns {
		if p.Name == "" {
			return nil, fmt.Errorf("pattern %d has no name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate pattern %q", p.Name)
		}
		seen[p.Name] = true
	}
	return doc.Patterns, nil
}

// Load reads a pattern catalog from path.
func Load(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patterns: %w", err)
	}
	return Decode(data)
}

// Defaults returns the built-in pattern catalog.
func Defaults() []Pattern {
	ps, err := Decode(patternsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded patterns: %v", err))
	}
	return ps
}

// DefaultMatcher returns a matcher over the built-in patterns.
func DefaultMatcher() *Matcher {
	return NewMatcher(DefaultThreshold, Defaults()...)
}
