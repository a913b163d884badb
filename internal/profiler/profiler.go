// Package profiler infers fork stances for a public figure from their
// statements. Each fork carries weak indicators drawn from its option
// wording plus curated phrasings; a statement counts as a stance only when
// one pole clearly outscores the other.
package profiler

import (
	"log/slog"
	"math"
	"time"

	"github.com/nvandessel/ideograph/internal/forks"
	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/stance"
)

const (
	// minSignal is the score the winning pole must reach.
	minSignal = 0.4
	// clearMargin is how many times the losing score the winner must exceed.
	clearMargin = 1.5
	// maxConfidence caps a single statement's stance confidence.
	maxConfidence = 0.95
)

// Profiler analyzes statements against a fork tree.
type Profiler struct {
	tree       *forks.Tree
	indicators map[string][]indicator
	extractor  *stance.Extractor
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithLogger sets the logger used for per-statement detections.
func WithLogger(l *slog.Logger) Option { return func(p *Profiler) { p.logger = l } }

// WithClock overrides the time source stamped on profiles.
func WithClock(now func() time.Time) Option { return func(p *Profiler) { p.now = now } }

// New builds a profiler for tree.
func New(tree *forks.Tree, opts ...Option) *Profiler {
	p := &Profiler{
		tree:       tree,
		indicators: buildIndicators(tree),
		extractor:  stance.NewExtractor(nil),
		logger:     logging.Discard(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AnalyzeStatement returns the stances st clearly takes, in tree order.
func (p *Profiler) AnalyzeStatement(st Statement) []ForkStance {
	var out []ForkStance
	for _, f := range p.tree.Forks() {
		var a, b float64
		for _, ind := range p.indicators[f.ID] {
			n := len(ind.re.FindAllStringIndex(st.Text, -1))
			if n == 0 {
				continue
			}
			if ind.pole == forks.PoleA {
				a += ind.weight * float64(n)
			} else {
				b += ind.weight * float64(n)
			}
		}
		if math.Max(a, b) < minSignal {
			continue
		}

		var choice forks.Pole
		var score float64
		switch {
		case a > b*clearMargin:
			choice, score = forks.PoleA, a
		case b > a*clearMargin:
			choice, score = forks.PoleB, b
		default:
			p.logger.Debug("ambiguous statement", "fork", f.ID, "score_a", a, "score_b", b)
			continue
		}
		out = append(out, ForkStance{
			ForkID:     f.ID,
			Choice:     choice,
			Confidence: math.Min(maxConfidence, score/(a+b)),
			Evidence:   []Statement{st},
		})
		p.logger.Debug("stance detected", "fork", f.ID, "choice", string(choice), "score", score)
	}
	return out
}

// Profile analyzes every statement, then infers traditions and anomalies.
func (p *Profiler) Profile(name string, statements []Statement) *Profile {
	prof := NewProfile(name)
	prof.ExtractedAt = p.now()
	prof.Statements = statements
	prof.Frames = make(map[stance.FrameType]float64)

	for _, st := range statements {
		for _, s := range p.AnalyzeStatement(st) {
			prof.AddStance(s)
		}
		for _, f := range p.extractor.Extract(st.Text).Frames {
			prof.Frames[f.Type] += f.Strength
		}
	}

	prof.InferTraditions(p.tree)
	prof.FindAnomalies(p.tree)
	p.logger.Info("profiled", "name", name, "statements", len(statements),
		"stances", len(prof.stances), "traditions", len(prof.Traditions))
	return prof
}
