package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/compaction"
	"github.com/nvandessel/ideograph/internal/forks"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/models"
)

const (
	defaultWorkers = 4

	// stepConfidence is the confidence every simulated choice carries.
	stepConfidence = 0.8
)

// ErrEmptyPopulation is returned when a scenario has no walkers to run.
var ErrEmptyPopulation = errors.New("simulation needs at least one walker")

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithDetectorOptions sets the attractor and void thresholds used on the
// resulting graph.
func WithDetectorOptions(o attractors.Options) Option { return func(r *Runner) { r.detect = o } }

// Runner runs population simulations of archetype walkers over a fork tree.
type Runner struct {
	tree   *forks.Tree
	detect attractors.Options
	logger *slog.Logger
}

// NewRunner creates a runner over tree.
func NewRunner(tree *forks.Tree, opts ...Option) *Runner {
	r := &Runner{tree: tree, detect: attractors.DefaultOptions(), logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ArchetypeCount is how many walkers were drawn from one archetype.
type ArchetypeCount struct {
	Name    string `json:"name"`
	Walkers int    `json:"walkers"`
}

// Result is what a population leaves behind in the graph.
type Result struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario,omitempty"`
	Seed     int64  `json:"seed"`

	Population []ArchetypeCount `json:"population"`
	Defections int              `json:"defections"`

	// Recovery is the fraction of walkers whose best matching archetype is
	// the one they were drawn from.
	Recovery float64 `json:"recovery"`

	Attractors   []attractors.Attractor        `json:"attractors"`
	Voids        []attractors.Void             `json:"voids"`
	Decisiveness []compaction.ForkDecisiveness `json:"decisiveness"`
	MinimalSet   []string                      `json:"minimal_set"`

	Duration time.Duration    `json:"duration"`
	Walkers  []*models.Walker `json:"-"`
}

// Seed adds the tree's positions and edges to g unless they are already
// there. It reports whether anything was added.
func (r *Runner) Seed(g *graph.Graph) bool {
	forksInOrder := r.tree.Forks()
	if len(forksInOrder) == 0 {
		return false
	}
	if _, ok := g.Position(forksInOrder[0].PoleID(forks.PoleA)); ok {
		return false
	}
	r.tree.ToGraph(g)
	return true
}

// Run seeds g if needed, walks the scenario's population through the fork
// tree concurrently, and analyzes the result. Choices are drawn before any
// walker starts, so visit counts depend only on the seed; edge weights may
// vary with step interleaving.
func (r *Runner) Run(ctx context.Context, g *graph.Graph, sc Scenario) (*Result, error) {
	if sc.Walkers <= 0 {
		return nil, ErrEmptyPopulation
	}
	if r.tree.Len() == 0 {
		return nil, errors.New("simulation needs a non-empty fork tree")
	}
	if len(sc.Archetypes) == 0 {
		sc.Archetypes = compaction.Archetypes()
	}
	if sc.Workers <= 0 {
		sc.Workers = defaultWorkers
	}
	if sc.TargetAccuracy <= 0 {
		sc.TargetAccuracy = compaction.DefaultTargetAccuracy
	}
	if sc.Seed == 0 {
		sc.Seed = rand.Int64()
	}

	start := time.Now()
	runID := uuid.NewString()
	seeded := r.Seed(g)

	rng := rand.New(rand.NewPCG(uint64(sc.Seed), uint64(sc.Seed)>>1))
	plans := planWalkers(r.tree, sc, rng)

	r.logger.Info("simulation started",
		"run", runID, "scenario", sc.Name, "walkers", sc.Walkers,
		"workers", sc.Workers, "seed", sc.Seed, "seeded_graph", seeded)

	walkers := make([]*models.Walker, len(plans))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(sc.Workers)
	for i, plan := range plans {
		eg.Go(func() error {
			w := g.CreateWalker(fmt.Sprintf("sim:%s:%04d", runID[:8], plan.Index))
			walkers[i] = w
			for _, step := range plan.Steps {
				if err := egCtx.Err(); err != nil {
					return err
				}
				g.WalkStep(w, step.PositionID, true, stepConfidence, plan.Archetype)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("simulation %s: %w", runID, err)
	}

	res := &Result{
		RunID:    runID,
		Scenario: sc.Name,
		Seed:     sc.Seed,
		Walkers:  walkers,
	}
	res.Population, res.Defections, res.Recovery = summarize(plans, walkers, sc.Archetypes)

	detector := attractors.NewDetector(g, r.detect)
	opts := detector.Options()
	res.Attractors = detector.DetectAttractors(opts.MinVisits, opts.MinStrength)
	res.Voids = detector.DetectVoids(opts.MinExpected, opts.MinVoidRatio)

	compactor := compaction.NewCompactor(r.tree)
	res.Decisiveness = compactor.Analyze(walkers)
	for _, f := range compactor.MinimalSet(walkers, sc.TargetAccuracy) {
		res.MinimalSet = append(res.MinimalSet, f.ID)
	}
	res.Duration = time.Since(start)

	r.logger.Info("simulation complete",
		"run", runID, "attractors", len(res.Attractors), "voids", len(res.Voids),
		"recovery", res.Recovery, "defections", res.Defections, "duration", res.Duration)
	return res, nil
}

func summarize(plans []Plan, walkers []*models.Walker, archetypes []compaction.Archetype) ([]ArchetypeCount, int, float64) {
	counts := make(map[string]int, len(archetypes))
	defections, recovered := 0, 0
	for i, p := range plans {
		counts[p.Archetype]++
		for _, s := range p.Steps {
			if s.Defected {
				defections++
			}
		}
		if best, ok := compaction.BestArchetype(walkers[i], archetypes); ok && best.Archetype.Name == p.Archetype {
			recovered++
		}
	}

	population := make([]ArchetypeCount, 0, len(archetypes))
	for _, a := range archetypes {
		if n := counts[a.Name]; n > 0 {
			population = append(population, ArchetypeCount{Name: a.Name, Walkers: n})
		}
	}
	return population, defections, float64(recovered) / float64(len(plans))
}
