package simulation

import (
	"math/rand/v2"

	"github.com/nvandessel/ideograph/internal/compaction"
	"github.com/nvandessel/ideograph/internal/forks"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Walkers is the population size.
	Walkers int

	// Noise is the probability a walker departs from its archetype's pole
	// on a defining fork. Forks the archetype does not define are answered
	// with a coin flip.
	Noise float64

	// Workers bounds how many walkers step concurrently. Default: 4.
	Workers int

	// Seed makes the population reproducible. Zero picks a random seed,
	// reported back in the result.
	Seed int64

	// Archetypes overrides the built-in catalog. Each archetype is drawn in
	// proportion to its population share; zero shares are drawn uniformly.
	Archetypes []compaction.Archetype

	// TargetAccuracy is the coverage for the minimal fork set. Default: 0.8.
	TargetAccuracy float64
}

// Step is one planned choice of a simulated walker.
type Step struct {
	PositionID string
	ForkID     string
	Pole       forks.Pole
	Defected   bool
}

// Plan is the full sequence of choices one walker will make.
type Plan struct {
	Index     int
	Archetype string
	Steps     []Step
}

// drawArchetype picks an archetype index weighted by population share.
func drawArchetype(rng *rand.Rand, archetypes []compaction.Archetype) int {
	total := 0.0
	for _, a := range archetypes {
		total += a.PopulationShare
	}
	if total <= 0 {
		return rng.IntN(len(archetypes))
	}
	x := rng.Float64() * total
	for i, a := range archetypes {
		x -= a.PopulationShare
		if x < 0 {
			return i
		}
	}
	return len(archetypes) - 1
}

// planWalkers draws every walker's archetype and choices up front, so a
// population depends only on the seed and not on goroutine scheduling.
func planWalkers(tree *forks.Tree, sc Scenario, rng *rand.Rand) []Plan {
	order := tree.Forks()
	plans := make([]Plan, sc.Walkers)
	for i := range plans {
		a := sc.Archetypes[drawArchetype(rng, sc.Archetypes)]
		p := Plan{Index: i, Archetype: a.Name, Steps: make([]Step, 0, len(order))}
		for _, f := range order {
			pole, defined := a.Choice(f.ID)
			defected := false
			switch {
			case !defined:
				pole = forks.PoleA
				if rng.IntN(2) == 1 {
					pole = forks.PoleB
				}
			case rng.Float64() < sc.Noise:
				pole = pole.Opposite()
				defected = true
			}
			p.Steps = append(p.Steps, Step{
				PositionID: f.PoleID(pole),
				ForkID:     f.ID,
				Pole:       pole,
				Defected:   defected,
			})
		}
		plans[i] = p
	}
	return plans
}
