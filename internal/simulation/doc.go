// Package simulation runs synthetic populations through the fork tree to
// see what structure emerges in the graph.
//
// Each walker is drawn from an archetype in proportion to its population
// share and accepts that archetype's pole on every fork it defines, defecting
// with probability Noise. Walkers step concurrently against the real Graph,
// which serializes each walk step, so the learning rule reweights edges
// exactly as it would for live sessions. The result reports attractors,
// voids, fork decisiveness and how well the archetypes can be recovered from
// the walkers' choices.
//
// Usage:
//
//	r := simulation.NewRunner(forks.Canonical(), simulation.WithLogger(logger))
//	res, err := r.Run(ctx, g, simulation.Scenario{
//	    Name:    "baseline",
//	    Walkers: 200,
//	    Noise:   0.1,
//	    Seed:    42,
//	})
package simulation
