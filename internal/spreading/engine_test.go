package spreading

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// chainGraph builds a -> b -> c by implication, a contradicting d, and a
// prioritized over e.
func chainGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(graph.DefaultConfig())
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		g.AddPosition(models.Stance("claim "+id, models.DomainEconomics, models.WithID(id)))
	}
	g.AddEdges(
		models.Implies("a", "b", 0.8),
		models.Implies("b", "c", 0.8),
		models.Contradicts("a", "d", 0.8),
		models.Prioritizes("a", "e", "always"),
	)
	return g
}

func findResult(results []Result, id string) (Result, bool) {
	for _, r := range results {
		if r.PositionID == id {
			return r, true
		}
	}
	return Result{}, false
}

func TestActivate_Empty(t *testing.T) {
	e := NewEngine(DefaultConfig())
	results, err := e.Activate(context.Background(), chainGraph(t), nil)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}

	results, err = e.Activate(context.Background(), chainGraph(t), []Seed{{PositionID: "missing", Activation: 1}})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if results != nil {
		t.Errorf("unknown seed should activate nothing, got %v", results)
	}
}

func TestActivate_SignsAndDistance(t *testing.T) {
	e := NewEngine(DefaultConfig())
	results, err := e.Activate(context.Background(), chainGraph(t), []Seed{
		{PositionID: "a", Activation: 1, Source: "accepted:a"},
	})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}

	b, ok := findResult(results, "b")
	if !ok {
		t.Fatal("b not activated")
	}
	if b.Activation <= 0 {
		t.Errorf("b activation = %f, want positive", b.Activation)
	}
	if b.Distance != 1 || b.SeedSource != "accepted:a" {
		t.Errorf("b = %+v, want distance 1 from accepted:a", b)
	}

	c, ok := findResult(results, "c")
	if !ok {
		t.Fatal("c not activated")
	}
	if c.Distance != 2 {
		t.Errorf("c distance = %d, want 2", c.Distance)
	}
	if c.Activation >= b.Activation {
		t.Errorf("c (%f) should be weaker than b (%f)", c.Activation, b.Activation)
	}

	d, ok := findResult(results, "d")
	if !ok {
		t.Fatal("d not activated")
	}
	if d.Activation >= 0 {
		t.Errorf("d activation = %f, want negative across contradicts", d.Activation)
	}
	if math.Abs(math.Abs(d.Activation)-b.Activation) > 1e-9 {
		t.Errorf("|d| = %f, want %f", math.Abs(d.Activation), b.Activation)
	}

	if _, ok := findResult(results, "e"); ok {
		t.Error("prioritizes_over should not carry activation")
	}
}

func TestActivate_SortedDescending(t *testing.T) {
	e := NewEngine(DefaultConfig())
	results, err := e.Activate(context.Background(), chainGraph(t), []Seed{{PositionID: "a", Activation: 1}})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Activation > results[i-1].Activation {
			t.Errorf("results not sorted at %d: %f > %f", i, results[i].Activation, results[i-1].Activation)
		}
	}
	if results[0].PositionID != "a" {
		t.Errorf("seed should rank first, got %s", results[0].PositionID)
	}
}

func TestActivate_SeedsStayFixed(t *testing.T) {
	e := NewEngine(Config{MaxSteps: 5, DecayFactor: 1, SpreadFactor: 1, MinActivation: 0.01})
	results, err := e.Activate(context.Background(), chainGraph(t), []Seed{
		{PositionID: "a", Activation: 0.4},
		{PositionID: "d", Activation: 0.9},
	})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	a, _ := findResult(results, "a")
	if math.Abs(a.Activation-sigmoid(0.4)) > 1e-9 {
		t.Errorf("seed a = %f, want %f", a.Activation, sigmoid(0.4))
	}
}

func TestActivate_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(DefaultConfig()).Activate(ctx, chainGraph(t), []Seed{{PositionID: "a", Activation: 1}})
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestPropagate_RejectionFlipsPrediction(t *testing.T) {
	g := chainGraph(t)
	w := models.NewWalker("u", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	g.WalkStep(w, "a", false, 1, "")

	results, err := NewEngine(DefaultConfig()).Propagate(context.Background(), g, w)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if _, ok := findResult(results, "a"); ok {
		t.Error("visited position should be excluded")
	}
	b, _ := findResult(results, "b")
	d, _ := findResult(results, "d")
	if b.Activation >= 0 {
		t.Errorf("b = %f, want negative after rejecting a", b.Activation)
	}
	if d.Activation <= 0 {
		t.Errorf("d = %f, want positive after rejecting a", d.Activation)
	}
	if b.SeedSource != "rejected:a" {
		t.Errorf("seed source = %q, want rejected:a", b.SeedSource)
	}
}

func TestWalkerSeeds(t *testing.T) {
	w := models.NewWalker("u", time.Now())
	w.RecordChoice(models.NewChoice("x", true, 0.9, ""))
	w.RecordChoice(models.NewChoice("y", true, 0, ""))
	w.RecordChoice(models.NewChoice("x", false, 0.6, "changed my mind"))

	seeds := WalkerSeeds(w)
	if len(seeds) != 1 {
		t.Fatalf("got %d seeds, want 1: %+v", len(seeds), seeds)
	}
	if seeds[0].PositionID != "x" || seeds[0].Activation != -0.6 || seeds[0].Source != "rejected:x" {
		t.Errorf("seed = %+v, want latest rejection of x", seeds[0])
	}

	if WalkerSeeds(nil) != nil {
		t.Error("nil walker should yield no seeds")
	}
}
