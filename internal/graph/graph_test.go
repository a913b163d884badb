package graph

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/ideograph/internal/models"
)

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func pos(id string, domain models.Domain) models.Position {
	return models.Stance("claim "+id, domain, models.WithID(id))
}

func ids(ps []models.Position) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestAddPositionMergesSources(t *testing.T) {
	g := New(DefaultConfig())
	p := pos("p1", models.DomainEconomics)
	p.Sources = []models.Source{{Text: "a"}}
	g.AddPosition(p)

	again := pos("p1", models.DomainSocial)
	again.Sources = []models.Source{{Text: "a"}, {Text: "b"}}
	stored := g.AddPosition(again)

	assert.Equal(t, models.DomainEconomics, stored.Domain, "existing position is canonical")
	assert.Len(t, stored.Sources, 2)
	assert.Len(t, g.Positions(), 1)
}

func TestAddPositionDerivesMissingID(t *testing.T) {
	g := New(DefaultConfig())
	a := g.AddPosition(models.Position{Claim: "Markets allocate well", Domain: models.DomainEconomics})
	b := g.AddPosition(models.Position{Claim: "Borders should be open", Domain: models.DomainSocial})

	assert.Equal(t, models.PositionID("Markets allocate well"), a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, g.Positions(), 2)

	got, ok := g.Position(models.PositionID("Borders should be open"))
	require.True(t, ok)
	assert.Equal(t, "Borders should be open", got.Claim)
}

func TestAddEdgeTwiceStrengthens(t *testing.T) {
	g := New(DefaultConfig())
	first := g.AddEdge(models.Implies("a", "b", 0.5))
	second := g.AddEdge(models.Implies("a", "b", 0.5))

	assert.Len(t, g.Edges(), 1)
	assert.Greater(t, second.Weight, first.Weight)
	assert.InDelta(t, 0.55, second.Weight, 1e-9)

	g.Connect("a", "b", models.EdgeContradicts, 0.4)
	assert.Len(t, g.Edges(), 2, "different type is a different edge")
}

func TestQueriesOnUnknownIDsAreEmpty(t *testing.T) {
	g := New(DefaultConfig())
	_, ok := g.Position("missing")
	assert.False(t, ok)
	_, ok = g.GetEdge("x", "y")
	assert.False(t, ok)
	assert.Empty(t, g.EdgesFrom("missing"))
	assert.Empty(t, g.EdgesTo("missing"))
	assert.Empty(t, g.Neighbors("missing"))
	assert.Empty(t, g.Implies("missing"))
	assert.Empty(t, g.ImpliedBy("missing"))
	assert.Empty(t, g.Contradicts("missing"))
}

func TestRelationQueries(t *testing.T) {
	g := New(DefaultConfig())
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddPosition(pos(id, models.DomainSocial))
	}
	g.Connect("a", "b", models.EdgeImplies, 0.5)
	g.Connect("c", "a", models.EdgeContradicts, 0.5)
	g.Connect("a", "d", models.EdgeContradicts, 0.5)
	g.Connect("d", "a", models.EdgeImplies, 0.5)
	g.Connect("a", "ghost", models.EdgeImplies, 0.5)

	assert.Equal(t, []string{"b"}, ids(g.Implies("a")), "dangling endpoints are skipped")
	assert.Equal(t, []string{"d"}, ids(g.ImpliedBy("a")))
	assert.Equal(t, []string{"c", "d"}, ids(g.Contradicts("a")))
	assert.Equal(t, []string{"b", "c", "d"}, ids(g.Neighbors("a")))
	assert.Equal(t, 5, g.Degree("a"))
	assert.True(t, g.Connected("b", "a"))
	assert.False(t, g.Connected("b", "c"))

	e, ok := g.GetEdge("a", "d")
	require.True(t, ok)
	assert.Equal(t, models.EdgeContradicts, e.Type)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPosition(pos("a", models.DomainSocial))
	p, _ := g.Position("a")
	p.VisitCount = 99
	p.Traditions = append(p.Traditions, "stoic")

	stored, _ := g.Position("a")
	assert.Zero(t, stored.VisitCount)
	assert.Empty(t, stored.Traditions)
}

func TestWalkStepStrengthensExistingEdge(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPosition(pos("P1", models.DomainEconomics))
	g.AddPosition(pos("P2", models.DomainEconomics))
	g.Connect("P1", "P2", models.EdgeImplies, 0.5)

	w := g.CreateWalker("alice")
	g.WalkStep(w, "P1", true, 0.8, "")
	g.WalkStep(w, "P2", true, 0.8, "")

	e, ok := g.GetEdgeOfType("P1", "P2", models.EdgeImplies)
	require.True(t, ok)
	assert.Greater(t, e.Weight, 0.5)
	assert.Equal(t, []string{"P1", "P2"}, w.Path)
	assert.Equal(t, []string{e.ID()}, w.EdgesStrengthened)
}

func TestWalkStepCreatesInferredEdge(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPosition(pos("a", models.DomainSocial))
	g.AddPosition(pos("b", models.DomainSocial))
	w := g.CreateWalker("u")

	g.WalkStep(w, "a", true, 1, "")
	g.WalkStep(w, "b", true, 1, "")

	e, ok := g.GetEdgeOfType("a", "b", models.EdgeImplies)
	require.True(t, ok)
	assert.InDelta(t, 0.3, e.Weight, 1e-9)
	assert.Contains(t, w.EdgesStrengthened, e.ID())
}

func TestWalkStepRejectionWeakensImplication(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPositions(pos("a", models.DomainSocial), pos("b", models.DomainSocial), pos("c", models.DomainSocial))
	g.Connect("a", "b", models.EdgeImplies, 0.5)
	w := g.CreateWalker("u")

	g.WalkStep(w, "a", true, 1, "")
	g.WalkStep(w, "b", false, 1, "")
	e, _ := g.GetEdgeOfType("a", "b", models.EdgeImplies)
	assert.InDelta(t, 0.45, e.Weight, 1e-9)
	assert.Equal(t, []string{e.ID()}, w.EdgesWeakened)

	// Rejection with no edge changes nothing.
	before := len(g.Edges())
	g.WalkStep(w, "c", false, 1, "")
	assert.Len(t, g.Edges(), before)
}

func TestWalkStepUnknownPositionIsNoop(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPosition(pos("a", models.DomainSocial))
	w := g.CreateWalker("u")

	before := g.Snapshot()
	out := g.WalkStep(w, "nope", true, 1, "")
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Empty(t, w.Path)
	assert.Empty(t, w.Choices)
	assert.Equal(t, before.Positions(), g.Positions())
	assert.Equal(t, before.Edges(), g.Edges())
}

func TestWalkStepSuggestions(t *testing.T) {
	g := New(DefaultConfig())
	for _, id := range []string{"root", "i1", "i2", "c1", "n1", "n2", "n3", "n4", "n5"} {
		g.AddPosition(pos(id, models.DomainSocial))
	}
	g.Connect("root", "i1", models.EdgeImplies, 0.5)
	g.Connect("root", "i2", models.EdgeImplies, 0.5)
	g.Connect("c1", "root", models.EdgeContradicts, 0.5)
	for _, n := range []string{"n1", "n2", "n3", "n4", "n5"} {
		g.Connect(n, "root", models.EdgeAssociation, 0.5)
	}

	w := g.CreateWalker("u")
	got := g.WalkStep(w, "root", true, 1, "")
	assert.Equal(t, []string{"i1", "i2", "c1", "n1", "n2"}, ids(got))

	w2 := g.CreateWalker("v")
	got = g.WalkStep(w2, "root", false, 1, "")
	assert.Equal(t, []string{"c1", "i1", "i2", "n1", "n2"}, ids(got))
}

func TestVisitCountMonotonic(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPositions(pos("a", models.DomainSocial), pos("b", models.DomainSocial))
	w := g.CreateWalker("u")

	last := 0
	for i, id := range []string{"a", "b", "a", "a", "b"} {
		g.WalkStep(w, id, i%2 == 0, 0.5, "")
		p, _ := g.Position("a")
		require.GreaterOrEqual(t, p.VisitCount, last)
		last = p.VisitCount
	}
	assert.Equal(t, 3, last)
	assert.Equal(t, []string{"a", "b"}, w.Path)
}

func TestWalkStepUpdatesMomentum(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPosition(models.Stance("lower taxes", models.DomainEconomics, models.WithID("tax"), models.WithValence(0.8)))
	w := g.CreateWalker("u")
	g.WalkStep(w, "tax", false, 1, "")
	assert.InDelta(t, -0.24, w.Trajectory.Momentum["economics"], 1e-9)
}

func TestSuggestOutsideBasin(t *testing.T) {
	g := New(DefaultConfig())
	for _, id := range []string{"acc", "implied", "near", "far1", "far2"} {
		g.AddPosition(pos(id, models.DomainSocial))
	}
	g.Connect("acc", "implied", models.EdgeImplies, 0.5)
	g.Connect("near", "acc", models.EdgeAssociation, 0.5)

	w := g.CreateWalker("u")
	assert.Equal(t, []string{"acc", "implied"}, ids(g.SuggestOutsideBasin(w, 2)), "nothing accepted: all tie at 0.5")

	g.WalkStep(w, "acc", true, 1, "")
	got := g.SuggestOutsideBasin(w, 3)
	assert.Equal(t, []string{"far1", "far2", "near"}, ids(got))

	assert.Empty(t, g.SuggestOutsideBasin(w, 0))
	assert.Empty(t, g.SuggestOutsideBasin(w, -1))
	assert.Len(t, g.SuggestOutsideBasin(w, 50), 3)
}

func TestCreateWalkerUniqueSessions(t *testing.T) {
	g := New(DefaultConfig(), WithClock(fixedClock()))
	a := g.CreateWalker("u")
	b := g.CreateWalker("u")
	g.CreateWalker("other")

	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Len(t, g.WalkersForUser("u"), 2)
	got, ok := g.Walker(b.SessionID)
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Len(t, g.Walkers(), 3)
}

func TestDecay(t *testing.T) {
	g := New(DefaultConfig())
	g.Connect("a", "b", models.EdgeImplies, 0.5)
	n := g.Decay(time.Now().Add(time.Hour))
	assert.Equal(t, 1, n)
	e, _ := g.GetEdge("a", "b")
	assert.InDelta(t, 0.475, e.Weight, 1e-9)
	assert.Zero(t, g.Decay(time.Time{}))
}

func TestStats(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPositions(pos("a", models.DomainSocial), pos("b", models.DomainEconomics))
	g.Connect("a", "b", models.EdgeImplies, 0.4)
	g.Connect("b", "a", models.EdgeContradicts, 0.6)
	w := g.CreateWalker("u")
	g.WalkStep(w, "a", true, 1, "")

	st := g.Stats()
	assert.Equal(t, 2, st.Positions)
	assert.Equal(t, 2, st.Edges)
	assert.Equal(t, 1, st.Walkers)
	assert.Equal(t, 1, st.TotalVisits)
	assert.InDelta(t, 0.5, st.AvgEdgeWeight, 1e-9)
	assert.Equal(t, 1, st.EdgeTypes[models.EdgeImplies])
	assert.Equal(t, 0, st.EdgeTypes[models.EdgeFork])
}

func TestFindPositions(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPosition(models.Stance("Free markets work", models.DomainEconomics))
	g.AddPosition(models.Stance("Markets need regulation", models.DomainEconomics))
	g.AddPosition(models.Stance("God exists", models.DomainMetaphysics))

	assert.Len(t, g.FindPositions("MARKETS", 10), 2)
	assert.Len(t, g.FindPositions("markets", 1), 1)
	assert.Len(t, g.PositionsByDomain(models.DomainMetaphysics), 1)
}

func TestConcurrentWalkersDoNotLoseUpdates(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPositions(pos("a", models.DomainSocial), pos("b", models.DomainSocial))
	g.Connect("a", "b", models.EdgeImplies, 0.5)

	const walkers = 32
	var wg sync.WaitGroup
	for i := 0; i < walkers; i++ {
		w := models.NewWalker("u", time.Unix(int64(i), 0))
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.WalkStep(w, "a", true, 1, "")
			g.WalkStep(w, "b", true, 1, "")
			_ = g.Snapshot()
		}()
	}
	wg.Wait()

	e, _ := g.GetEdgeOfType("a", "b", models.EdgeImplies)
	assert.Equal(t, walkers, e.CoOccurrence)
	p, _ := g.Position("a")
	assert.Equal(t, walkers, p.VisitCount)
}

func TestSnapshotIsIsolated(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPositions(pos("a", models.DomainSocial), pos("b", models.DomainSocial))
	g.Connect("a", "b", models.EdgeImplies, 0.5)
	snap := g.Snapshot()

	g.Connect("a", "b", models.EdgeImplies, 0.5)
	g.Connect("b", "a", models.EdgeContradicts, 0.5)

	e, _ := snap.GetEdge("a", "b")
	assert.Equal(t, 0.5, e.Weight)
	assert.Equal(t, 1, snap.EdgeCount())
	assert.Same(t, snap, snap.Snapshot())
}

func TestRestore(t *testing.T) {
	g := New(DefaultConfig())
	g.AddPosition(pos("old", models.DomainSocial))

	e := models.Implies("a", "b", 0.9)
	w := models.NewWalker("u", time.Unix(10, 0))
	g.Restore([]models.Position{pos("a", models.DomainSocial), pos("b", models.DomainSocial)}, []models.Edge{e, e}, []*models.Walker{w}, time.Time{})

	assert.Equal(t, []string{"a", "b"}, ids(g.Positions()))
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, 0.9, g.Edges()[0].Weight, "restore does not reinforce")
	assert.Len(t, g.Walkers(), 1)
}
