package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

var fixtureTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixtureGraph exercises every persisted field: unset and set valences,
// every level, a prioritizes_over context, evidence sources and a walker
// with choices and momentum.
func fixtureGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(graph.Config{Name: "fixture"}, graph.WithClock(func() time.Time { return fixtureTime }))

	g.AddPositions(
		models.Axiom("Individual liberty comes first", models.DomainMetaphysics,
			models.WithID("liberty"), models.WithValence(0.8), models.WithTraditions("liberal", "libertarian")),
		models.Stance("Markets allocate well", models.DomainEconomics, models.WithID("markets"), models.WithValence(0.6)),
		models.Policy("Cut the top tax rate", models.DomainEconomics, models.WithID("tax_cut")),
		models.Stance("Equality of outcome matters", models.DomainSocial, models.WithID("equality"), models.WithValence(-0.7)),
	)
	g.AddPosition(models.Position{
		ID: "markets", Sources: []models.Source{{URL: "https://example.org/a", Text: "evidence", Credibility: 0.7}},
	})

	g.Connect("liberty", "markets", models.EdgeImplies, 0.7, models.WithEvidence("study-1"))
	g.Connect("markets", "tax_cut", models.EdgeImplies, 0.5)
	g.Connect("liberty", "equality", models.EdgeContradicts, 0.8)
	g.AddEdge(models.Prioritizes("liberty", "equality", "when rights collide"))
	g.AddEdge(models.DerivesFrom("liberty", "classical_liberalism"))

	w := g.CreateWalker("alice")
	g.WalkStep(w, "liberty", true, 0.9, "core value")
	g.WalkStep(w, "markets", true, 0.8, "")
	g.WalkStep(w, "equality", false, 0.6, "")
	w.AddPredictionError(models.PredictionError{PositionID: "equality", Predicted: true, PredictionConfidence: 0.7, Timestamp: fixtureTime})
	return g
}

var graphCmpOpts = cmp.Options{
	cmp.AllowUnexported(models.Valence{}),
	cmpopts.EquateEmpty(),
}

func assertSameGraph(t *testing.T, want, got graph.Source) {
	t.Helper()
	w, g := want.Snapshot(), got.Snapshot()
	assert.Equal(t, w.Name, g.Name)
	assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "created_at %v != %v", w.CreatedAt, g.CreatedAt)
	assert.True(t, w.UpdatedAt.Equal(g.UpdatedAt), "updated_at %v != %v", w.UpdatedAt, g.UpdatedAt)

	if diff := cmp.Diff(w.Positions(), g.Positions(), graphCmpOpts); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(w.Edges(), g.Edges(), graphCmpOpts); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(w.Walkers, g.Walkers, graphCmpOpts); diff != "" {
		t.Errorf("walkers mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenPicksBackendByExtension(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		file string
		want any
	}{
		{"graph.json", &DocumentStore{}},
		{"graph.yaml", &DocumentStore{}},
		{"graph.YML", &DocumentStore{}},
		{"graph.db", &SQLiteStore{}},
		{"graph.sqlite3", &SQLiteStore{}},
		{"graph", &DocumentStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			s, err := Open(filepath.Join(dir, tt.file))
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}

	s, err := Open(filepath.Join(dir, "g.yml"))
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, s.(*DocumentStore).format)
}

func TestRoundTripAllBackends(t *testing.T) {
	ctx := context.Background()
	for _, file := range []string{"graph.json", "graph.yaml", "graph.db"} {
		t.Run(file, func(t *testing.T) {
			want := fixtureGraph(t)
			s, err := Open(filepath.Join(t.TempDir(), "nested", file))
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Save(ctx, want))
			got, err := s.Load(ctx, graph.DefaultConfig())
			require.NoError(t, err)
			assertSameGraph(t, want, got)

			// Saving again replaces rather than appends.
			require.NoError(t, s.Save(ctx, got))
			again, err := s.Load(ctx, graph.DefaultConfig())
			require.NoError(t, err)
			assert.Len(t, again.Positions(), 4)
			assert.Len(t, again.Walkers(), 1)
		})
	}
}

func TestLoadBeforeSave(t *testing.T) {
	ctx := context.Background()
	for _, file := range []string{"graph.json", "graph.db"} {
		t.Run(file, func(t *testing.T) {
			s, err := Open(filepath.Join(t.TempDir(), file))
			require.NoError(t, err)
			defer s.Close()

			_, err = s.Load(ctx, graph.DefaultConfig())
			assert.ErrorIs(t, err, ErrNoGraph)
		})
	}
}

func TestLoadedGraphKeepsLearning(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(ctx, fixtureGraph(t)))

	g, err := s.Load(ctx, graph.Config{Name: "ignored", LearningRate: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "fixture", g.Name(), "stored name wins")

	before, ok := g.GetEdgeOfType("markets", "tax_cut", models.EdgeImplies)
	require.True(t, ok)
	g.Connect("markets", "tax_cut", models.EdgeImplies, 0.1)
	after, _ := g.GetEdgeOfType("markets", "tax_cut", models.EdgeImplies)
	assert.InDelta(t, before.Weight+0.5*(1-before.Weight), after.Weight, 1e-9)
}
