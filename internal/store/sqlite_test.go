package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DirName, DefaultFile)
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file was not created")
	assert.Equal(t, dbPath, s.Path())

	var version int
	require.NoError(t, s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "graph.db")
	want := fixtureGraph(t)

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, want))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx, graph.DefaultConfig())
	require.NoError(t, err)
	assertSameGraph(t, want, got)

	w := got.Walkers()[0]
	require.Len(t, w.Choices, 3)
	assert.Equal(t, "core value", w.Choices[0].Reasoning)
	assert.False(t, w.Choices[2].Accepted)
	assert.Equal(t, []string{"liberty", "markets", "equality"}, w.Path)
}

func TestSQLiteStoreNullableColumns(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(ctx, fixtureGraph(t)))

	var valence sql.NullFloat64
	require.NoError(t, s.db.QueryRow(`SELECT valence FROM positions WHERE id = 'tax_cut'`).Scan(&valence))
	assert.False(t, valence.Valid, "unset valence is stored as NULL")

	var priority sql.NullString
	require.NoError(t, s.db.QueryRow(
		`SELECT priority_context FROM edges WHERE source_id = 'liberty' AND edge_type = 'prioritizes_over'`).Scan(&priority))
	assert.Equal(t, "when rights collide", priority.String)

	var choices int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM choices`).Scan(&choices))
	assert.Equal(t, 3, choices)
}

func TestSQLiteStoreRejectsUnknownEnums(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		update string
		want   error
	}{
		{"domain", `UPDATE positions SET domain = 'astrology' WHERE id = 'markets'`, models.ErrUnknownDomain},
		{"level", `UPDATE positions SET level = 'dogma' WHERE id = 'markets'`, models.ErrUnknownLevel},
		{"edge type", `UPDATE edges SET edge_type = 'causes' WHERE source_id = 'markets'`, models.ErrUnknownEdgeType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
			require.NoError(t, err)
			defer s.Close()
			require.NoError(t, s.Save(ctx, fixtureGraph(t)))

			_, err = s.db.Exec(tt.update)
			require.NoError(t, err)

			g, err := s.Load(ctx, graph.DefaultConfig())
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, g)
		})
	}
}

func TestSQLiteStoreSaveIsTransactional(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(ctx, fixtureGraph(t)))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, s.Save(canceled, graph.New(graph.DefaultConfig())))

	g, err := s.Load(ctx, graph.DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, g.Positions(), 4, "failed save leaves the previous graph")
}

func TestResetSchema(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(ctx, fixtureGraph(t)))

	require.NoError(t, ResetSchema(ctx, s.db))
	_, err = s.Load(ctx, graph.DefaultConfig())
	assert.ErrorIs(t, err, ErrNoGraph)
	assert.NoError(t, ValidateIntegrity(ctx, s.db))
}

func TestInitSchemaRejectsNewerVersion(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1)
	require.NoError(t, err)
	assert.Error(t, InitSchema(ctx, s.db))
}
