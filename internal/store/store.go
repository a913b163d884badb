// Package store persists ideological graphs: a JSON or YAML document for
// interchange and a SQLite database for long-lived state.
package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// ErrNoGraph is returned by Load when nothing has been saved yet.
var ErrNoGraph = errors.New("no saved graph")

// GraphStore saves and loads whole graphs.
type GraphStore interface {
	// Save replaces the stored graph with src's current contents.
	Save(ctx context.Context, src graph.Source) error

	// Load rebuilds the stored graph. The stored name overrides cfg.Name.
	// Unknown domain, level or edge type values fail the whole load.
	Load(ctx context.Context, cfg graph.Config, opts ...graph.Option) (*graph.Graph, error)

	Close() error
}

// Document is a graph's persisted content in insertion order.
type Document struct {
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Positions []models.Position
	Edges     []models.Edge
	Walkers   []*models.Walker
}

// DocumentOf captures src at a single point in time.
func DocumentOf(src graph.Source) Document {
	snap := src.Snapshot()
	return Document{
		Name:      snap.Name,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
		Positions: snap.Positions(),
		Edges:     snap.Edges(),
		Walkers:   snap.Walkers,
	}
}

// Graph rebuilds a graph holding the document's entities verbatim.
func (d Document) Graph(cfg graph.Config, opts ...graph.Option) *graph.Graph {
	if d.Name != "" {
		cfg.Name = d.Name
	}
	all := make([]graph.Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, graph.WithCreatedAt(d.CreatedAt))
	g := graph.New(cfg, all...)
	g.Restore(d.Positions, d.Edges, d.Walkers, d.UpdatedAt)
	return g
}

// Open picks a backend by extension: .db, .sqlite and .sqlite3 open a
// SQLite store, .yaml and .yml a YAML document, anything else JSON.
func Open(path string) (GraphStore, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteStore(path)
	case ".yaml", ".yml":
		return NewDocumentStore(path, FormatYAML), nil
	default:
		return NewDocumentStore(path, FormatJSON), nil
	}
}

// checkPosition enforces the closed enumerations on a decoded position. An
// empty level means a plain position.
func checkPosition(p *models.Position) error {
	if _, err := models.ParseDomain(string(p.Domain)); err != nil {
		return err
	}
	if p.Level == "" {
		p.Level = models.LevelPosition
		return nil
	}
	_, err := models.ParseLevel(string(p.Level))
	return err
}

func checkEdge(e models.Edge) error {
	_, err := models.ParseEdgeType(string(e.Type))
	return err
}
