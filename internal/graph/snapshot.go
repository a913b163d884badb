package graph

import (
	"time"

	"github.com/nvandessel/ideograph/internal/models"
)

// View is the read surface shared by a live Graph and a Snapshot. Every
// method returns copies; unknown IDs yield empty results, never errors.
type View interface {
	Position(id string) (models.Position, bool)
	Positions() []models.Position
	Edges() []models.Edge
	GetEdge(source, target string) (models.Edge, bool)
	GetEdgeOfType(source, target string, t models.EdgeType) (models.Edge, bool)
	EdgesFrom(id string) []models.Edge
	EdgesTo(id string) []models.Edge
	EdgesTouching(id string) []models.Edge
	Neighbors(id string) []models.Position
	Implies(id string) []models.Position
	ImpliedBy(id string) []models.Position
	Contradicts(id string) []models.Position
	Connected(a, b string) bool
	Degree(id string) int
}

// Source produces consistent point-in-time views. Graph and Snapshot both
// satisfy it, so analytics can run against either.
type Source interface {
	Snapshot() *Snapshot
}

// Snapshot is an immutable copy of the graph's positions and edges taken
// under a single read lock. Analytics read snapshots so they never observe
// a half-applied walk step.
type Snapshot struct {
	ix *index

	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Walkers   []*models.Walker
}

var (
	_ View   = (*Snapshot)(nil)
	_ View   = (*Graph)(nil)
	_ Source = (*Snapshot)(nil)
	_ Source = (*Graph)(nil)
)

// Snapshot returns s itself; snapshots are already immutable.
func (s *Snapshot) Snapshot() *Snapshot { return s }

// Len returns the number of positions.
func (s *Snapshot) Len() int { return len(s.ix.posOrder) }

// EdgeCount returns the number of edges.
func (s *Snapshot) EdgeCount() int { return len(s.ix.edgeOrder) }

func (s *Snapshot) Position(id string) (models.Position, bool) { return s.ix.position(id) }

func (s *Snapshot) Positions() []models.Position { return s.ix.allPositions() }

func (s *Snapshot) Edges() []models.Edge { return s.ix.allEdges() }

func (s *Snapshot) GetEdge(source, target string) (models.Edge, bool) {
	if e := s.ix.firstEdge(source, target); e != nil {
		return e.Clone(), true
	}
	return models.Edge{}, false
}

func (s *Snapshot) GetEdgeOfType(source, target string, t models.EdgeType) (models.Edge, bool) {
	if e := s.ix.typedEdge(source, target, t); e != nil {
		return e.Clone(), true
	}
	return models.Edge{}, false
}

func (s *Snapshot) EdgesFrom(id string) []models.Edge { return copyEdges(s.ix.out[id]) }

func (s *Snapshot) EdgesTo(id string) []models.Edge { return copyEdges(s.ix.in[id]) }

func (s *Snapshot) EdgesTouching(id string) []models.Edge { return copyEdges(s.ix.touching(id)) }

func (s *Snapshot) Neighbors(id string) []models.Position { return s.ix.resolve(s.ix.neighborIDs(id)) }

func (s *Snapshot) Implies(id string) []models.Position { return s.ix.resolve(s.ix.impliesIDs(id)) }

func (s *Snapshot) ImpliedBy(id string) []models.Position { return s.ix.resolve(s.ix.impliedByIDs(id)) }

func (s *Snapshot) Contradicts(id string) []models.Position {
	return s.ix.resolve(s.ix.contradictsIDs(id))
}

func (s *Snapshot) Connected(a, b string) bool { return s.ix.connected(a, b) }

func (s *Snapshot) Degree(id string) int { return len(s.ix.touching(id)) }
