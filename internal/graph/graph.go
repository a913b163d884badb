// Package graph holds the ideological graph: positions, typed weighted edges,
// and the walkers whose choices reshape those edges.
//
// A Graph is an explicit context object. Every analytic receives the graph (or
// a Snapshot of it) by reference; there is no package-level state. All methods
// are safe for concurrent use. Mutations, including a whole walk step, run
// under a single write lock.
//
// Scale: suggestion and analytics helpers are O(n^2) in positions and the
// balance analysis is O(k^3) in a walker's attitudes. The graph is sized for
// tens to hundreds of positions per session.
package graph

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/models"
)

// Config holds the graph's learning parameters.
type Config struct {
	// Name labels the graph in persisted documents. Default: "ideograph".
	Name string

	// LearningRate is the step size for strengthen/weaken during walks. Default: 0.1.
	LearningRate float64

	// DecayRate is the step size applied by Decay to idle edges. Default: 0.05.
	DecayRate float64
}

// DefaultConfig returns the default graph configuration.
func DefaultConfig() Config {
	return Config{
		Name:         "ideograph",
		LearningRate: 0.1,
		DecayRate:    0.05,
	}
}

// Option customizes a Graph.
type Option func(*Graph)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option { return func(g *Graph) { g.logger = l } }

// WithDecisionLogger traces every edge mutation to a JSONL decision log.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(g *Graph) { g.decisions = dl }
}

// WithClock overrides time.Now, mainly for deterministic session IDs in tests.
func WithClock(now func() time.Time) Option { return func(g *Graph) { g.now = now } }

// WithCreatedAt sets the creation timestamp, used when restoring a saved graph.
func WithCreatedAt(t time.Time) Option { return func(g *Graph) { g.createdAt = t } }

// Graph owns all positions, edges and walkers.
type Graph struct {
	mu sync.RWMutex

	cfg       Config
	createdAt time.Time
	updatedAt time.Time

	ix          *index
	walkers     map[string]*models.Walker
	walkerOrder []string

	logger    *slog.Logger
	decisions *logging.DecisionLogger
	now       func() time.Time
}

// New creates an empty graph. Zero-valued config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Graph {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.DecayRate <= 0 {
		cfg.DecayRate = def.DecayRate
	}

	g := &Graph{
		cfg:     cfg,
		ix:      newIndex(),
		walkers: make(map[string]*models.Walker),
		logger:  logging.Discard(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.createdAt.IsZero() {
		g.createdAt = g.now()
	}
	g.updatedAt = g.createdAt
	return g
}

// Name returns the graph's label.
func (g *Graph) Name() string { return g.cfg.Name }

// Config returns the graph's learning parameters.
func (g *Graph) Config() Config { return g.cfg }

// AddPosition inserts p by ID. An empty ID is derived from the claim. If
// the ID already exists, p's sources are merged into the stored position,
// which is returned unchanged otherwise.
func (g *Graph) AddPosition(p models.Position) models.Position {
	if p.ID == "" && p.Claim != "" {
		p.ID = models.PositionID(p.Claim)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.ix.positions[p.ID]; ok {
		for _, s := range p.Sources {
			existing.AddSource(s)
		}
		return existing.Clone()
	}
	stored := g.ix.putPosition(p)
	g.updatedAt = g.now()
	return stored.Clone()
}

// AddPositions inserts each position in order.
func (g *Graph) AddPositions(ps ...models.Position) {
	for _, p := range ps {
		g.AddPosition(p)
	}
}

// AddEdge inserts e by its (source, target, type) ID. An existing edge is
// strengthened by the learning rate instead, so creation and reinforcement
// share one path. The stored edge is returned.
func (g *Graph) AddEdge(e models.Edge) models.Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addEdgeLocked(e).Clone()
}

func (g *Graph) addEdgeLocked(e models.Edge) *models.Edge {
	if existing := g.ix.typedEdge(e.SourceID, e.TargetID, e.Type); existing != nil {
		existing.Strengthen(g.cfg.LearningRate)
		g.decisions.Log(map[string]any{
			"event":  "edge_reinforced",
			"edge":   existing.ID(),
			"weight": existing.Weight,
		})
		return existing
	}
	stored := g.ix.putEdge(e)
	g.updatedAt = g.now()
	return stored
}

// AddEdges inserts each edge in order.
func (g *Graph) AddEdges(es ...models.Edge) {
	for _, e := range es {
		g.AddEdge(e)
	}
}

// Connect builds an edge and adds it through AddEdge.
func (g *Graph) Connect(source, target string, t models.EdgeType, weight float64, opts ...models.EdgeOption) models.Edge {
	return g.AddEdge(models.NewEdge(source, target, t, weight, opts...))
}

// Restore replaces the graph's contents with previously saved entities,
// verbatim: no merging, no reinforcement. Used by stores when loading.
func (g *Graph) Restore(positions []models.Position, edges []models.Edge, walkers []*models.Walker, updatedAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ix = newIndex()
	for _, p := range positions {
		g.ix.putPosition(p)
	}
	for _, e := range edges {
		g.ix.putEdge(e)
	}
	g.walkers = make(map[string]*models.Walker)
	g.walkerOrder = nil
	for _, w := range walkers {
		g.registerLocked(w)
	}
	if !updatedAt.IsZero() {
		g.updatedAt = updatedAt
	}
}

// Snapshot copies positions, edges and walkers under one read lock.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	walkers := make([]*models.Walker, 0, len(g.walkerOrder))
	for _, id := range g.walkerOrder {
		walkers = append(walkers, g.walkers[id].Clone())
	}
	return &Snapshot{
		ix:        g.ix.clone(),
		Name:      g.cfg.Name,
		CreatedAt: g.createdAt,
		UpdatedAt: g.updatedAt,
		Walkers:   walkers,
	}
}

// read runs fn against the live index under the read lock.
func (g *Graph) read(fn func(ix *index)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.ix)
}

func (g *Graph) Position(id string) (p models.Position, ok bool) {
	g.read(func(ix *index) { p, ok = ix.position(id) })
	return p, ok
}

func (g *Graph) Positions() (out []models.Position) {
	g.read(func(ix *index) { out = ix.allPositions() })
	return out
}

func (g *Graph) Edges() (out []models.Edge) {
	g.read(func(ix *index) { out = ix.allEdges() })
	return out
}

// GetEdge returns the earliest edge source->target of any type.
func (g *Graph) GetEdge(source, target string) (e models.Edge, ok bool) {
	g.read(func(ix *index) {
		if found := ix.firstEdge(source, target); found != nil {
			e, ok = found.Clone(), true
		}
	})
	return e, ok
}

func (g *Graph) GetEdgeOfType(source, target string, t models.EdgeType) (e models.Edge, ok bool) {
	g.read(func(ix *index) {
		if found := ix.typedEdge(source, target, t); found != nil {
			e, ok = found.Clone(), true
		}
	})
	return e, ok
}

func (g *Graph) EdgesFrom(id string) (out []models.Edge) {
	g.read(func(ix *index) { out = copyEdges(ix.out[id]) })
	return out
}

func (g *Graph) EdgesTo(id string) (out []models.Edge) {
	g.read(func(ix *index) { out = copyEdges(ix.in[id]) })
	return out
}

func (g *Graph) EdgesTouching(id string) (out []models.Edge) {
	g.read(func(ix *index) { out = copyEdges(ix.touching(id)) })
	return out
}

func (g *Graph) Neighbors(id string) (out []models.Position) {
	g.read(func(ix *index) { out = ix.resolve(ix.neighborIDs(id)) })
	return out
}

// Implies returns the positions id implies.
func (g *Graph) Implies(id string) (out []models.Position) {
	g.read(func(ix *index) { out = ix.resolve(ix.impliesIDs(id)) })
	return out
}

// ImpliedBy returns the positions that imply id.
func (g *Graph) ImpliedBy(id string) (out []models.Position) {
	g.read(func(ix *index) { out = ix.resolve(ix.impliedByIDs(id)) })
	return out
}

// Contradicts returns positions linked to id by a contradicts edge in either direction.
func (g *Graph) Contradicts(id string) (out []models.Position) {
	g.read(func(ix *index) { out = ix.resolve(ix.contradictsIDs(id)) })
	return out
}

func (g *Graph) Connected(a, b string) (ok bool) {
	g.read(func(ix *index) { ok = ix.connected(a, b) })
	return ok
}

func (g *Graph) Degree(id string) (n int) {
	g.read(func(ix *index) { n = len(ix.touching(id)) })
	return n
}

// FindPositions returns up to limit positions whose claim contains query,
// case-insensitively, in insertion order.
func (g *Graph) FindPositions(query string, limit int) []models.Position {
	q := strings.ToLower(query)
	var out []models.Position
	g.read(func(ix *index) {
		for _, id := range ix.posOrder {
			p := ix.positions[id]
			if strings.Contains(strings.ToLower(p.Claim), q) {
				out = append(out, p.Clone())
				if limit > 0 && len(out) >= limit {
					return
				}
			}
		}
	})
	return out
}

// PositionsByDomain returns every position in d.
func (g *Graph) PositionsByDomain(d models.Domain) []models.Position {
	var out []models.Position
	g.read(func(ix *index) {
		for _, id := range ix.posOrder {
			if p := ix.positions[id]; p.Domain == d {
				out = append(out, p.Clone())
			}
		}
	})
	return out
}

// Decay weakens every edge not updated since cutoff by the decay rate and
// returns how many edges were touched. Edges are never removed.
func (g *Graph) Decay(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, id := range g.ix.edgeOrder {
		e := g.ix.edges[id].edge
		if e.UpdatedAt.Before(cutoff) {
			e.Weaken(g.cfg.DecayRate)
			n++
		}
	}
	if n > 0 {
		g.updatedAt = g.now()
		g.logger.Debug("decayed idle edges", "count", n, "rate", g.cfg.DecayRate)
	}
	return n
}

// Stats summarizes the graph.
type Stats struct {
	Positions     int                     `json:"positions"`
	Edges         int                     `json:"edges"`
	Walkers       int                     `json:"walkers"`
	TotalVisits   int                     `json:"total_visits"`
	AvgEdgeWeight float64                 `json:"avg_edge_weight"`
	EdgeTypes     map[models.EdgeType]int `json:"edge_types"`
	Domains       map[models.Domain]int   `json:"domains"`
}

// Stats computes summary counts over the current graph.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := Stats{
		Positions: len(g.ix.posOrder),
		Edges:     len(g.ix.edgeOrder),
		Walkers:   len(g.walkerOrder),
		EdgeTypes: make(map[models.EdgeType]int),
		Domains:   make(map[models.Domain]int),
	}
	for _, t := range models.EdgeTypes() {
		st.EdgeTypes[t] = 0
	}
	for _, id := range g.ix.posOrder {
		p := g.ix.positions[id]
		st.TotalVisits += p.VisitCount
		st.Domains[p.Domain]++
	}
	var total float64
	for _, id := range g.ix.edgeOrder {
		e := g.ix.edges[id].edge
		total += e.Weight
		st.EdgeTypes[e.Type]++
	}
	if st.Edges > 0 {
		st.AvgEdgeWeight = total / float64(st.Edges)
	}
	return st
}

func (g *Graph) String() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fmt.Sprintf("Graph(%s: %d positions, %d edges)", g.cfg.Name, len(g.ix.posOrder), len(g.ix.edgeOrder))
}
