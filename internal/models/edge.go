package models

import (
	"fmt"
	"time"
)

// Default tuning for edges created without explicit values.
const (
	DefaultEdgeWeight     = 0.5
	DefaultEdgeConfidence = 0.5
)

// Edge is a directed, typed, weighted relation between two positions.
// At most one edge exists per (source, target, type) triple.
type Edge struct {
	SourceID string   `json:"source_id" yaml:"source_id"`
	TargetID string   `json:"target_id" yaml:"target_id"`
	Type     EdgeType `json:"edge_type" yaml:"edge_type"`

	Weight        float64 `json:"weight" yaml:"weight"`
	EvidenceCount int     `json:"evidence_count" yaml:"evidence_count"`
	Confidence    float64 `json:"confidence" yaml:"confidence"`

	// Walk dynamics
	CoOccurrence int     `json:"co_occurrence" yaml:"co_occurrence"`
	Tension      float64 `json:"tension" yaml:"tension"`

	// PriorityContext says when a prioritizes_over edge applies.
	PriorityContext string `json:"priority_context,omitempty" yaml:"priority_context,omitempty"`

	Sources   []string  `json:"sources,omitempty" yaml:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// EdgeID is the deterministic identifier of the (source, target, type) triple.
func EdgeID(source, target string, t EdgeType) string {
	return fmt.Sprintf("%s->%s:%s", source, target, t)
}

// ID returns the edge identifier.
func (e Edge) ID() string { return EdgeID(e.SourceID, e.TargetID, e.Type) }

// EdgeOption customizes an edge built by NewEdge.
type EdgeOption func(*Edge)

// WithConfidence sets the edge confidence.
func WithConfidence(c float64) EdgeOption { return func(e *Edge) { e.Confidence = Clamp01(c) } }

// WithPriorityContext sets the context in which a priority applies.
func WithPriorityContext(ctx string) EdgeOption { return func(e *Edge) { e.PriorityContext = ctx } }

// WithEvidence attaches evidence references.
func WithEvidence(refs ...string) EdgeOption {
	return func(e *Edge) {
		for _, r := range refs {
			e.AddEvidence(r)
		}
	}
}

// NewEdge builds an edge with the given weight clamped to [0, 1].
func NewEdge(source, target string, t EdgeType, weight float64, opts ...EdgeOption) Edge {
	now := time.Now().UTC()
	e := Edge{
		SourceID:   source,
		TargetID:   target,
		Type:       t,
		Weight:     Clamp01(weight),
		Confidence: DefaultEdgeConfidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Implies builds an implies edge: holding source typically means holding target.
func Implies(source, target string, weight float64, opts ...EdgeOption) Edge {
	return NewEdge(source, target, EdgeImplies, weight, opts...)
}

// Contradicts builds a contradicts edge.
func Contradicts(source, target string, weight float64, opts ...EdgeOption) Edge {
	return NewEdge(source, target, EdgeContradicts, weight, opts...)
}

// Prioritizes builds a prioritizes_over edge: when source and target clash, source wins.
func Prioritizes(source, target, context string, opts ...EdgeOption) Edge {
	opts = append([]EdgeOption{WithPriorityContext(context)}, opts...)
	return NewEdge(source, target, EdgePrioritizesOver, DefaultEdgeWeight, opts...)
}

// DerivesFrom links a position to the tradition it traces to.
func DerivesFrom(positionID, tradition string, opts ...EdgeOption) Edge {
	return NewEdge(positionID, tradition, EdgeDerivesFrom, DefaultEdgeWeight, opts...)
}

// Collider builds the two edges of a collider: pathA -> destination <- pathB.
func Collider(pathA, pathB, destination string, opts ...EdgeOption) (Edge, Edge) {
	return NewEdge(pathA, destination, EdgeCollider, DefaultEdgeWeight, opts...),
		NewEdge(pathB, destination, EdgeCollider, DefaultEdgeWeight, opts...)
}

// Mediator builds the two edges of a gateway: start -> gateway -> end.
func Mediator(start, gateway, end string, opts ...EdgeOption) (Edge, Edge) {
	return NewEdge(start, gateway, EdgeMediator, DefaultEdgeWeight, opts...),
		NewEdge(gateway, end, EdgeMediator, DefaultEdgeWeight, opts...)
}

// Strengthen moves the weight toward 1 by amount*(1-weight) and counts a co-occurrence.
func (e *Edge) Strengthen(amount float64) {
	e.Weight = Clamp01(e.Weight + amount*(1-e.Weight))
	e.CoOccurrence++
	e.UpdatedAt = time.Now().UTC()
}

// Weaken moves the weight toward 0 by amount*weight.
func (e *Edge) Weaken(amount float64) {
	e.Weight = Clamp01(e.Weight - amount*e.Weight)
	e.UpdatedAt = time.Now().UTC()
}

// AddEvidence records a supporting reference. Confidence grows with the
// number of distinct references: min(1, 0.3 + 0.1n).
func (e *Edge) AddEvidence(ref string) {
	for _, s := range e.Sources {
		if s == ref {
			return
		}
	}
	e.Sources = append(e.Sources, ref)
	e.EvidenceCount = len(e.Sources)
	e.Confidence = Clamp01(0.3 + 0.1*float64(e.EvidenceCount))
	e.UpdatedAt = time.Now().UTC()
}

// RecordTension registers that the endpoints were observed in conflict.
// Tension saturates toward 1 the same way Strengthen does.
func (e *Edge) RecordTension(amount float64) {
	e.Tension = Clamp01(e.Tension + amount*(1-e.Tension))
	e.UpdatedAt = time.Now().UTC()
}

// Touches reports whether id is either endpoint.
func (e Edge) Touches(id string) bool { return e.SourceID == id || e.TargetID == id }

// Other returns the endpoint opposite id.
func (e Edge) Other(id string) string {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}

// Clone returns a deep copy of e.
func (e Edge) Clone() Edge {
	c := e
	if e.Sources != nil {
		c.Sources = append([]string(nil), e.Sources...)
	}
	return c
}
