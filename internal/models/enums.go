package models

import (
	"errors"
	"fmt"
)

// Sentinel errors returned when a persisted enum value is not recognized.
// Loaders wrap these so callers can test with errors.Is.
var (
	ErrUnknownDomain   = errors.New("unknown domain")
	ErrUnknownLevel    = errors.New("unknown level")
	ErrUnknownEdgeType = errors.New("unknown edge type")
)

// Domain is the ideological region a position belongs to.
type Domain string

const (
	DomainEconomics      Domain = "economics"
	DomainCivilLiberties Domain = "civil_liberties"
	DomainForeignPolicy  Domain = "foreign_policy"
	DomainSocial         Domain = "social"
	DomainEpistemology   Domain = "epistemology"
	DomainGovernance     Domain = "governance"
	DomainTechnology     Domain = "technology"
	DomainEnvironment    Domain = "environment"
	DomainIdentity       Domain = "identity"
	DomainMetaphysics    Domain = "metaphysics"
	DomainUncategorized  Domain = "uncategorized"
)

// Domains lists every valid domain in declaration order.
func Domains() []Domain {
	return []Domain{
		DomainEconomics, DomainCivilLiberties, DomainForeignPolicy, DomainSocial,
		DomainEpistemology, DomainGovernance, DomainTechnology, DomainEnvironment,
		DomainIdentity, DomainMetaphysics, DomainUncategorized,
	}
}

// ParseDomain converts s to a Domain. Unknown values are an error, never a default.
func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains() {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

func (d Domain) String() string { return string(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Domain) MarshalText() ([]byte, error) {
	if d == "" {
		return []byte(DomainUncategorized), nil
	}
	return []byte(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown domains.
func (d *Domain) UnmarshalText(b []byte) error {
	v, err := ParseDomain(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Level is a position's place in the belief hierarchy.
type Level string

const (
	LevelAxiom    Level = "axiom"    // foundational belief
	LevelPosition Level = "position" // concrete stance
	LevelPolicy   Level = "policy"   // specific policy preference
)

// ParseLevel converts s to a Level. Unknown values are an error.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelAxiom, LevelPosition, LevelPolicy:
		return Level(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

func (l Level) String() string { return string(l) }

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l == "" {
		return []byte(LevelPosition), nil
	}
	return []byte(l), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown levels.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// EdgeType is the kind of relation an edge expresses.
type EdgeType string

const (
	EdgeImplies         EdgeType = "implies"          // holding A typically means holding B
	EdgeContradicts     EdgeType = "contradicts"      // A and B rarely co-occur
	EdgeDerivesFrom     EdgeType = "derives_from"     // position traces to a tradition
	EdgePrioritizesOver EdgeType = "prioritizes_over" // when A and B clash, A wins
	EdgeCollider        EdgeType = "collider"         // two paths arrive at the same position
	EdgeConfounder      EdgeType = "confounder"       // hidden driver of both positions
	EdgeMediator        EdgeType = "mediator"         // gateway between positions
	EdgeFork            EdgeType = "fork"             // one cause, divergent branches
	EdgeAssociation     EdgeType = "association"      // co-occurrence without causal structure
)

// EdgeTypes lists every valid edge type in declaration order.
func EdgeTypes() []EdgeType {
	return []EdgeType{
		EdgeImplies, EdgeContradicts, EdgeDerivesFrom, EdgePrioritizesOver,
		EdgeCollider, EdgeConfounder, EdgeMediator, EdgeFork, EdgeAssociation,
	}
}

// ParseEdgeType converts s to an EdgeType. Unknown values are an error.
func ParseEdgeType(s string) (EdgeType, error) {
	for _, t := range EdgeTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEdgeType, s)
}

func (t EdgeType) String() string { return string(t) }

// MarshalText implements encoding.TextMarshaler.
func (t EdgeType) MarshalText() ([]byte, error) {
	if t == "" {
		return []byte(EdgeAssociation), nil
	}
	return []byte(t), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown edge types.
func (t *EdgeType) UnmarshalText(b []byte) error {
	v, err := ParseEdgeType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
