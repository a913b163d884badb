package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// Source is a piece of evidence behind a position.
type Source struct {
	URL         string     `json:"url,omitempty" yaml:"url,omitempty"`
	Text        string     `json:"text" yaml:"text"`
	SourceType  string     `json:"source_type,omitempty" yaml:"source_type,omitempty"` // headline, forum, study, conversation
	Timestamp   *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Credibility float64    `json:"credibility" yaml:"credibility"`
}

// identity is what makes two sources the same piece of evidence.
func (s Source) identity() string {
	text := s.Text
	if len(text) > 100 {
		text = text[:100]
	}
	return s.URL + "\x00" + text
}

// Position is a node in the ideological graph: a discrete stance that can be
// held, rejected, or left alone. Identity is the ID.
type Position struct {
	ID      string  `json:"id" yaml:"id"`
	Claim   string  `json:"claim" yaml:"claim"`
	Domain  Domain  `json:"domain" yaml:"domain"`
	Valence Valence `json:"valence" yaml:"valence"`
	Level   Level   `json:"level" yaml:"level"`

	Sources []Source `json:"sources,omitempty" yaml:"sources,omitempty"`

	// Walk-derived metrics
	VisitCount     int     `json:"visit_count" yaml:"visit_count"`
	CanonicalScore float64 `json:"canonical_score" yaml:"canonical_score"`

	Traditions []string `json:"traditions" yaml:"traditions"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// PositionOption customizes a position built by NewPosition.
type PositionOption func(*Position)

// WithID overrides the claim-derived identifier.
func WithID(id string) PositionOption { return func(p *Position) { p.ID = id } }

// WithValence sets the position's valence.
func WithValence(v float64) PositionOption { return func(p *Position) { p.Valence = NewValence(v) } }

// WithTraditions attaches traditions to the position.
func WithTraditions(ts ...string) PositionOption {
	return func(p *Position) { p.Traditions = append(p.Traditions, ts...) }
}

// WithCanonicalScore sets the initial canonical score.
func WithCanonicalScore(s float64) PositionOption {
	return func(p *Position) { p.CanonicalScore = Clamp01(s) }
}

// NewPosition builds a position at the given level. The ID is derived from the
// claim unless WithID is supplied.
func NewPosition(claim string, domain Domain, level Level, opts ...PositionOption) Position {
	now := time.Now().UTC()
	p := Position{
		Claim:          claim,
		Domain:         domain,
		Level:          level,
		CanonicalScore: 0.5,
		Traditions:     []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Domain == "" {
		p.Domain = DomainUncategorized
	}
	if p.Level == "" {
		p.Level = LevelPosition
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.ID == "" && claim != "" {
		p.ID = PositionID(claim)
	}
	return p
}

// Axiom builds a foundational belief.
func Axiom(claim string, domain Domain, opts ...PositionOption) Position {
	return NewPosition(claim, domain, LevelAxiom, opts...)
}

// Stance builds a concrete position-level belief.
func Stance(claim string, domain Domain, opts ...PositionOption) Position {
	return NewPosition(claim, domain, LevelPosition, opts...)
}

// Policy builds a specific policy preference.
func Policy(claim string, domain Domain, opts ...PositionOption) Position {
	return NewPosition(claim, domain, LevelPolicy, opts...)
}

// PositionID derives a short deterministic identifier from a claim: a readable
// prefix from its first three words followed by 12 hex chars of its SHA-256.
func PositionID(claim string) string {
	normalized := strings.ToLower(strings.TrimSpace(claim))
	sum := sha256.Sum256([]byte(normalized))
	digest := hex.EncodeToString(sum[:])[:12]

	words := strings.Fields(normalized)
	if len(words) > 3 {
		words = words[:3]
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsLetter(r[0]) && !unicode.IsDigit(r[0]) {
			continue
		}
		if len(r) > 4 {
			r = r[:4]
		}
		parts = append(parts, string(r))
	}
	prefix := strings.Join(parts, "_")
	if r := []rune(prefix); len(r) > 20 {
		prefix = string(r[:20])
	}
	return prefix + "_" + digest
}

// RecordVisit increments the visit count.
func (p *Position) RecordVisit() {
	p.VisitCount++
	p.UpdatedAt = time.Now().UTC()
}

// UpdateCanonicalScore sets how expected the position is, clamped to [0, 1].
func (p *Position) UpdateCanonicalScore(score float64) {
	p.CanonicalScore = Clamp01(score)
	p.UpdatedAt = time.Now().UTC()
}

// AddSource appends s unless an identical source is already present.
// It reports whether the source was added.
func (p *Position) AddSource(s Source) bool {
	id := s.identity()
	for _, existing := range p.Sources {
		if existing.identity() == id {
			return false
		}
	}
	p.Sources = append(p.Sources, s)
	p.UpdatedAt = time.Now().UTC()
	return true
}

// Clone returns a deep copy of p.
func (p Position) Clone() Position {
	c := p
	if p.Sources != nil {
		c.Sources = append([]Source(nil), p.Sources...)
	}
	c.Traditions = append([]string{}, p.Traditions...)
	return c
}
