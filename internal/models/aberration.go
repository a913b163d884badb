package models

import (
	"fmt"
	"time"
)

// AberrationType classifies how a walker deviates from a canonical pattern.
type AberrationType string

const (
	AberrationDeletion      AberrationType = "deletion"      // expected position missing
	AberrationInsertion     AberrationType = "insertion"     // unexpected position present
	AberrationTranslocation AberrationType = "translocation" // position in the wrong cluster
	AberrationInversion     AberrationType = "inversion"     // expected edge flipped
)

var aberrationSymbols = map[AberrationType]string{
	AberrationDeletion:      "[-]",
	AberrationInsertion:     "[+]",
	AberrationTranslocation: "[~]",
	AberrationInversion:     "[!]",
}

// Aberration is a deviation from a canonical ideological pattern.
type Aberration struct {
	Type        AberrationType `json:"type" yaml:"type"`
	Region      string         `json:"region" yaml:"region"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`

	Expected       string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual         string `json:"actual,omitempty" yaml:"actual,omitempty"`
	PositionID     string `json:"position_id,omitempty" yaml:"position_id,omitempty"`
	ExpectedEdgeID string `json:"expected_edge_id,omitempty" yaml:"expected_edge_id,omitempty"`
	ActualEdgeID   string `json:"actual_edge_id,omitempty" yaml:"actual_edge_id,omitempty"`

	Rarity float64 `json:"rarity" yaml:"rarity"`
	Impact float64 `json:"impact" yaml:"impact"`

	CanonicalPattern string    `json:"canonical_pattern,omitempty" yaml:"canonical_pattern,omitempty"`
	WalkerID         string    `json:"walker_id,omitempty" yaml:"walker_id,omitempty"`
	DetectedAt       time.Time `json:"detected_at" yaml:"detected_at"`
}

// ID identifies the aberration by type, region and position.
func (a Aberration) ID() string {
	pos := a.PositionID
	if pos == "" {
		pos = "none"
	}
	return fmt.Sprintf("%s:%s:%s", a.Type, a.Region, pos)
}

// Signature is a short human-readable form such as "[-] economics: Missing expected: x".
func (a Aberration) Signature() string {
	desc := []rune(a.Description)
	if len(desc) > 50 {
		desc = desc[:50]
	}
	return fmt.Sprintf("%s %s: %s", aberrationSymbols[a.Type], a.Region, string(desc))
}

func newAberration(t AberrationType, region string) Aberration {
	return Aberration{Type: t, Region: region, Rarity: 0.5, Impact: 0.5, DetectedAt: time.Now().UTC()}
}

// Deletion records a missing expected position.
func Deletion(region, expected string) Aberration {
	a := newAberration(AberrationDeletion, region)
	a.Expected = expected
	a.Description = "Missing expected: " + expected
	return a
}

// Insertion records an unexpected position.
func Insertion(region, actual string) Aberration {
	a := newAberration(AberrationInsertion, region)
	a.Actual = actual
	a.Description = "Unexpected: " + actual
	return a
}

// Translocation records a position found outside its expected region.
func Translocation(region, positionID, expectedRegion string) Aberration {
	a := newAberration(AberrationTranslocation, region)
	a.PositionID = positionID
	a.Expected = expectedRegion
	a.Actual = region
	a.Description = fmt.Sprintf("%s found in %s, expected in %s", positionID, region, expectedRegion)
	return a
}

// Inversion records an expected edge whose direction or sign is reversed.
func Inversion(region, edgeID string) Aberration {
	a := newAberration(AberrationInversion, region)
	a.ExpectedEdgeID = edgeID
	a.Description = "Inverted edge: " + edgeID
	return a
}

// AberrationProfile collects a walker's aberrations and the metrics derived from them.
type AberrationProfile struct {
	WalkerID    string       `json:"walker_id" yaml:"walker_id"`
	Aberrations []Aberration `json:"aberrations" yaml:"aberrations"`

	Uniqueness    float64        `json:"uniqueness" yaml:"uniqueness"`
	PrimaryRegion string         `json:"primary_region,omitempty" yaml:"primary_region,omitempty"`
	DominantType  AberrationType `json:"dominant_type,omitempty" yaml:"dominant_type,omitempty"`
}

// Add appends a and recomputes the derived metrics.
func (p *AberrationProfile) Add(a Aberration) {
	a.WalkerID = p.WalkerID
	p.Aberrations = append(p.Aberrations, a)
	p.recompute()
}

// recompute sets uniqueness = avgRarity * (0.5 + 0.5*min(1, n/10)) and the
// modal region and type. Ties go to the earliest value seen.
func (p *AberrationProfile) recompute() {
	n := len(p.Aberrations)
	if n == 0 {
		return
	}

	var rarity float64
	regions := make(map[string]int)
	types := make(map[AberrationType]int)
	var regionOrder []string
	var typeOrder []AberrationType
	for _, a := range p.Aberrations {
		rarity += a.Rarity
		if regions[a.Region] == 0 {
			regionOrder = append(regionOrder, a.Region)
		}
		regions[a.Region]++
		if types[a.Type] == 0 {
			typeOrder = append(typeOrder, a.Type)
		}
		types[a.Type]++
	}

	countFactor := min(1.0, float64(n)/10)
	p.Uniqueness = (rarity / float64(n)) * (0.5 + 0.5*countFactor)

	p.PrimaryRegion = regionOrder[0]
	for _, r := range regionOrder[1:] {
		if regions[r] > regions[p.PrimaryRegion] {
			p.PrimaryRegion = r
		}
	}
	p.DominantType = typeOrder[0]
	for _, t := range typeOrder[1:] {
		if types[t] > types[p.DominantType] {
			p.DominantType = t
		}
	}
}

// ByType returns the aberrations of type t.
func (p *AberrationProfile) ByType(t AberrationType) []Aberration {
	var out []Aberration
	for _, a := range p.Aberrations {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// ByRegion returns the aberrations in region.
func (p *AberrationProfile) ByRegion(region string) []Aberration {
	var out []Aberration
	for _, a := range p.Aberrations {
		if a.Region == region {
			out = append(out, a)
		}
	}
	return out
}
