// Package visualization renders ideological graphs in various output formats.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: dot, json, html)", s)
	}
}

// domainColors maps domains to DOT fill colors.
var domainColors = map[models.Domain]string{
	models.DomainEconomics:      "goldenrod",
	models.DomainCivilLiberties: "steelblue",
	models.DomainForeignPolicy:  "slategray",
	models.DomainSocial:         "mediumseagreen",
	models.DomainEpistemology:   "plum",
	models.DomainGovernance:     "tomato",
	models.DomainTechnology:     "deepskyblue",
	models.DomainEnvironment:    "olivedrab",
	models.DomainIdentity:       "orchid",
	models.DomainMetaphysics:    "wheat",
}

// levelShapes maps position levels to DOT node shapes.
var levelShapes = map[models.Level]string{
	models.LevelAxiom:    "doubleoctagon",
	models.LevelPosition: "box",
	models.LevelPolicy:   "note",
}

// edgeStyles maps edge types to DOT styles.
var edgeStyles = map[models.EdgeType]string{
	models.EdgeImplies:         "solid",
	models.EdgeContradicts:     "dashed",
	models.EdgeDerivesFrom:     "tapered",
	models.EdgePrioritizesOver: "bold",
	models.EdgeCollider:        "solid",
	models.EdgeConfounder:      "dotted",
	models.EdgeMediator:        "solid",
	models.EdgeFork:            "dashed",
	models.EdgeAssociation:     "dotted",
}

// EnrichmentData provides optional data to augment the base rendering.
type EnrichmentData struct {
	// PageRank maps position IDs to their PageRank scores (0.0-1.0).
	PageRank map[string]float64
}

func (e *EnrichmentData) pageRank(id string) (float64, bool) {
	if e == nil || e.PageRank == nil {
		return 0, false
	}
	pr, ok := e.PageRank[id]
	return pr, ok
}

// RenderDOT produces a Graphviz DOT representation of the graph. Node color
// follows domain, shape follows level, and size follows PageRank when the
// enrichment carries it.
func RenderDOT(src graph.Source, enrichment *EnrichmentData) string {
	snap := src.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", snap.Name)
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, p := range snap.Positions() {
		color := domainColors[p.Domain]
		if color == "" {
			color = "lightgray"
		}
		shape := levelShapes[p.Level]
		if shape == "" {
			shape = "box"
		}

		attrs := fmt.Sprintf("label=%q, shape=%s, fillcolor=%q, tooltip=\"visits=%d canonical=%.2f\"",
			truncate(p.Claim, 40), shape, color, p.VisitCount, p.CanonicalScore)
		if pr, ok := enrichment.pageRank(p.ID); ok {
			attrs += fmt.Sprintf(", width=%.2f, fontsize=%d", 0.75+1.5*pr, 10+int(6*pr))
		}
		fmt.Fprintf(&b, "  %q [%s];\n", p.ID, attrs)
	}
	b.WriteString("\n")

	for _, e := range snap.Edges() {
		style := edgeStyles[e.Type]
		if style == "" {
			style = "solid"
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q, style=%s, penwidth=%.1f, weight=\"%.2f\"];\n",
			e.SourceID, e.TargetID, string(e.Type), style, 1+3*e.Weight, e.Weight)
	}

	b.WriteString("}\n")
	return b.String()
}

// Node is a position as rendered in the JSON graph.
type Node struct {
	ID             string        `json:"id"`
	Claim          string        `json:"claim"`
	Domain         models.Domain `json:"domain"`
	Level          models.Level  `json:"level"`
	VisitCount     int           `json:"visit_count"`
	CanonicalScore float64       `json:"canonical_score"`
	Traditions     []string      `json:"traditions,omitempty"`
	PageRank       *float64      `json:"pagerank,omitempty"`
}

// Link is an edge as rendered in the JSON graph.
type Link struct {
	Source       string          `json:"source"`
	Target       string          `json:"target"`
	Type         models.EdgeType `json:"edge_type"`
	Weight       float64         `json:"weight"`
	CoOccurrence int             `json:"co_occurrence"`
	Tension      float64         `json:"tension"`
}

// GraphJSON is the JSON graph representation with nodes and edges arrays.
type GraphJSON struct {
	Name      string `json:"name"`
	Nodes     []Node `json:"nodes"`
	Edges     []Link `json:"edges"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

// RenderJSON produces a JSON-ready graph with nodes and edges in insertion
// order. PageRank is attached to nodes when the enrichment carries it.
func RenderJSON(src graph.Source, enrichment *EnrichmentData) GraphJSON {
	snap := src.Snapshot()
	positions := snap.Positions()
	edges := snap.Edges()

	out := GraphJSON{
		Name:      snap.Name,
		Nodes:     make([]Node, 0, len(positions)),
		Edges:     make([]Link, 0, len(edges)),
		NodeCount: len(positions),
		EdgeCount: len(edges),
	}
	for _, p := range positions {
		n := Node{
			ID:             p.ID,
			Claim:          p.Claim,
			Domain:         p.Domain,
			Level:          p.Level,
			VisitCount:     p.VisitCount,
			CanonicalScore: p.CanonicalScore,
			Traditions:     p.Traditions,
		}
		if pr, ok := enrichment.pageRank(p.ID); ok {
			n.PageRank = &pr
		}
		out.Nodes = append(out.Nodes, n)
	}
	for _, e := range edges {
		out.Edges = append(out.Edges, Link{
			Source:       e.SourceID,
			Target:       e.TargetID,
			Type:         e.Type,
			Weight:       e.Weight,
			CoOccurrence: e.CoOccurrence,
			Tension:      e.Tension,
		})
	}
	return out
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
