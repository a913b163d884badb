package visualization

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// htmlTemplateData holds data passed to the HTML template.
type htmlTemplateData struct {
	Name       string
	Graph      GraphJSON
	Walkers    int
	Attractors []attractors.Attractor
	APIBaseURL string
}

var funcs = template.FuncMap{
	"color": func(d models.Domain) string {
		if c, ok := domainColors[d]; ok {
			return c
		}
		return "lightgray"
	},
	"score": func(pr *float64) string {
		if pr == nil {
			return ""
		}
		return fmt.Sprintf("%.3f", *pr)
	},
}

var pageTemplate = template.Must(
	template.New("graph.html.tmpl").Funcs(funcs).ParseFS(templates, "templates/graph.html.tmpl"),
)

// RenderHTML produces a self-contained HTML report of the graph: its
// attractors and a position table with PageRank. apiBaseURL, when set, adds
// links to a running server's analytics endpoints.
func RenderHTML(src graph.Source, enrichment *EnrichmentData, found []attractors.Attractor, apiBaseURL string) ([]byte, error) {
	snap := src.Snapshot()

	data := htmlTemplateData{
		Name:       snap.Name,
		Graph:      RenderJSON(snap, enrichment),
		Walkers:    len(snap.Walkers),
		Attractors: found,
		APIBaseURL: apiBaseURL,
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}
