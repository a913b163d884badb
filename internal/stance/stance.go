// Package stance mines surface ideological signals from free text: how an
// issue is framed, who is blamed or credited, and which authorities are
// cited. Signals come from regex tables compiled once at package init.
package stance

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

const (
	// MaxKeywords caps the keywords kept per signal.
	MaxKeywords = 5
	// MaxMatches caps the positions a signature is matched to.
	MaxMatches = 5
	// MinSharedWords is how many claim words a text must share with a
	// position to match it.
	MinSharedWords = 3

	snippetLen   = 100
	signalsToMax = 5.0
)

// Frame is a detected framing. Strength grows with match density.
type Frame struct {
	Type     FrameType `json:"frame_type"`
	Strength float64   `json:"strength"`
	Keywords []string  `json:"keywords,omitempty"`
	Snippet  string    `json:"snippet,omitempty"`
}

// Attribution is a detected blame (negative valence) or credit (positive).
type Attribution struct {
	Target   Target   `json:"target"`
	Valence  float64  `json:"valence"`
	Keywords []string `json:"keywords,omitempty"`
	Snippet  string   `json:"snippet,omitempty"`
}

// Source is a detected appeal to authority.
type Source struct {
	Type        SourceType `json:"source_type"`
	Credibility float64    `json:"credibility"`
	Keywords    []string   `json:"keywords,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
}

// Signature is everything extracted from one text.
type Signature struct {
	Text         string                    `json:"text"`
	Frames       []Frame                   `json:"frames,omitempty"`
	Attributions []Attribution             `json:"attributions,omitempty"`
	Sources      []Source                  `json:"sources,omitempty"`
	Positions    []string                  `json:"inferred_positions,omitempty"`
	DomainScores map[models.Domain]float64 `json:"domain_scores,omitempty"`
	Confidence   float64                   `json:"confidence"`
	ExtractedAt  time.Time                 `json:"extracted_at"`
}

// DominantFrame returns the strongest frame.
func (s Signature) DominantFrame() (Frame, bool) {
	if len(s.Frames) == 0 {
		return Frame{}, false
	}
	best := s.Frames[0]
	for _, f := range s.Frames[1:] {
		if f.Strength > best.Strength {
			best = f
		}
	}
	return best, true
}

// BlameTarget returns the most negative attribution.
func (s Signature) BlameTarget() (Attribution, bool) {
	var best Attribution
	found := false
	for _, a := range s.Attributions {
		if a.Valence < 0 && (!found || a.Valence < best.Valence) {
			best, found = a, true
		}
	}
	return best, found
}

// CreditTarget returns the most positive attribution.
func (s Signature) CreditTarget() (Attribution, bool) {
	var best Attribution
	found := false
	for _, a := range s.Attributions {
		if a.Valence > 0 && (!found || a.Valence > best.Valence) {
			best, found = a, true
		}
	}
	return best, found
}

// TopDomain returns the highest scoring domain, ties broken by the closed
// domain order.
func (s Signature) TopDomain() (models.Domain, bool) {
	var best models.Domain
	score := 0.0
	for _, d := range models.Domains() {
		if v := s.DomainScores[d]; v > score {
			best, score = d, v
		}
	}
	return best, score > 0
}

// Extractor turns text into signatures. With a graph source it also
// matches the text against known position claims.
type Extractor struct {
	src graph.Source
	now func() time.Time
}

// NewExtractor creates an extractor. src may be nil.
func NewExtractor(src graph.Source) *Extractor {
	return &Extractor{src: src, now: time.Now}
}

// Extract builds the full signature for text.
func (e *Extractor) Extract(text string) Signature {
	lower := strings.ToLower(text)
	sig := Signature{
		Text:         text,
		Frames:       extractFrames(text, lower),
		Attributions: extractAttributions(text, lower),
		Sources:      extractSources(text, lower),
		ExtractedAt:  e.now(),
	}
	sig.DomainScores = inferDomains(sig.Frames)

	signals := len(sig.Frames) + len(sig.Attributions) + len(sig.Sources)
	sig.Confidence = math.Min(1, float64(signals)/signalsToMax)

	if e.src != nil {
		sig.Positions = matchPositions(e.src.Snapshot(), lower)
	}
	return sig
}

// PositionsFromHeadline proposes a position for a headline that carries
// at least one frame. The claim is the headline itself, placed in the
// strongest inferred domain with a neutral valence.
func (e *Extractor) PositionsFromHeadline(headline string) []models.Position {
	sig := e.Extract(headline)
	if _, ok := sig.DominantFrame(); !ok {
		return nil
	}
	domain, ok := sig.TopDomain()
	if !ok {
		domain = models.DomainUncategorized
	}
	p := models.Stance(headline, domain, models.WithValence(0))
	p.AddSource(models.Source{
		Text:       fmt.Sprintf("headline:%s", truncate(headline, 50)),
		SourceType: "headline",
	})
	return []models.Position{p}
}

// scan runs every rule against lower and returns the total match count,
// the weight sum and the unique first-group keywords in match order.
func scan(rules []rule, lower string) (count int, weight float64, keywords []string) {
	seen := make(map[string]bool)
	for _, r := range rules {
		for _, m := range r.re.FindAllStringSubmatch(lower, -1) {
			count++
			weight += r.weight
			kw := m[0]
			if len(m) > 1 {
				kw = m[1]
			}
			if !seen[kw] && len(keywords) < MaxKeywords {
				seen[kw] = true
				keywords = append(keywords, kw)
			}
		}
	}
	return count, weight, keywords
}

func extractFrames(text, lower string) []Frame {
	var out []Frame
	for _, fr := range frameTable {
		n, _, kws := scan(fr.rules, lower)
		if n == 0 {
			continue
		}
		out = append(out, Frame{
			Type:     fr.frame,
			Strength: math.Min(1, float64(n)/signalsToMax),
			Keywords: kws,
			Snippet:  truncate(text, snippetLen),
		})
	}
	slices.SortStableFunc(out, func(a, b Frame) int { return cmp.Compare(b.Strength, a.Strength) })
	return out
}

func extractAttributions(text, lower string) []Attribution {
	var out []Attribution
	for _, tr := range attributionTable {
		n, total, kws := scan(tr.rules, lower)
		if n == 0 {
			continue
		}
		out = append(out, Attribution{
			Target:   tr.target,
			Valence:  clamp(total/float64(n), -1, 1),
			Keywords: kws,
			Snippet:  truncate(text, snippetLen),
		})
	}
	slices.SortStableFunc(out, func(a, b Attribution) int {
		return cmp.Compare(math.Abs(b.Valence), math.Abs(a.Valence))
	})
	return out
}

func extractSources(text, lower string) []Source {
	var out []Source
	for _, sr := range sourceTable {
		n, total, kws := scan(sr.rules, lower)
		if n == 0 {
			continue
		}
		out = append(out, Source{
			Type:        sr.source,
			Credibility: total / float64(n),
			Keywords:    kws,
			Snippet:     truncate(text, snippetLen),
		})
	}
	slices.SortStableFunc(out, func(a, b Source) int { return cmp.Compare(b.Credibility, a.Credibility) })
	return out
}

// inferDomains sums frame strengths per mapped domain and normalizes by
// the maximum so the strongest domain scores 1.
func inferDomains(frames []Frame) map[models.Domain]float64 {
	if len(frames) == 0 {
		return nil
	}
	scores := make(map[models.Domain]float64)
	for _, f := range frames {
		for _, d := range frameDomains[f.Type] {
			scores[d] += f.Strength
		}
	}
	top := 0.0
	for _, v := range scores {
		top = math.Max(top, v)
	}
	if top == 0 {
		return nil
	}
	for d, v := range scores {
		scores[d] = v / top
	}
	return scores
}

var wordPattern = regexp.MustCompile(`\S+`)

func wordSet(lower string) map[string]bool {
	words := wordPattern.FindAllString(lower, -1)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// matchPositions returns up to MaxMatches position IDs, in graph order,
// whose claims share at least MinSharedWords words with lower.
func matchPositions(snap *graph.Snapshot, lower string) []string {
	text := wordSet(lower)
	var out []string
	for _, p := range snap.Positions() {
		shared := 0
		for w := range wordSet(strings.ToLower(p.Claim)) {
			if text[w] {
				shared++
			}
		}
		if shared >= MinSharedWords {
			out = append(out, p.ID)
			if len(out) == MaxMatches {
				break
			}
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
