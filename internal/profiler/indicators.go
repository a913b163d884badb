package profiler

import (
	"regexp"
	"strings"

	"github.com/nvandessel/ideograph/internal/forks"
)

// Weights for indicators derived from a fork's option wording.
const (
	optionWordWeight = 0.4
	optionWordMinLen = 5
)

var stopwords = map[string]bool{"a": true, "the": true, "is": true, "are": true, "and": true, "or": true}

// indicator is a pattern whose matches count toward one pole of a fork.
type indicator struct {
	re     *regexp.Regexp
	pole   forks.Pole
	weight float64
}

func curated(pattern string, pole forks.Pole, weight float64) indicator {
	return indicator{re: regexp.MustCompile(`(?i)` + pattern), pole: pole, weight: weight}
}

// curatedIndicators are hand-written, high-confidence phrasings for the
// canonical forks. They apply to any tree that contains a fork with the
// same ID.
var curatedIndicators = map[string][]indicator{
	"freedom_vs_equality": {
		curated(`equality.{0,20}(most important|priority|must)`, forks.PoleA, 0.8),
		curated(`freedom.{0,20}(most important|priority|must)`, forks.PoleB, 0.8),
		curated(`liberty.{0,20}(can'?t|cannot|never).{0,10}sacrifice`, forks.PoleB, 0.9),
		curated(`redistribu`, forks.PoleA, 0.7),
	},
	"markets": {
		curated(`free market`, forks.PoleB, 0.7),
		curated(`laissez.?faire`, forks.PoleB, 0.8),
		curated(`regulat.{0,20}(need|must|important)`, forks.PoleA, 0.7),
		curated(`socialis`, forks.PoleA, 0.75),
		curated(`capitalis.{0,20}(fail|problem|issue)`, forks.PoleA, 0.6),
	},
	"immigration": {
		curated(`open border`, forks.PoleA, 0.8),
		curated(`illegal.{0,10}immigra`, forks.PoleB, 0.6),
		curated(`deporta`, forks.PoleB, 0.7),
		curated(`immigrant.{0,20}(enrich|contribut|benefit)`, forks.PoleA, 0.7),
		curated(`culture.{0,20}(threat|destroy|replace)`, forks.PoleB, 0.8),
	},
	"israel": {
		curated(`palestin.{0,20}(rights|freedom|liberation)`, forks.PoleA, 0.85),
		curated(`israel.{0,20}(defend|ally|right)`, forks.PoleB, 0.8),
		curated(`apartheid`, forks.PoleA, 0.9),
		curated(`hamas.{0,20}(terror|attack)`, forks.PoleB, 0.7),
		curated(`occupation`, forks.PoleA, 0.75),
		curated(`zionism`, forks.PoleB, 0.5),
		curated(`anti.?semit`, forks.PoleB, 0.6),
	},
	"china": {
		curated(`(decouple|decoupling)`, forks.PoleB, 0.8),
		curated(`china.{0,20}(threat|danger|enemy)`, forks.PoleB, 0.85),
		curated(`engage.{0,20}china`, forks.PoleA, 0.7),
		curated(`ccp.{0,10}(evil|threat|regime)`, forks.PoleB, 0.9),
		curated(`taiwan.{0,20}defend`, forks.PoleB, 0.8),
	},
	"foreign_intervention": {
		curated(`anti.?imperialist`, forks.PoleA, 0.85),
		curated(`non.?intervention`, forks.PoleA, 0.8),
		curated(`(bring|spread).{0,10}democracy`, forks.PoleB, 0.8),
		curated(`military.{0,15}necessary`, forks.PoleB, 0.75),
		curated(`forever.?war`, forks.PoleA, 0.8),
	},
	"tradition_vs_progress": {
		curated(`progressive.{0,10}(value|vision)`, forks.PoleA, 0.7),
		curated(`traditional.{0,10}value`, forks.PoleB, 0.8),
		curated(`conservative`, forks.PoleB, 0.6),
		curated(`(outdated|backward)`, forks.PoleA, 0.7),
		curated(`chesterton`, forks.PoleB, 0.9),
	},
	"abortion": {
		curated(`pro.?choice`, forks.PoleA, 0.95),
		curated(`pro.?life`, forks.PoleB, 0.95),
		curated(`bodily.?autonom`, forks.PoleA, 0.9),
		curated(`(unborn|fetus).{0,10}(life|rights)`, forks.PoleB, 0.85),
		curated(`roe.{0,10}(v|vs|versus).{0,5}wade`, forks.PoleA, 0.6),
	},
	"guns": {
		curated(`gun.?control`, forks.PoleA, 0.8),
		curated(`second.?amendment`, forks.PoleB, 0.8),
		curated(`2a`, forks.PoleB, 0.85),
		curated(`ar.?15`, forks.PoleB, 0.5),
		curated(`assault.?weapon.{0,10}ban`, forks.PoleA, 0.85),
		curated(`self.?defen[sc]e.{0,10}right`, forks.PoleB, 0.8),
	},
	"speech": {
		curated(`free speech.{0,15}absolut`, forks.PoleB, 0.9),
		curated(`(hate|harm).{0,10}speech`, forks.PoleA, 0.7),
		curated(`deplatform`, forks.PoleA, 0.75),
		curated(`censorship.{0,10}(bad|wrong|never)`, forks.PoleB, 0.85),
		curated(`content.{0,10}moderat`, forks.PoleA, 0.6),
	},
	"crypto": {
		curated(`bitcoin.{0,20}(freedom|liberating)`, forks.PoleB, 0.8),
		curated(`crypto.{0,20}(scam|fraud|ponzi)`, forks.PoleA, 0.85),
		curated(`decentral.{0,20}(good|important|future)`, forks.PoleB, 0.8),
		curated(`blockchain.{0,20}(revolutionary|transform)`, forks.PoleB, 0.7),
	},
	"climate": {
		curated(`climate.{0,15}(emergency|crisis|urgent)`, forks.PoleA, 0.85),
		curated(`degrowth`, forks.PoleA, 0.9),
		curated(`climate.{0,15}(hoax|scam|alarmist)`, forks.PoleB, 0.9),
		curated(`green.?new.?deal`, forks.PoleA, 0.8),
		curated(`(nuclear|technology).{0,15}(solve|solution)`, forks.PoleB, 0.7),
	},
	"ai_risk": {
		curated(`ai.{0,15}(existential|x.?risk)`, forks.PoleA, 0.85),
		curated(`(pause|stop).{0,10}ai`, forks.PoleA, 0.8),
		curated(`e/acc|effective.?accelerat`, forks.PoleB, 0.9),
		curated(`ai.{0,15}(doom|apocalypse)`, forks.PoleA, 0.7),
		curated(`ai.{0,15}(overblown|exaggerat)`, forks.PoleB, 0.8),
	},
}

// optionIndicators turns each distinctive word of a fork option into a
// weak whole-word indicator for that pole.
func optionIndicators(option string, pole forks.Pole) []indicator {
	var out []indicator
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(option)) {
		if stopwords[word] || seen[word] || len([]rune(word)) < optionWordMinLen {
			continue
		}
		seen[word] = true
		out = append(out, indicator{
			re:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
			pole:   pole,
			weight: optionWordWeight,
		})
	}
	return out
}

// buildIndicators returns the indicators for every fork in tree, option
// words first and curated phrasings after.
func buildIndicators(tree *forks.Tree) map[string][]indicator {
	out := make(map[string][]indicator, tree.Len())
	for _, f := range tree.Forks() {
		var rules []indicator
		rules = append(rules, optionIndicators(f.OptionA, forks.PoleA)...)
		rules = append(rules, optionIndicators(f.OptionB, forks.PoleB)...)
		rules = append(rules, curatedIndicators[f.ID]...)
		out[f.ID] = rules
	}
	return out
}
