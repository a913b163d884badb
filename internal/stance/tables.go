package stance

import (
	"regexp"

	"github.com/nvandessel/ideograph/internal/models"
)

// FrameType is a moral or ideological framing of an issue.
type FrameType string

const (
	FrameSecurity   FrameType = "security"   // safety, protection, stability
	FrameFreedom    FrameType = "freedom"    // liberty, autonomy, rights
	FrameFairness   FrameType = "fairness"   // equality, justice, equity
	FrameAuthority  FrameType = "authority"  // tradition, order, loyalty
	FramePurity     FrameType = "purity"     // sanctity, degradation
	FrameCare       FrameType = "care"       // harm, suffering, compassion
	FrameEfficiency FrameType = "efficiency" // pragmatism, results
	FrameIdentity   FrameType = "identity"   // group, heritage, belonging
)

// Target is who or what a text blames or credits.
type Target string

const (
	TargetGovernment    Target = "government"
	TargetCorporations  Target = "corporations"
	TargetElites        Target = "elites"
	TargetMedia         Target = "media"
	TargetForeignActors Target = "foreign_actors"
	TargetIndividuals   Target = "individuals"
	TargetSystems       Target = "systems"
)

// SourceType is a kind of authority a text appeals to.
type SourceType string

const (
	SourceAcademic   SourceType = "academic"
	SourceReligious  SourceType = "religious"
	SourcePolitical  SourceType = "political"
	SourceMedia      SourceType = "media"
	SourcePersonal   SourceType = "personal"
	SourceScientific SourceType = "scientific"
)

// rule is one compiled pattern with the weight a match contributes: a
// valence for attributions, a credibility for sources.
type rule struct {
	re     *regexp.Regexp
	weight float64
}

func compile(pattern string, weight float64) rule {
	return rule{re: regexp.MustCompile(`(?i)` + pattern), weight: weight}
}

type frameRules struct {
	frame FrameType
	rules []rule
}

type targetRules struct {
	target Target
	rules  []rule
}

type sourceRules struct {
	source SourceType
	rules  []rule
}

// Tables are scanned in declaration order, which is also the tie-break
// order of the sorted results.
var frameTable = []frameRules{
	{FrameSecurity, []rule{
		compile(`\b(threat|danger|protect|safe|security|risk|defense|attack|vulnerable)\b`, 1),
		compile(`\b(stability|order|chaos|crime|terror|invade)\b`, 1),
	}},
	{FrameFreedom, []rule{
		compile(`\b(freedom|liberty|rights|autonomous|choice|consent|voluntary)\b`, 1),
		compile(`\b(oppression|tyranny|mandate|forced|coercion|censorship)\b`, 1),
	}},
	{FrameFairness, []rule{
		compile(`\b(fair|equal|justice|equity|discriminat|privilege|disadvantage)\b`, 1),
		compile(`\b(bias|imbalance|disparity|unequal|exploit)\b`, 1),
	}},
	{FrameAuthority, []rule{
		compile(`\b(tradition|heritage|loyalty|patriot|respect|duty|hierarchy)\b`, 1),
		compile(`\b(subvers|betray|disrespect|undermine)\b`, 1),
	}},
	{FramePurity, []rule{
		compile(`\b(pure|sacred|moral|corrupt|degenerat|disgust|natural)\b`, 1),
		compile(`\b(contaminat|pollut|pervert|unnatural)\b`, 1),
	}},
	{FrameCare, []rule{
		compile(`\b(harm|suffer|compassion|help|victim|vulnerable|protect)\b`, 1),
		compile(`\b(cruel|abuse|neglect|care|nurture)\b`, 1),
	}},
	{FrameEfficiency, []rule{
		compile(`\b(efficient|effective|pragmatic|results|optimize|waste)\b`, 1),
		compile(`\b(bureaucra|bloat|streamline|productive)\b`, 1),
	}},
	{FrameIdentity, []rule{
		compile(`\b(identity|heritage|culture|community|belonging|tribe)\b`, 1),
		compile(`\b(authentic|roots|ancestors|people)\b`, 1),
	}},
}

var attributionTable = []targetRules{
	{TargetGovernment, []rule{
		compile(`\b(government|state|federal|congress|administration|politician)\b`, 0),
		compile(`\b(government.{0,20}(fail|corrupt|waste|oppress))`, -0.5),
		compile(`\b(government.{0,20}(protect|provide|help|support))`, 0.5),
	}},
	{TargetCorporations, []rule{
		compile(`\b(corporat|big tech|pharma|wall street|business|company)\b`, 0),
		compile(`\b(corporat.{0,20}(greed|exploit|profit|corrupt))`, -0.5),
		compile(`\b(corporat.{0,20}(innovate|job|grow|invest))`, 0.5),
	}},
	{TargetElites, []rule{
		compile(`\b(elite|establishment|ruling class|billionaire|oligarch)\b`, 0),
		compile(`\b(elite.{0,20}(control|manipulat|exploit|corrupt))`, -0.5),
	}},
	{TargetMedia, []rule{
		compile(`\b(media|press|journalist|news|msm|mainstream)\b`, 0),
		compile(`\b(media.{0,20}(lie|bias|propaganda|fake))`, -0.5),
		compile(`\b(media.{0,20}(expose|investigate|truth))`, 0.5),
	}},
	{TargetForeignActors, []rule{
		compile(`\b(china|russia|foreign|immigrant|outsider)\b`, 0),
		compile(`\b(foreign.{0,20}(interfere|threat|invade|steal))`, -0.5),
	}},
	{TargetIndividuals, []rule{
		compile(`\b(personal responsibility|individual|self-made|choice)\b`, 0),
		compile(`\b(lazy|irresponsible|entitled)\b`, -0.3),
	}},
	{TargetSystems, []rule{
		compile(`\b(system|structural|institution|capitalis|socialis)\b`, 0),
		compile(`\b(systemic.{0,20}(racism|oppression|failure))`, -0.3),
	}},
}

var sourceTable = []sourceRules{
	{SourceAcademic, []rule{
		compile(`\b(study|research|professor|university|peer.?review|data shows)\b`, 0.7),
		compile(`\b(according to.{0,30}(researchers|scientists|experts))\b`, 0.8),
	}},
	{SourceReligious, []rule{
		compile(`\b(bible|scripture|god|faith|church|religious|moral)\b`, 0.6),
		compile(`\b(tradition teaches|natural law)\b`, 0.7),
	}},
	{SourcePolitical, []rule{
		compile(`\b(democrat|republican|party|campaign|politician|congress)\b`, 0.3),
		compile(`\b(according to.{0,30}(senator|representative|president))\b`, 0.4),
	}},
	{SourceMedia, []rule{
		compile(`\b(report|article|news|journalist|source says)\b`, 0.5),
		compile(`\b(according to.{0,30}(nyt|wsj|fox|cnn|bbc))\b`, 0.6),
	}},
	{SourcePersonal, []rule{
		compile(`\b(i believe|in my experience|i've seen|i think|my family)\b`, 0.3),
		compile(`\b(common sense|obvious|everyone knows)\b`, 0.2),
	}},
	{SourceScientific, []rule{
		compile(`\b(scientific|evidence|experiment|data|consensus|peer.?review)\b`, 0.8),
		compile(`\b(proven|demonstrated|statistically)\b`, 0.7),
	}},
}

// frameDomains maps each frame onto the domains it usually signals.
var frameDomains = map[FrameType][]models.Domain{
	FrameSecurity:   {models.DomainForeignPolicy, models.DomainGovernance},
	FrameFreedom:    {models.DomainCivilLiberties, models.DomainEconomics},
	FrameFairness:   {models.DomainEconomics, models.DomainCivilLiberties},
	FrameAuthority:  {models.DomainIdentity, models.DomainGovernance},
	FramePurity:     {models.DomainIdentity, models.DomainMetaphysics},
	FrameCare:       {models.DomainSocial},
	FrameEfficiency: {models.DomainEconomics, models.DomainGovernance},
	FrameIdentity:   {models.DomainIdentity, models.DomainSocial},
}
