package spreading

import "sort"

// InhibitionConfig holds parameters for lateral inhibition.
// Lateral inhibition suppresses weakly activated positions so the
// strongest signals dominate.
type InhibitionConfig struct {
	// Strength controls how strongly winners suppress losers. Default: 0.15.
	Strength float64

	// Breadth is the number of winners. Default: 7.
	Breadth int

	// Enabled controls whether inhibition is applied. Default: true.
	Enabled bool
}

// DefaultInhibitionConfig returns the default lateral inhibition config.
func DefaultInhibitionConfig() InhibitionConfig {
	return InhibitionConfig{
		Strength: 0.15,
		Breadth:  7,
		Enabled:  true,
	}
}

// ApplyInhibition performs lateral inhibition on non-negative activations.
// The Breadth strongest positions keep their activation; every other
// position loses Strength times the gap to the winners' mean, floored at
// zero. Ties break by ID. The input map is not modified.
func ApplyInhibition(activations map[string]float64, config InhibitionConfig) map[string]float64 {
	if !config.Enabled || len(activations) == 0 {
		return copyMap(activations)
	}

	if config.Breadth <= 0 || len(activations) <= config.Breadth {
		return copyMap(activations)
	}

	type nodeAct struct {
		id  string
		act float64
	}
	nodes := make([]nodeAct, 0, len(activations))
	for id, act := range activations {
		nodes = append(nodes, nodeAct{id: id, act: act})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].act != nodes[j].act {
			return nodes[i].act > nodes[j].act
		}
		return nodes[i].id < nodes[j].id
	})

	m := config.Breadth
	winners := nodes[:m]

	var winnerSum float64
	for _, w := range winners {
		winnerSum += w.act
	}
	meanWinnerAct := winnerSum / float64(m)

	result := make(map[string]float64, len(activations))
	for _, w := range winners {
		result[w.id] = w.act
	}

	losers := nodes[m:]
	for _, loser := range losers {
		suppression := config.Strength * (meanWinnerAct - loser.act)
		suppressed := loser.act - suppression
		if suppressed < 0 {
			suppressed = 0
		}
		result[loser.id] = suppressed
	}

	return result
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
