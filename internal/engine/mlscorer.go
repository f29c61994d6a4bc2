package engine

import "math"

// Default blend between the declarative ruleset score and the model
// score.
const (
	DefaultRuleWeight = 0.7
	DefaultMLWeight   = 0.3
)

// Fan and stack detection floors used when deriving the pattern
// component.
const (
	fanMinCount      = 3
	fanMinTotal      = 10000
	fanMinEach       = 100
	stackMinLength   = 3
	stackMinValue    = 1000
	bipartiteMinSize = 4
)

// MLScorer produces a model-style score from graph features and blends it
// with the rule score. It is a deterministic feature blend; a pretrained
// model can replace the blend without touching the feature extraction.
type MLScorer struct {
	RuleWeight float64
	MLWeight   float64
	Damping    float64
}

func NewMLScorer() *MLScorer {
	return &MLScorer{
		RuleWeight: DefaultRuleWeight,
		MLWeight:   DefaultMLWeight,
		Damping:    defaultDamping,
	}
}

// PatternScore sums the detected structural patterns around the target:
// fan-in, fan-out, combined gather-scatter, stacked paths and bipartite
// structure. Capped at 100.
func (m *MLScorer) PatternScore(g *WeightedGraph, target string) float64 {
	var score float64

	fanIn := g.DetectFanIn(target, fanMinCount, fanMinTotal, fanMinEach)
	fanOut := g.DetectFanOut(target, fanMinCount, fanMinTotal, fanMinEach)
	if fanIn {
		score += 15
	}
	if fanOut {
		score += 15
	}
	if fanIn && fanOut {
		score += 10
	}
	if len(g.DetectStack(target, stackMinLength, stackMinValue)) > 0 {
		score += 20
	}
	nodes := g.Nodes()
	if len(nodes) >= bipartiteMinSize {
		if bp := g.DetectBipartite(nodes); bp.IsBipartite && bp.CrossEdges > 0 {
			score += 15
		}
	}
	return math.Min(100, score)
}

// ConnectivityScore blends the target's global rank with its sanctioned
// and mixer restart scores.
func (m *MLScorer) ConnectivityScore(g *WeightedGraph, target string, sdn, mixer []string) float64 {
	global := g.PPRScore(target, g.Nodes(), m.Damping)
	sdnPPR := g.PPRScore(target, sdn, m.Damping)
	mixerPPR := g.PPRScore(target, mixer, m.Damping)
	return global*0.4 + sdnPPR*0.4 + mixerPPR*0.2
}

// Score computes the model score for the target over its transactions.
func (m *MLScorer) Score(txs []*TxData, target string, sdn, mixer []string) float64 {
	g := NewWeightedGraph(txs)
	flows := NormalizeFlows(txs, target)

	score := m.ConnectivityScore(g, target, sdn, mixer)*100*0.3 +
		m.PatternScore(g, target)*0.4 +
		flows.Theta*20*0.15 +
		flows.Omega*20*0.15
	return math.Min(100, score)
}

// Blend combines the rule score and the model score.
func (m *MLScorer) Blend(ruleScore, mlScore float64) float64 {
	return math.Min(100, ruleScore*m.RuleWeight+mlScore*m.MLWeight)
}
