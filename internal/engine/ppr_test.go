package engine

import "testing"

func TestPPRScoreZeroCases(t *testing.T) {
	g := NewWeightedGraph([]*TxData{edge("0xa", "0xb", 100)})

	if got := g.PPRScore("0xmissing", []string{"0xa"}, 0.85); got != 0 {
		t.Errorf("absent target = %v, want 0", got)
	}
	if got := g.PPRScore("0xb", []string{"0xmissing"}, 0.85); got != 0 {
		t.Errorf("no valid sources = %v, want 0", got)
	}
}

func TestPPRDirectNeighborRanksHigh(t *testing.T) {
	// Mass restarts at the mixer; its direct recipient must absorb a large
	// share.
	g := NewWeightedGraph([]*TxData{edge("0xmixer", "0xtarget", 5000)})

	score := g.PPRScore("0xtarget", []string{"0xmixer"}, 0.85)
	if score < 0.3 {
		t.Errorf("direct recipient score = %v, want a dominant share", score)
	}
	sum := score + g.PPRScore("0xmixer", []string{"0xmixer"}, 0.85)
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("two-node ranks sum to %v, want ~1", sum)
	}
}

func TestPPRDistantNodeScoresLower(t *testing.T) {
	g := NewWeightedGraph([]*TxData{
		edge("0xmixer", "0xnear", 1000),
		edge("0xnear", "0xfar", 1000),
		edge("0xfar", "0xfarther", 1000),
	})

	near := g.PPRScore("0xnear", []string{"0xmixer"}, 0.85)
	far := g.PPRScore("0xfarther", []string{"0xmixer"}, 0.85)
	if near <= far {
		t.Errorf("near %v must outrank farther %v", near, far)
	}
}

func TestConnectionRiskLevels(t *testing.T) {
	g := NewWeightedGraph([]*TxData{edge("0xmixer", "0xtarget", 5000)})

	risk := g.ConnectionRiskOf("0xtarget", nil, []string{"0xmixer"}, 0.85)
	if risk.SdnPPR != 0 {
		t.Errorf("no sanctioned sources, sdn_ppr = %v", risk.SdnPPR)
	}
	if risk.Total != 0.4*risk.MixerPPR {
		t.Errorf("total = %v, want 0.4 * mixer", risk.Total)
	}
	if risk.Total < 0.1 || risk.RiskLevel != "high" {
		t.Errorf("direct mixer inflow should be high, got %v at %v", risk.RiskLevel, risk.Total)
	}

	empty := NewWeightedGraph(nil)
	if lvl := empty.ConnectionRiskOf("0xtarget", nil, nil, 0.85).RiskLevel; lvl != "low" {
		t.Errorf("empty graph level = %q, want low", lvl)
	}
}
