package engine

import "testing"

func TestBlendWeightsAndCap(t *testing.T) {
	m := NewMLScorer()

	if got := m.Blend(50, 100); got != 50*0.7+100*0.3 {
		t.Errorf("blend = %v", got)
	}
	if got := m.Blend(100, 100); got != 100 {
		t.Errorf("blend cap = %v, want 100", got)
	}
	if got := m.Blend(0, 0); got != 0 {
		t.Errorf("blend of zeros = %v", got)
	}
}

func TestPatternScoreFanInFanOut(t *testing.T) {
	target := "0xmid"
	var txs []*TxData
	// Gather: four senders each above the per-edge floor, total over 10k.
	for i, from := range []string{"0xs1", "0xs2", "0xs3", "0xs4"} {
		txs = append(txs, &TxData{
			TxHash: "0xin" + from, From: from, To: target,
			Timestamp: int64(1000 + i), UsdValue: 4000,
		})
	}
	// Scatter: four receivers.
	for i, to := range []string{"0xr1", "0xr2", "0xr3", "0xr4"} {
		txs = append(txs, &TxData{
			TxHash: "0xout" + to, From: target, To: to,
			Timestamp: int64(2000 + i), UsdValue: 3900,
		})
	}

	m := NewMLScorer()
	g := NewWeightedGraph(txs)
	score := m.PatternScore(g, target)

	// fan-in 15 + fan-out 15 + gather-scatter 10 at minimum.
	if score < 40 {
		t.Errorf("pattern score = %v, want at least 40", score)
	}
	if score > 100 {
		t.Errorf("pattern score = %v, exceeds cap", score)
	}
}

func TestPatternScoreEmptyGraph(t *testing.T) {
	m := NewMLScorer()
	if got := m.PatternScore(NewWeightedGraph(nil), "0xnobody"); got != 0 {
		t.Errorf("pattern score on empty graph = %v", got)
	}
}

func TestScoreIsBoundedForMixerNeighborhood(t *testing.T) {
	target := "0xtgt"
	mixer := "0xmix"
	txs := []*TxData{
		{TxHash: "0x1", From: mixer, To: target, Timestamp: 1000, UsdValue: 5000, IsMixer: true},
		{TxHash: "0x2", From: mixer, To: target, Timestamp: 2000, UsdValue: 5000, IsMixer: true},
	}

	m := NewMLScorer()
	score := m.Score(txs, target, nil, []string{mixer})
	if score <= 0 || score > 100 {
		t.Errorf("score = %v, want in (0, 100]", score)
	}
}
