package engine

import "testing"

const testRulesetYAML = `
defaults:
  max_history_days: 365
rules:
  - id: E-101
    name: Mixer Inflow
    axis: E
    severity: HIGH
    score: 40
    match:
      in_list: {field: from, list: MIXER_LIST}
  - id: C-001
    name: Sanctioned Counterparty
    axis: C
    severity: CRITICAL
    score: 80
    match:
      any:
        - in_list: {field: from, list: SDN_LIST}
        - in_list: {field: to, list: SDN_LIST}
  - id: C-003
    name: High-Value Transfer
    axis: C
    severity: MEDIUM
    score: 20
    conditions:
      gte: {field: usd_value, value: 1000}
  - id: B-101
    name: Burst Inflow
    axis: B
    severity: MEDIUM
    score: 25
    window:
      duration_sec: 600
      group_by: [address]
      aggregations:
        - count_gte: 10
        - sum_gte: {field: usd_value, value: 1500}
  - id: B-103
    name: Interarrival Regularity
    axis: B
    severity: LOW
    score: 10
    prerequisites: {min_edges: 5}
  - id: B-201
    name: Layering Chain
    axis: B
    severity: HIGH
    score: 25
    topology:
      hop_length_gte: 3
      hop_amount_delta_pct_lte: 5
      min_usd_value: 100
  - id: B-202
    name: Circular Flow
    axis: B
    severity: HIGH
    score: 30
    topology:
      cycle_length_in: [3]
      cycle_total_usd_gte: 1000
  - id: B-501
    name: Value Band
    axis: B
    severity: LOW
    score: dynamic
    field: usd_value
    ranges:
      - {min: 10000, max: 100000, score: 10}
      - {min: 100000, score: 20}
  - id: E-102
    name: Mixer Connection Graph
    axis: E
    severity: HIGH
    score: 30
`

func loadTestRuleset(t *testing.T) *Ruleset {
	t.Helper()
	rs, err := ParseRuleset([]byte(testRulesetYAML))
	if err != nil {
		t.Fatalf("ParseRuleset: %v", err)
	}
	return rs
}

func TestRulesetKinds(t *testing.T) {
	rs := loadTestRuleset(t)

	want := map[string]RuleKind{
		"E-101": KindPlain,
		"C-001": KindPlain,
		"C-003": KindPlain,
		"B-101": KindWindow,
		"B-103": KindStats,
		"B-201": KindLayering,
		"B-202": KindCycle,
		"B-501": KindDynamicBucket,
		"E-102": KindPPR,
	}
	if len(rs.Rules) != len(want) {
		t.Fatalf("rules = %d, want %d", len(rs.Rules), len(want))
	}
	for _, r := range rs.Rules {
		if r.Kind != want[r.ID] {
			t.Errorf("rule %s kind = %v, want %v", r.ID, r.Kind, want[r.ID])
		}
	}
}

func TestUnusableRulesAreDropped(t *testing.T) {
	rs, err := ParseRuleset([]byte(`
rules:
  - name: no id at all
    score: 10
    conditions:
      gte: {field: usd_value, value: 1}
  - id: X-900
    name: reserved state block
    score: 10
    state: {phase: pending}
    conditions:
      gte: {field: usd_value, value: 1}
  - id: E-103
    name: empty shell
    score: 10
  - id: C-900
    name: survivor
    score: 10
    conditions:
      gte: {field: usd_value, value: 1}
`))
	if err != nil {
		t.Fatalf("ParseRuleset: %v", err)
	}
	if len(rs.Rules) != 1 || rs.Rules[0].ID != "C-900" {
		t.Errorf("surviving rules = %+v, want only C-900", rs.Rules)
	}
}

func TestDynamicScoreFallback(t *testing.T) {
	r := &Rule{Score: "dynamic"}
	if got := r.ScoreValue(); got != 15.0 {
		t.Errorf("dynamic fallback = %v, want 15", got)
	}
	r = &Rule{Score: uint64(40)}
	if got := r.ScoreValue(); got != 40 {
		t.Errorf("numeric score = %v, want 40", got)
	}
}

func TestAggArgScalarForm(t *testing.T) {
	rs, err := ParseRuleset([]byte(`
rules:
  - id: B-900
    name: scalar count
    score: 5
    window:
      duration_sec: 60
      aggregations:
        - count_gte: 3
`))
	if err != nil {
		t.Fatalf("ParseRuleset: %v", err)
	}
	aggs := rs.Rules[0].WindowAggregations()
	if len(aggs) != 1 || aggs[0].CountGte == nil || aggs[0].CountGte.Value != 3 {
		t.Errorf("aggregations = %+v", aggs)
	}
}

func TestRangeHalfOpen(t *testing.T) {
	lo, hi := 10.0, 20.0
	r := Range{Min: &lo, Max: &hi, Score: 5}
	if !r.Contains(10) {
		t.Error("lower bound is inclusive")
	}
	if r.Contains(20) {
		t.Error("upper bound is exclusive")
	}
	unbounded := Range{Min: &lo, Score: 5}
	if !unbounded.Contains(1e12) {
		t.Error("missing max means unbounded above")
	}
}
