package engine

import (
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-yaml"
)

// Score used when a rule declares the literal "dynamic" score but its
// branch produced no computed value.
const dynamicScoreFallback = 15.0

// RuleKind is resolved once at load time so the evaluator dispatches on a
// closed set instead of re-inspecting rule ids per transaction.
type RuleKind int

const (
	KindPlain RuleKind = iota
	KindWindow
	KindBucket
	KindDynamicBucket
	KindLayering
	KindCycle
	KindStats
	KindPPR
)

func (k RuleKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindWindow:
		return "window"
	case KindBucket:
		return "bucket"
	case KindDynamicBucket:
		return "dynamic_bucket"
	case KindLayering:
		return "layering"
	case KindCycle:
		return "cycle"
	case KindStats:
		return "stats"
	case KindPPR:
		return "ppr"
	}
	return "unknown"
}

// Ruleset is the parsed rule file.
type Ruleset struct {
	Defaults Defaults `yaml:"defaults"`
	Rules    []*Rule  `yaml:"rules"`
}

type Defaults struct {
	MaxHistoryDays     int     `yaml:"max_history_days"`
	PPRDamping         float64 `yaml:"ppr_damping"`
	MixerRiskThreshold float64 `yaml:"mixer_risk_threshold"`
}

// Rule is one declarative rule. Exactly one dispatch block is expected;
// the resolved Kind records which one.
type Rule struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Axis     string `yaml:"axis"`
	Severity string `yaml:"severity"`
	Score    any    `yaml:"score"`

	// Reserved. Rules carrying a state block are skipped entirely.
	State any `yaml:"state"`

	Match      *Clause `yaml:"match"`
	Conditions *Clause `yaml:"conditions"`
	Exceptions *Clause `yaml:"exceptions"`

	Window       *WindowSpec   `yaml:"window"`
	Aggregations []Aggregation `yaml:"aggregations"`
	Bucket       *BucketSpec   `yaml:"bucket"`
	Buckets      *BucketSpec   `yaml:"buckets"`
	Topology     *TopologySpec `yaml:"topology"`

	Prerequisites *Prerequisites `yaml:"prerequisites"`

	// Numeric-range scoring (B-501 family).
	Field  string  `yaml:"field"`
	Ranges []Range `yaml:"ranges"`

	Kind RuleKind `yaml:"-"`
}

// ScoreValue resolves the declared score to a number. The "dynamic"
// literal falls back to a fixed default; branches that compute scores at
// fire time override it.
func (r *Rule) ScoreValue() float64 {
	return scoreNumber(r.Score, dynamicScoreFallback)
}

func scoreNumber(v any, fallback float64) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case int:
		return float64(s)
	case int64:
		return float64(s)
	case uint64:
		return float64(s)
	case string:
		return fallback
	case nil:
		return fallback
	}
	return fallback
}

// Clause is the boolean grammar shared by match, conditions and
// exceptions. A clause is either a composition (any/all) or a single
// predicate; a composition with members ignores its predicate fields.
type Clause struct {
	Any []*Clause `yaml:"any"`
	All []*Clause `yaml:"all"`

	InList *InListPred `yaml:"in_list"`
	Gte    *CmpPred    `yaml:"gte"`
	Lte    *CmpPred    `yaml:"lte"`
	Gt     *CmpPred    `yaml:"gt"`
	Lt     *CmpPred    `yaml:"lt"`
	Eq     *CmpPred    `yaml:"eq"`
}

// InListPred tests case-insensitive membership of a string field in a
// named address list.
type InListPred struct {
	Field string `yaml:"field"`
	List  string `yaml:"list"`
}

// CmpPred compares a numeric field against a constant. Eq additionally
// supports value equality on strings.
type CmpPred struct {
	Field string `yaml:"field"`
	Value any    `yaml:"value"`
}

// WindowSpec declares a sliding-window evaluation grouped by target
// address. Aggregations may live here or at the rule's top level.
type WindowSpec struct {
	DurationSec  int64         `yaml:"duration_sec"`
	GroupBy      []string      `yaml:"group_by"`
	Aggregations []Aggregation `yaml:"aggregations"`
}

// BucketSpec declares fixed-width epoch-anchored buckets.
type BucketSpec struct {
	SizeSec      int64         `yaml:"size_sec"`
	GroupBy      []string      `yaml:"group_by"`
	Aggregations []Aggregation `yaml:"aggregations"`
}

// Aggregation is a single predicate over the candidate set. Exactly one
// member is expected to be set.
type Aggregation struct {
	SumGte      *AggArg `yaml:"sum_gte"`
	CountGte    *AggArg `yaml:"count_gte"`
	EveryGte    *AggArg `yaml:"every_gte"`
	AnyGte      *AggArg `yaml:"any_gte"`
	AvgGte      *AggArg `yaml:"avg_gte"`
	DistinctGte *AggArg `yaml:"distinct_gte"`
}

// AggArg is an aggregation argument: a field plus threshold, or a bare
// scalar threshold for count-style predicates.
type AggArg struct {
	Field string  `yaml:"field"`
	Value float64 `yaml:"value"`
}

// UnmarshalYAML accepts both the mapping form {field, value} and a bare
// numeric threshold.
func (a *AggArg) UnmarshalYAML(data []byte) error {
	var scalar float64
	if err := yaml.Unmarshal(data, &scalar); err == nil {
		a.Value = scalar
		return nil
	}
	type plain AggArg
	var p plain
	if err := yaml.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = AggArg(p)
	return nil
}

// TopologySpec covers both layering chains and cycles; CycleLengthIn
// present means cycle.
type TopologySpec struct {
	SameToken            bool    `yaml:"same_token"`
	HopLengthGte         int     `yaml:"hop_length_gte"`
	HopAmountDeltaPctLte float64 `yaml:"hop_amount_delta_pct_lte"`
	MinUsdValue          float64 `yaml:"min_usd_value"`

	CycleLengthIn    []int   `yaml:"cycle_length_in"`
	CycleTotalUsdGte float64 `yaml:"cycle_total_usd_gte"`
}

type Prerequisites struct {
	MinEdges int `yaml:"min_edges"`
}

// Range is one half-open scoring interval [Min, Max). A nil bound is
// unbounded on that side.
type Range struct {
	Min   *float64 `yaml:"min"`
	Max   *float64 `yaml:"max"`
	Score float64  `yaml:"score"`
}

// Contains reports whether v falls in [Min, Max).
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v >= *r.Max {
		return false
	}
	return true
}

// LoadRuleset reads and parses the rule file, resolving each rule's kind.
// Rules that fail kind resolution are dropped with a log line; a missing
// or unparseable file is fatal to the caller.
func LoadRuleset(path string) (*Ruleset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", path, err)
	}
	return ParseRuleset(raw)
}

// ParseRuleset parses YAML ruleset bytes.
func ParseRuleset(raw []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("parse ruleset: %w", err)
	}

	kept := rs.Rules[:0]
	for _, r := range rs.Rules {
		kind, ok := resolveKind(r)
		if !ok {
			log.Printf("[Rules] skipping rule %q: no usable dispatch block", r.ID)
			continue
		}
		r.Kind = kind
		kept = append(kept, r)
	}
	rs.Rules = kept
	return &rs, nil
}

// resolveKind maps a parsed rule onto the closed dispatch set. Rules with
// no id, a reserved state block, or no recognizable block are dropped.
func resolveKind(r *Rule) (RuleKind, bool) {
	if r.ID == "" || r.State != nil {
		return 0, false
	}
	switch r.ID {
	case "E-102":
		return KindPPR, true
	case "B-103":
		return KindStats, true
	case "B-201":
		return KindLayering, r.Topology != nil
	case "B-202":
		return KindCycle, r.Topology != nil
	case "B-501":
		return KindDynamicBucket, len(r.Ranges) > 0
	}
	switch {
	case r.Topology != nil && len(r.Topology.CycleLengthIn) > 0:
		return KindCycle, true
	case r.Topology != nil:
		return KindLayering, true
	case len(r.Ranges) > 0:
		return KindDynamicBucket, true
	case r.Bucket != nil || r.Buckets != nil:
		return KindBucket, true
	case r.Window != nil || len(r.Aggregations) > 0:
		return KindWindow, true
	case r.Match != nil || r.Conditions != nil:
		return KindPlain, true
	}
	return 0, false
}

// BucketSpecOf returns the effective bucket spec, honoring the plural
// alias.
func (r *Rule) BucketSpecOf() *BucketSpec {
	if r.Bucket != nil {
		return r.Bucket
	}
	return r.Buckets
}

// WindowAggregations returns the effective aggregation list for a window
// rule.
func (r *Rule) WindowAggregations() []Aggregation {
	if r.Window != nil && len(r.Window.Aggregations) > 0 {
		return r.Window.Aggregations
	}
	return r.Aggregations
}

// WindowDuration returns the window length in seconds, 0 when the rule
// only declared bare aggregations.
func (r *Rule) WindowDuration() int64 {
	if r.Window != nil {
		return r.Window.DurationSec
	}
	return 0
}
