package engine

import (
	"testing"

	"github.com/tracex/risk-engine/internal/lists"
)

func TestClauseComposition(t *testing.T) {
	tx := &TxData{UsdValue: 500, Label: "cex"}

	anyClause := &Clause{Any: []*Clause{
		{Gte: &CmpPred{Field: "usd_value", Value: 1000}},
		{Eq: &CmpPred{Field: "label", Value: "CEX"}},
	}}
	if !evalClause(anyClause, tx, lists.Empty()) {
		t.Error("any: label equality should satisfy the clause")
	}

	allClause := &Clause{All: []*Clause{
		{Gte: &CmpPred{Field: "usd_value", Value: 100}},
		{Lt: &CmpPred{Field: "usd_value", Value: 400}},
	}}
	if evalClause(allClause, tx, lists.Empty()) {
		t.Error("all: 500 is not below 400")
	}
}

func TestInListUsesLoadedListsAndFlags(t *testing.T) {
	l := lists.Empty()
	mixer := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	l.Add(lists.MixerList, mixer)

	byList := &Clause{InList: &InListPred{Field: "from", List: lists.MixerList}}
	if !evalClause(byList, &TxData{From: mixer}, l) {
		t.Error("loaded list membership must match")
	}
	if !evalClause(byList, &TxData{From: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}, l) {
		t.Error("membership must be case-insensitive")
	}

	// Counterparty flag substitutes for a missing list entry, but only on
	// the "to" field.
	byFlag := &Clause{InList: &InListPred{Field: "to", List: lists.SDNList}}
	if !evalClause(byFlag, &TxData{To: "0xother", IsSanctioned: true}, lists.Empty()) {
		t.Error("is_sanctioned flag must satisfy SDN membership on to")
	}
	fromFlag := &Clause{InList: &InListPred{Field: "from", List: lists.SDNList}}
	if evalClause(fromFlag, &TxData{From: "0xother", IsSanctioned: true}, lists.Empty()) {
		t.Error("flag fallback does not apply to from")
	}
}

func TestUnknownFieldNeverMatches(t *testing.T) {
	c := &Clause{Gte: &CmpPred{Field: "no_such_field", Value: 0}}
	if evalClause(c, &TxData{UsdValue: 10}, lists.Empty()) {
		t.Error("predicates on unknown fields must be false")
	}
}

func TestInterarrivalFieldUndefinedUntilSet(t *testing.T) {
	tx := &TxData{}
	c := &Clause{Lte: &CmpPred{Field: "interarrival_std", Value: 100}}
	if evalClause(c, tx, lists.Empty()) {
		t.Error("interarrival_std must be undefined before the stats branch sets it")
	}
	tx.SetInterarrivalStd(50)
	if !evalClause(c, tx, lists.Empty()) {
		t.Error("interarrival_std must resolve once set")
	}
}

func TestAggregationPredicates(t *testing.T) {
	mk := func(usd float64, from string) *TxData { return &TxData{UsdValue: usd, From: from} }
	candidates := []*TxData{mk(100, "0xa"), mk(200, "0xb"), mk(300, "0xa")}

	cases := []struct {
		name string
		agg  Aggregation
		want bool
	}{
		{"sum passes", Aggregation{SumGte: &AggArg{Field: "usd_value", Value: 600}}, true},
		{"sum fails", Aggregation{SumGte: &AggArg{Field: "usd_value", Value: 601}}, false},
		{"count", Aggregation{CountGte: &AggArg{Value: 3}}, true},
		{"every fails on the smallest", Aggregation{EveryGte: &AggArg{Field: "usd_value", Value: 150}}, false},
		{"any passes on the largest", Aggregation{AnyGte: &AggArg{Field: "usd_value", Value: 300}}, true},
		{"avg is 200", Aggregation{AvgGte: &AggArg{Field: "usd_value", Value: 200}}, true},
		{"two distinct senders", Aggregation{DistinctGte: &AggArg{Field: "from", Value: 2}}, true},
		{"not three distinct senders", Aggregation{DistinctGte: &AggArg{Field: "from", Value: 3}}, false},
	}
	for _, tc := range cases {
		if got := evalAggregation(tc.agg, candidates); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDefaultAggregationFieldReadsUsdValue(t *testing.T) {
	agg := Aggregation{SumGte: &AggArg{Value: 100}}
	if !evalAggregation(agg, []*TxData{{UsdValue: 150}}) {
		t.Error("missing field must default to usd_value")
	}
}
