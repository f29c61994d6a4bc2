package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/tracex/risk-engine/internal/collector"
	"github.com/tracex/risk-engine/internal/engine"
	"github.com/tracex/risk-engine/internal/indexer"
	"github.com/tracex/risk-engine/internal/lists"
	"github.com/tracex/risk-engine/pkg/models"
)

const rulesetYAML = `
rules:
  - id: C-003
    name: High-Value Transfer
    axis: C
    severity: MEDIUM
    score: 20
    conditions:
      gte: {field: amount, value: 1}
  - id: E-101
    name: Mixer Inflow
    axis: E
    severity: HIGH
    score: 40
    match:
      in_list: {field: from, list: MIXER_LIST}
`

const (
	seedAddr  = "0xAaaa000000000000000000000000000000000001"
	mixerAddr = "0xbbbb000000000000000000000000000000000001"
	cleanAddr = "0xcccc000000000000000000000000000000000001"
)

type stubFetcher struct {
	normal map[string][]indexer.RawTransaction
}

func (f *stubFetcher) GetNormalTransactions(_ context.Context, _ int64, address string, _, _ int64, _ string) ([]indexer.RawTransaction, error) {
	return f.normal[address], nil
}

func (f *stubFetcher) GetERC20Transfers(_ context.Context, _ int64, _ string, _, _ int64, _ string) ([]indexer.RawTransaction, error) {
	return nil, nil
}

func raw(hash, from, to, input, methodID string, ts int64) indexer.RawTransaction {
	return indexer.RawTransaction{
		BlockNumber: "1",
		TimeStamp:   fmt.Sprintf("%d", ts),
		Hash:        hash,
		From:        from,
		To:          to,
		Value:       "2000000000000000000",
		Input:       input,
		MethodID:    methodID,
	}
}

func newService(t *testing.T, f *stubFetcher, l *lists.Lists) *Service {
	t.Helper()
	rules, err := engine.ParseRuleset([]byte(rulesetYAML))
	if err != nil {
		t.Fatal(err)
	}
	return New(collector.New(f, l), rules, l, 365)
}

func TestAnalyzeAddressValidation(t *testing.T) {
	s := newService(t, &stubFetcher{}, lists.Empty())

	cases := []AnalyzeRequest{
		{},
		{Address: "not-an-address"},
		{Address: seedAddr, MaxHops: -1},
		{Address: seedAddr, AnalysisType: "deep"},
	}
	for _, req := range cases {
		if _, err := s.AnalyzeAddress(context.Background(), req); err == nil {
			t.Errorf("request %+v must be rejected", req)
		}
	}
}

func TestAnalyzeAddressMixerInflow(t *testing.T) {
	l := lists.Empty()
	l.Add(lists.MixerList, mixerAddr)
	seed := "0xaaaa000000000000000000000000000000000001"
	f := &stubFetcher{normal: map[string][]indexer.RawTransaction{
		seed:      {raw("0xh1", mixerAddr, seed, "0x", "", 1700000000)},
		mixerAddr: nil,
	}}

	s := newService(t, f, l)
	res, err := s.AnalyzeAddress(context.Background(), AnalyzeRequest{
		Address: seedAddr, ChainID: 1, MaxHops: 1, MaxAddressesPerDirection: 5,
	})
	if err != nil {
		t.Fatalf("AnalyzeAddress: %v", err)
	}

	if res.Address != seed {
		t.Errorf("address = %q, want lowercased seed", res.Address)
	}
	if res.Chain != "ethereum" {
		t.Errorf("chain = %q", res.Chain)
	}
	found := false
	for _, fr := range res.FiredRules {
		if fr.RuleID == "E-101" {
			found = true
		}
	}
	if !found {
		t.Errorf("fired = %v, want E-101", res.FiredRules)
	}
	if res.RiskScore <= 0 || res.RiskScore > 100 {
		t.Errorf("score = %d, out of range", res.RiskScore)
	}
}

func TestUnknownTransactionsDoNotReachScoring(t *testing.T) {
	seed := "0xaaaa000000000000000000000000000000000001"
	var page []indexer.RawTransaction
	for i := 0; i < 5; i++ {
		page = append(page,
			raw(fmt.Sprintf("0xgood%d", i), cleanAddr, seed, "0x", "", 1700000000+int64(i)),
			raw(fmt.Sprintf("0xbad%d", i), cleanAddr, seed, "0xdeadbeef", "0xdeadbeef", 1700000000+int64(i)))
	}
	f := &stubFetcher{normal: map[string][]indexer.RawTransaction{seed: page, cleanAddr: nil}}

	s := newService(t, f, lists.Empty())
	res, err := s.AnalyzeAddress(context.Background(), AnalyzeRequest{
		Address: seedAddr, ChainID: 1, MaxHops: 1, MaxAddressesPerDirection: 5,
	})
	if err != nil {
		t.Fatalf("AnalyzeAddress: %v", err)
	}
	if len(res.Timeline) != 5 {
		t.Errorf("timeline = %d entries, want only the 5 classified transfers", len(res.Timeline))
	}
	if res.AnalysisSummary.TotalTransactions != 5 {
		t.Errorf("total = %d, want 5", res.AnalysisSummary.TotalTransactions)
	}
}

func TestZeroHopsScoresSeedAlone(t *testing.T) {
	s := newService(t, &stubFetcher{}, lists.Empty())
	res, err := s.AnalyzeAddress(context.Background(), AnalyzeRequest{
		Address: seedAddr, ChainID: 1, MaxHops: 0, MaxAddressesPerDirection: 1,
	})
	if err != nil {
		t.Fatalf("AnalyzeAddress: %v", err)
	}
	if len(res.FiredRules) != 0 || res.RiskScore != 0 {
		t.Errorf("zero-hop result = %d with %v, want empty", res.RiskScore, res.FiredRules)
	}
}

func TestFundFlowRequiresAddress(t *testing.T) {
	s := newService(t, &stubFetcher{}, lists.Empty())
	if _, err := s.FundFlow(context.Background(), 1, "  "); err == nil {
		t.Error("blank address must be rejected")
	}
}

func TestAnalyzeTransactionsSkipsCollector(t *testing.T) {
	// No fetcher data at all: the supplied transactions must be enough.
	l := lists.Empty()
	l.Add(lists.MixerList, mixerAddr)
	s := newService(t, &stubFetcher{}, l)

	res, err := s.AnalyzeTransactions(AnalyzeTransactionsRequest{
		Address: seedAddr,
		Chain:   "ethereum",
		Transactions: []models.TransactionInput{
			{
				TxHash:              "0xh1",
				Timestamp:           "1700000000",
				CounterpartyAddress: mixerAddr,
				IsMixer:             true,
				AmountUsd:           500,
			},
		},
	})
	if err != nil {
		t.Fatalf("AnalyzeTransactions: %v", err)
	}
	if res.Address != "0xaaaa000000000000000000000000000000000001" {
		t.Errorf("address = %q", res.Address)
	}
	found := false
	for _, fr := range res.FiredRules {
		if fr.RuleID == "E-101" {
			found = true
		}
	}
	if !found {
		t.Errorf("fired = %v, want E-101 from the mixer flag", res.FiredRules)
	}
}

func TestAnalyzeTransactionsValidation(t *testing.T) {
	s := newService(t, &stubFetcher{}, lists.Empty())

	if _, err := s.AnalyzeTransactions(AnalyzeTransactionsRequest{}); err == nil {
		t.Error("missing address must be rejected")
	}
	if _, err := s.AnalyzeTransactions(AnalyzeTransactionsRequest{
		Address: seedAddr, AnalysisType: "deep",
	}); err == nil {
		t.Error("unknown analysis type must be rejected")
	}
}

func TestHybridAnalysisTypeEnablesBlend(t *testing.T) {
	seed := "0xaaaa000000000000000000000000000000000001"
	f := &stubFetcher{normal: map[string][]indexer.RawTransaction{
		seed:      {raw("0xh1", cleanAddr, seed, "0x", "", 1700000000)},
		cleanAddr: nil,
	}}
	s := newService(t, f, lists.Empty())

	res, err := s.AnalyzeAddress(context.Background(), AnalyzeRequest{
		Address: seedAddr, ChainID: 1, MaxHops: 1,
		MaxAddressesPerDirection: 5, AnalysisType: AnalysisHybrid,
	})
	if err != nil {
		t.Fatalf("AnalyzeAddress: %v", err)
	}
	if res.RiskScore < 0 || res.RiskScore > 100 {
		t.Errorf("hybrid score = %d, out of range", res.RiskScore)
	}
}

func TestScoringGraphReturnsCollectedGraph(t *testing.T) {
	seed := "0xaaaa000000000000000000000000000000000001"
	f := &stubFetcher{normal: map[string][]indexer.RawTransaction{
		seed:      {raw("0xh1", cleanAddr, seed, "0x", "", 1700000000)},
		cleanAddr: nil,
	}}
	s := newService(t, f, lists.Empty())

	g, err := s.ScoringGraph(context.Background(), AnalyzeRequest{
		Address: seedAddr, ChainID: 1, MaxHops: 1, MaxAddressesPerDirection: 5,
	})
	if err != nil {
		t.Fatalf("ScoringGraph: %v", err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph = %d nodes / %d edges, want 2/1", len(g.Nodes), len(g.Edges))
	}
}
