package collector

import (
	"context"
	"fmt"
	"testing"

	"github.com/tracex/risk-engine/internal/indexer"
	"github.com/tracex/risk-engine/internal/lists"
	"github.com/tracex/risk-engine/pkg/models"
)

// fakeFetcher serves canned per-address transaction pages.
type fakeFetcher struct {
	normal map[string][]indexer.RawTransaction
	tokens map[string][]indexer.RawTransaction
	fail   map[string]bool
	calls  []string
}

func (f *fakeFetcher) GetNormalTransactions(ctx context.Context, chainID int64, address string, _, _ int64, _ string) ([]indexer.RawTransaction, error) {
	f.calls = append(f.calls, "txlist:"+address)
	if f.fail[address] {
		return nil, &indexer.IndexerError{Message: "NOTOK"}
	}
	return f.normal[address], nil
}

func (f *fakeFetcher) GetERC20Transfers(ctx context.Context, chainID int64, address string, _, _ int64, _ string) ([]indexer.RawTransaction, error) {
	if f.fail[address] {
		return nil, &indexer.IndexerError{Message: "NOTOK"}
	}
	return f.tokens[address], nil
}

func nativeTx(hash, from, to, value string) indexer.RawTransaction {
	return indexer.RawTransaction{
		BlockNumber: "100",
		TimeStamp:   "1700000000",
		Hash:        hash,
		From:        from,
		To:          to,
		Value:       value,
		Input:       "0x",
	}
}

func singleWorker(f *fakeFetcher) *Collector {
	c := New(f, lists.Empty())
	c.workers = 1
	return c
}

func TestCollectSingleHop(t *testing.T) {
	seed := "0xseed"
	f := &fakeFetcher{
		normal: map[string][]indexer.RawTransaction{
			seed: {
				nativeTx("0xh1", "0xalice", seed, "1000000000000000000"),
				nativeTx("0xh2", seed, "0xbob", "2000000000000000000"),
			},
		},
	}

	graph, stats, err := singleWorker(f).Collect(context.Background(), 1, seed, 1, 5)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(graph.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3 (seed, alice, bob)", len(graph.Nodes))
	}
	if len(graph.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(graph.Edges))
	}
	if stats.AddressesVisited != 1 || stats.PartialData {
		t.Errorf("stats = %+v", stats)
	}
	// Native value scaled by 1e18.
	for _, e := range graph.Edges {
		if e.TxHash == "0xh1" && e.Amount != "1" {
			t.Errorf("amount = %q, want 1", e.Amount)
		}
	}
}

func TestZeroHopsReturnsSeedOnly(t *testing.T) {
	f := &fakeFetcher{}
	graph, _, err := singleWorker(f).Collect(context.Background(), 1, "0xSeed", 0, 5)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(graph.Nodes) != 1 || graph.Nodes[0].Address != "0xseed" {
		t.Errorf("graph nodes = %+v, want only the lowercased seed", graph.Nodes)
	}
	if len(f.calls) != 0 {
		t.Errorf("no fetches expected at zero hops, got %v", f.calls)
	}
}

func TestFanOutTrimPerDirection(t *testing.T) {
	seed := "0xseed"
	var txs []indexer.RawTransaction
	for i := 0; i < 4; i++ {
		txs = append(txs,
			nativeTx(fmt.Sprintf("0xin%d", i), fmt.Sprintf("0xin%d", i), seed, "1000000000000000000"),
			nativeTx(fmt.Sprintf("0xout%d", i), seed, fmt.Sprintf("0xout%d", i), "1000000000000000000"))
	}
	f := &fakeFetcher{normal: map[string][]indexer.RawTransaction{seed: txs}}

	_, stats, err := singleWorker(f).Collect(context.Background(), 1, seed, 2, 1)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	// Hop 0 visits the seed; hop 1 visits at most one inbound plus one
	// outbound counterparty.
	if stats.AddressesVisited != 3 {
		t.Errorf("visited = %d, want 3", stats.AddressesVisited)
	}
}

func TestFetchFailureIsRecordedNotFatal(t *testing.T) {
	seed := "0xseed"
	f := &fakeFetcher{
		normal: map[string][]indexer.RawTransaction{
			seed: {nativeTx("0xh1", "0xalice", seed, "1000000000000000000")},
		},
		fail: map[string]bool{"0xalice": true},
	}

	graph, stats, err := singleWorker(f).Collect(context.Background(), 1, seed, 2, 5)
	if err != nil {
		t.Fatalf("per-address failures must not abort: %v", err)
	}
	if stats.FetchFailures != 1 || !stats.PartialData {
		t.Errorf("stats = %+v, want one recorded failure", stats)
	}
	if len(graph.Edges) != 1 {
		t.Errorf("seed's own edges must survive, got %d", len(graph.Edges))
	}
}

func TestUnknownAndRevertedRecordsAreSkipped(t *testing.T) {
	seed := "0xseed"
	reverted := nativeTx("0xh1", "0xalice", seed, "1000000000000000000")
	reverted.IsError = "1"
	contractCall := nativeTx("0xh2", "0xbob", seed, "1000000000000000000")
	contractCall.Input = "0xdeadbeef"
	contractCall.MethodID = "0xdeadbeef"

	f := &fakeFetcher{normal: map[string][]indexer.RawTransaction{
		seed: {reverted, contractCall},
	}}

	graph, _, err := singleWorker(f).Collect(context.Background(), 1, seed, 1, 5)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(graph.Edges) != 0 {
		t.Errorf("edges = %d, want 0", len(graph.Edges))
	}
}

func TestVisitedAddressesAreNotRefetched(t *testing.T) {
	a, b := "0xaaaa", "0xbbbb"
	f := &fakeFetcher{
		normal: map[string][]indexer.RawTransaction{
			a: {nativeTx("0xh1", b, a, "1000000000000000000")},
			b: {nativeTx("0xh1", b, a, "1000000000000000000")},
		},
	}

	_, stats, err := singleWorker(f).Collect(context.Background(), 1, a, 3, 5)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if stats.AddressesVisited != 2 {
		t.Errorf("visited = %d, want 2 (a then b, no revisits)", stats.AddressesVisited)
	}
}

func TestCancelledContextAborts(t *testing.T) {
	seed := "0xseed"
	f := &fakeFetcher{normal: map[string][]indexer.RawTransaction{
		seed: {nativeTx("0xh1", "0xalice", seed, "1000000000000000000")},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := singleWorker(f).Collect(ctx, 1, seed, 1, 5); err == nil {
		t.Fatal("cancelled context must abort collection")
	}
}

func TestNodeFlagsComeFromLists(t *testing.T) {
	seed := "0xseed"
	mixer := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	l := lists.Empty()
	l.Add(lists.MixerList, mixer)

	f := &fakeFetcher{normal: map[string][]indexer.RawTransaction{
		seed: {nativeTx("0xh1", mixer, seed, "1000000000000000000")},
	}}
	c := New(f, l)
	c.workers = 1

	graph, _, err := c.Collect(context.Background(), 1, seed, 1, 5)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var found *models.ScoringNode
	for i := range graph.Nodes {
		if graph.Nodes[i].Address == mixer {
			found = &graph.Nodes[i]
		}
	}
	if found == nil {
		t.Fatal("mixer node missing")
	}
	if !found.IsMixer || found.Label != "mixer" {
		t.Errorf("mixer node = %+v", found)
	}
}
