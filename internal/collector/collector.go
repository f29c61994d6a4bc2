// Package collector walks the fund-flow neighborhood of a seed address by
// breadth-first expansion over the indexer, producing the ScoringGraph the
// rule engine consumes.
package collector

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tracex/risk-engine/internal/classify"
	"github.com/tracex/risk-engine/internal/indexer"
	"github.com/tracex/risk-engine/internal/lists"
	"github.com/tracex/risk-engine/pkg/models"
)

// Fetch workers in flight at once. The indexer client paces requests
// globally, so this only bounds goroutine count, not request rate.
const defaultWorkers = 3

// TxFetcher is the slice of the indexer client the collector needs.
type TxFetcher interface {
	GetNormalTransactions(ctx context.Context, chainID int64, address string, startBlock, endBlock int64, sort string) ([]indexer.RawTransaction, error)
	GetERC20Transfers(ctx context.Context, chainID int64, address string, startBlock, endBlock int64, sort string) ([]indexer.RawTransaction, error)
}

// Stats summarizes one collection run.
type Stats struct {
	AddressesVisited int
	FetchFailures    int
	PartialData      bool
}

type Collector struct {
	fetcher TxFetcher
	lists   *lists.Lists
	workers int
}

func New(fetcher TxFetcher, addressLists *lists.Lists) *Collector {
	return &Collector{fetcher: fetcher, lists: addressLists, workers: defaultWorkers}
}

// fetchResult is the serialized output of one address fetch.
type fetchResult struct {
	address  string
	edges    []models.Edge
	inbound  []string
	outbound []string
	failed   bool
}

// Collect expands the graph from address for maxHops levels, visiting at
// most maxPerDirection new inbound and outbound counterparties per hop.
// Per-address fetch failures are counted and skipped; only context
// cancellation aborts the run.
func (c *Collector) Collect(ctx context.Context, chainID int64, address string, maxHops, maxPerDirection int) (*models.ScoringGraph, Stats, error) {
	seed := models.CanonicalAddress(address)
	graph := models.NewScoringGraph()
	graph.AddNode(chainID, seed, c.lists.Flags(seed))

	stats := Stats{}
	visited := map[string]struct{}{}
	frontier := []string{seed}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		pending := make([]string, 0, len(frontier))
		for _, a := range frontier {
			if _, ok := visited[a]; ok {
				continue
			}
			visited[a] = struct{}{}
			pending = append(pending, a)
		}
		if len(pending) == 0 {
			break
		}

		var mu sync.Mutex
		results := make([]fetchResult, 0, len(pending))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for _, a := range pending {
			g.Go(func() error {
				res := c.fetchAddress(gctx, chainID, a)
				if gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, stats, err
		}

		var inbound, outbound []string
		for _, res := range results {
			stats.AddressesVisited++
			if res.failed {
				stats.FetchFailures++
				stats.PartialData = true
				continue
			}
			for _, e := range res.edges {
				graph.AddNode(chainID, e.From, c.lists.Flags(e.From))
				graph.AddNode(chainID, e.To, c.lists.Flags(e.To))
				graph.AddEdge(e)
			}
			inbound = append(inbound, res.inbound...)
			outbound = append(outbound, res.outbound...)
		}

		frontier = nextFrontier(inbound, outbound, visited, maxPerDirection)
	}

	return graph, stats, nil
}

// CollectFlow builds the one-hop fund-flow view of a single address.
// Unlike Collect, a fetch failure here is the whole answer and surfaces
// as an error.
func (c *Collector) CollectFlow(ctx context.Context, chainID int64, address string) (*models.FlowGraph, error) {
	seed := models.CanonicalAddress(address)
	res := c.fetchAddress(ctx, chainID, seed)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if res.failed {
		return nil, fmt.Errorf("fund flow fetch failed for %s", seed)
	}

	graph := models.NewFlowGraph()
	graph.AddNode(chainID, seed, c.lists.Label(seed))
	for _, e := range res.edges {
		graph.AddNode(chainID, e.From, c.lists.Label(e.From))
		graph.AddNode(chainID, e.To, c.lists.Label(e.To))
		graph.AddEdge(e)
	}
	return graph, nil
}

// fetchAddress pulls both transfer feeds for one address and normalizes
// them. A failure of either feed marks the whole address failed.
func (c *Collector) fetchAddress(ctx context.Context, chainID int64, address string) fetchResult {
	res := fetchResult{address: address}

	normal, err := c.fetcher.GetNormalTransactions(ctx, chainID, address, indexer.DefaultStartBlock, indexer.DefaultEndBlock, "desc")
	if err != nil {
		log.Printf("[Collector] normal fetch failed for %s: %v", address, err)
		res.failed = true
		return res
	}
	tokens, err := c.fetcher.GetERC20Transfers(ctx, chainID, address, indexer.DefaultStartBlock, indexer.DefaultEndBlock, "desc")
	if err != nil {
		log.Printf("[Collector] token fetch failed for %s: %v", address, err)
		res.failed = true
		return res
	}

	seenIn := map[string]struct{}{}
	seenOut := map[string]struct{}{}
	collect := func(raw []indexer.RawTransaction, source classify.Source) {
		for _, r := range raw {
			edge, ok := normalize(chainID, r, source)
			if !ok {
				continue
			}
			res.edges = append(res.edges, edge)
			if edge.To == address && edge.From != "" {
				if _, dup := seenIn[edge.From]; !dup {
					seenIn[edge.From] = struct{}{}
					res.inbound = append(res.inbound, edge.From)
				}
			}
			if edge.From == address && edge.To != "" {
				if _, dup := seenOut[edge.To]; !dup {
					seenOut[edge.To] = struct{}{}
					res.outbound = append(res.outbound, edge.To)
				}
			}
		}
	}
	collect(normal, classify.SourceTxList)
	collect(tokens, classify.SourceTokenTx)
	return res
}

// normalize maps a raw indexer record to a graph edge. Records that fail
// classification, reverted transactions, and records missing an endpoint
// are dropped.
func normalize(chainID int64, r indexer.RawTransaction, source classify.Source) (models.Edge, bool) {
	if r.IsError == "1" || r.From == "" || r.To == "" {
		return models.Edge{}, false
	}
	txType := classify.Classify(source, r.Input, r.MethodID)
	if txType == models.TxUnknown {
		return models.Edge{}, false
	}

	decimals := 18
	if source == classify.SourceTokenTx && r.TokenDecimal != "" {
		if d, err := strconv.Atoi(r.TokenDecimal); err == nil && d >= 0 && d <= 36 {
			decimals = d
		}
	}

	blockHeight, _ := strconv.ParseInt(r.BlockNumber, 10, 64)
	return models.Edge{
		ChainID:     chainID,
		TxHash:      r.Hash,
		BlockHeight: blockHeight,
		From:        models.CanonicalAddress(r.From),
		To:          models.CanonicalAddress(r.To),
		Amount:      scaleAmount(r.Value, decimals),
		Timestamp:   models.ParseTimestamp(r.TimeStamp),
		TokenAddr:   models.CanonicalAddress(r.ContractAddress),
		TokenSymbol: r.TokenSymbol,
		TxType:      txType,
	}, true
}

// scaleAmount divides a decimal wei-style string by 10^decimals.
func scaleAmount(value string, decimals int) string {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v <= 0 {
		return "0"
	}
	scaled := v / math.Pow10(decimals)
	return strconv.FormatFloat(scaled, 'f', -1, 64)
}

// nextFrontier trims each direction to the fan-out limit independently and
// unions the survivors. Candidates are sorted so the trim is deterministic
// regardless of worker completion order.
func nextFrontier(inbound, outbound []string, visited map[string]struct{}, maxPerDirection int) []string {
	trim := func(candidates []string) []string {
		uniq := map[string]struct{}{}
		var kept []string
		for _, a := range candidates {
			if _, ok := visited[a]; ok {
				continue
			}
			if _, dup := uniq[a]; dup {
				continue
			}
			uniq[a] = struct{}{}
			kept = append(kept, a)
		}
		sort.Strings(kept)
		if len(kept) > maxPerDirection {
			kept = kept[:maxPerDirection]
		}
		return kept
	}

	merged := map[string]struct{}{}
	var next []string
	for _, a := range append(trim(inbound), trim(outbound)...) {
		if _, dup := merged[a]; dup {
			continue
		}
		merged[a] = struct{}{}
		next = append(next, a)
	}
	return next
}
