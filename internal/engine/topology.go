package engine

import (
	"math"
	"strings"
)

// topologyGraphs builds the graph(s) a topology rule searches: one graph
// over everything, or one per asset contract when the rule demands
// same-token flows.
func topologyGraphs(txs []*TxData, sameToken bool) []*WeightedGraph {
	if !sameToken {
		return []*WeightedGraph{NewWeightedGraph(txs)}
	}
	byToken := map[string][]*TxData{}
	for _, tx := range txs {
		byToken[strings.ToLower(tx.AssetContract)] = append(byToken[strings.ToLower(tx.AssetContract)], tx)
	}
	graphs := make([]*WeightedGraph, 0, len(byToken))
	for _, part := range byToken {
		graphs = append(graphs, NewWeightedGraph(part))
	}
	return graphs
}

// DetectLayering searches for chains out of the target whose hop amounts
// stay within the allowed deviation from the first hop.
func DetectLayering(txs []*TxData, target string, spec *TopologySpec) [][]string {
	var chains [][]string
	for _, g := range topologyGraphs(txs, spec.SameToken) {
		chains = append(chains, g.layeringChains(target, spec)...)
	}
	return chains
}

// layeringChains DFS-walks from the target over edges clearing the value
// floor. A path qualifies when it is long enough and every hop's weight
// deviates from the first hop's by at most the configured percentage.
func (g *WeightedGraph) layeringChains(target string, spec *TopologySpec) [][]string {
	target = strings.ToLower(target)
	if !g.HasNode(target) {
		return nil
	}

	var found [][]string
	path := []string{target}
	weights := []float64{}
	onPath := map[string]bool{target: true}

	var dfs func(v string)
	dfs = func(v string) {
		if len(path) >= stackDepthCap {
			return
		}
		for next, e := range g.succ[v] {
			if onPath[next] || e.weight < spec.MinUsdValue {
				continue
			}
			path = append(path, next)
			weights = append(weights, e.weight)
			onPath[next] = true

			if len(weights) >= spec.HopLengthGte && hopsWithinDelta(weights, spec.HopAmountDeltaPctLte) {
				found = append(found, append([]string(nil), path...))
			}
			dfs(next)

			onPath[next] = false
			weights = weights[:len(weights)-1]
			path = path[:len(path)-1]
		}
	}
	dfs(target)
	return found
}

// hopsWithinDelta checks every hop against the first hop's amount. A zero
// base never qualifies.
func hopsWithinDelta(weights []float64, maxDeltaPct float64) bool {
	base := weights[0]
	if base == 0 {
		return false
	}
	for _, w := range weights[1:] {
		if math.Abs(w-base)/base*100 > maxDeltaPct {
			return false
		}
	}
	return true
}

// DetectCycles searches for simple cycles through the target of the
// requested lengths with enough total value.
func DetectCycles(txs []*TxData, target string, spec *TopologySpec) [][]string {
	var cycles [][]string
	for _, g := range topologyGraphs(txs, spec.SameToken) {
		for _, length := range spec.CycleLengthIn {
			cycles = append(cycles, g.cyclesOfLength(target, length, spec.CycleTotalUsdGte)...)
		}
	}
	return cycles
}

// cyclesOfLength finds simple paths of exactly length hops that return to
// start with cumulative weight clearing the floor.
func (g *WeightedGraph) cyclesOfLength(start string, length int, minTotal float64) [][]string {
	start = strings.ToLower(start)
	if !g.HasNode(start) || length < 2 {
		return nil
	}

	var found [][]string
	path := []string{start}
	onPath := map[string]bool{start: true}

	var dfs func(v string, hops int, total float64)
	dfs = func(v string, hops int, total float64) {
		if hops == length {
			return
		}
		for next, e := range g.succ[v] {
			if next == start {
				if hops+1 == length && total+e.weight >= minTotal {
					found = append(found, append(append([]string(nil), path...), start))
				}
				continue
			}
			if onPath[next] {
				continue
			}
			path = append(path, next)
			onPath[next] = true
			dfs(next, hops+1, total+e.weight)
			onPath[next] = false
			path = path[:len(path)-1]
		}
	}
	dfs(start, 0, 0)
	return found
}
