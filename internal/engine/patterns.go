package engine

import "strings"

// edgeTx is one transaction folded into a summed-weight edge.
type edgeTx struct {
	TxHash    string
	Timestamp int64
	UsdValue  float64
}

type weightedEdge struct {
	weight float64
	txs    []edgeTx
}

// WeightedGraph is the summed-weight digraph pattern and topology
// detectors operate on. Multi-edges between the same pair fold into one
// edge; the contributing transactions stay attached.
type WeightedGraph struct {
	succ map[string]map[string]*weightedEdge
	pred map[string]map[string]*weightedEdge
}

// NewWeightedGraph folds transactions into the summed-weight view.
// Transactions with a non-positive weight or a missing endpoint are
// ignored.
func NewWeightedGraph(txs []*TxData) *WeightedGraph {
	g := &WeightedGraph{
		succ: make(map[string]map[string]*weightedEdge),
		pred: make(map[string]map[string]*weightedEdge),
	}
	for _, tx := range txs {
		from := strings.ToLower(tx.From)
		to := strings.ToLower(tx.To)
		w := tx.Weight()
		if from == "" || to == "" || w <= 0 {
			continue
		}
		g.addEdge(from, to, w, edgeTx{TxHash: tx.TxHash, Timestamp: timestampOf(tx), UsdValue: w})
	}
	return g
}

func (g *WeightedGraph) addEdge(from, to string, w float64, tx edgeTx) {
	if g.succ[from] == nil {
		g.succ[from] = make(map[string]*weightedEdge)
	}
	if g.pred[to] == nil {
		g.pred[to] = make(map[string]*weightedEdge)
	}
	e := g.succ[from][to]
	if e == nil {
		e = &weightedEdge{}
		g.succ[from][to] = e
		g.pred[to][from] = e
	}
	e.weight += w
	e.txs = append(e.txs, tx)
	// Endpoints exist as nodes even without edges in the other direction.
	if g.succ[to] == nil {
		g.succ[to] = make(map[string]*weightedEdge)
	}
	if g.pred[from] == nil {
		g.pred[from] = make(map[string]*weightedEdge)
	}
}

// HasNode reports whether the address appears in the graph.
func (g *WeightedGraph) HasNode(v string) bool {
	_, ok := g.succ[strings.ToLower(v)]
	return ok
}

// Nodes returns every address in the graph.
func (g *WeightedGraph) Nodes() []string {
	out := make([]string, 0, len(g.succ))
	for v := range g.succ {
		out = append(out, v)
	}
	return out
}

// FanIn is the summed weight of incoming edges.
func (g *WeightedGraph) FanIn(v string) float64 {
	var sum float64
	for _, e := range g.pred[strings.ToLower(v)] {
		sum += e.weight
	}
	return sum
}

// FanInCount is the number of distinct predecessors.
func (g *WeightedGraph) FanInCount(v string) int {
	return len(g.pred[strings.ToLower(v)])
}

// FanOut is the summed weight of outgoing edges.
func (g *WeightedGraph) FanOut(v string) float64 {
	var sum float64
	for _, e := range g.succ[strings.ToLower(v)] {
		sum += e.weight
	}
	return sum
}

// FanOutCount is the number of distinct successors.
func (g *WeightedGraph) FanOutCount(v string) int {
	return len(g.succ[strings.ToLower(v)])
}

// GatherScatter is the combined in and out weight of a node.
func (g *WeightedGraph) GatherScatter(v string) float64 {
	return g.FanIn(v) + g.FanOut(v)
}

// DetectFanIn collects incoming edges of weight >= minEach and reports a
// pattern when both the edge count and summed weight clear their floors.
func (g *WeightedGraph) DetectFanIn(v string, minCount int, minTotal, minEach float64) bool {
	return detectFan(g.pred[strings.ToLower(v)], minCount, minTotal, minEach)
}

// DetectFanOut is the outgoing mirror of DetectFanIn.
func (g *WeightedGraph) DetectFanOut(v string, minCount int, minTotal, minEach float64) bool {
	return detectFan(g.succ[strings.ToLower(v)], minCount, minTotal, minEach)
}

func detectFan(edges map[string]*weightedEdge, minCount int, minTotal, minEach float64) bool {
	count := 0
	var total float64
	for _, e := range edges {
		if e.weight < minEach {
			continue
		}
		count++
		total += e.weight
	}
	return count >= minCount && total >= minTotal
}

// stackDepthCap bounds the DFS for stack and topology searches.
const stackDepthCap = 10

// DetectStack returns every simple path from start with at least minLength
// hops and cumulative edge weight >= minPathValue, up to the depth cap.
func (g *WeightedGraph) DetectStack(start string, minLength int, minPathValue float64) [][]string {
	start = strings.ToLower(start)
	if !g.HasNode(start) {
		return nil
	}

	var found [][]string
	path := []string{start}
	onPath := map[string]bool{start: true}

	var dfs func(v string, value float64)
	dfs = func(v string, value float64) {
		if len(path) >= stackDepthCap {
			return
		}
		for next, e := range g.succ[v] {
			if onPath[next] {
				continue
			}
			path = append(path, next)
			onPath[next] = true
			total := value + e.weight

			if len(path)-1 >= minLength && total >= minPathValue {
				found = append(found, append([]string(nil), path...))
			}
			dfs(next, total)

			onPath[next] = false
			path = path[:len(path)-1]
		}
	}
	dfs(start, 0)
	return found
}

// BipartiteResult is the outcome of two-coloring the undirected
// projection of a node subset.
type BipartiteResult struct {
	IsBipartite bool
	SetA        []string
	SetB        []string
	CrossEdges  int
}

// DetectBipartite two-colors the undirected projection of the subset and
// counts the edges crossing the partition.
func (g *WeightedGraph) DetectBipartite(subset []string) BipartiteResult {
	inSubset := map[string]bool{}
	for _, v := range subset {
		inSubset[strings.ToLower(v)] = true
	}
	neighbors := func(v string) []string {
		var out []string
		for u := range g.succ[v] {
			if inSubset[u] {
				out = append(out, u)
			}
		}
		for u := range g.pred[v] {
			if inSubset[u] {
				out = append(out, u)
			}
		}
		return out
	}

	color := map[string]int{}
	res := BipartiteResult{IsBipartite: true}

	for v := range inSubset {
		if _, done := color[v]; done {
			continue
		}
		color[v] = 0
		queue := []string{v}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, u := range neighbors(cur) {
				if c, seen := color[u]; seen {
					if c == color[cur] {
						res.IsBipartite = false
					}
					continue
				}
				color[u] = 1 - color[cur]
				queue = append(queue, u)
			}
		}
	}
	if !res.IsBipartite {
		return res
	}

	for v, c := range color {
		if c == 0 {
			res.SetA = append(res.SetA, v)
		} else {
			res.SetB = append(res.SetB, v)
		}
	}
	for from, edges := range g.succ {
		if !inSubset[from] {
			continue
		}
		for to := range edges {
			if inSubset[to] && color[from] != color[to] {
				res.CrossEdges++
			}
		}
	}
	return res
}
