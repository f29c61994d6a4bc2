package models

import "fmt"

// Node is a single address in a fund-flow graph. Identity is the
// (chain_id, lowercase address) pair, rendered as "{chain_id}-{address}".
type Node struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	ChainID    int64  `json:"chain_id"`
	Label      string `json:"label,omitempty"`
	IsContract bool   `json:"is_contract"`
}

// ScoringNode carries the list-membership flags the risk engine consumes in
// addition to the plain node identity.
type ScoringNode struct {
	ID           string `json:"id"`
	Address      string `json:"address"`
	ChainID      int64  `json:"chain_id"`
	Label        string `json:"label,omitempty"`
	IsBridge     bool   `json:"is_bridge"`
	IsKnownScam  bool   `json:"is_known_scam"`
	IsMixer      bool   `json:"is_mixer"`
	IsSanctioned bool   `json:"is_sanctioned"`
}

// Edge is a transaction projected into graph space. Edges are never
// deduplicated; the same (from, to) pair may appear once per transaction.
type Edge struct {
	ChainID     int64  `json:"chain_id"`
	TxHash      string `json:"tx_hash"`
	BlockHeight int64  `json:"block_height"`
	From        string `json:"from_address"`
	To          string `json:"to_address"`
	Amount      string `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
	TokenAddr   string `json:"token_address"`
	TokenSymbol string `json:"token_symbol"`
	UsdValue    float64 `json:"usd_value"`
	TxType      TxType `json:"tx_type"`
}

// NodeID renders the canonical node identity.
func NodeID(chainID int64, address string) string {
	return fmt.Sprintf("%d-%s", chainID, CanonicalAddress(address))
}

// FlowGraph is a simple fund-flow view: deduplicated nodes in insertion
// order plus the raw edge list.
type FlowGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	seen map[string]struct{}
}

func NewFlowGraph() *FlowGraph {
	return &FlowGraph{seen: make(map[string]struct{})}
}

// AddNode appends the address unless its (chain_id, address) identity is
// already present. Empty addresses are ignored.
func (g *FlowGraph) AddNode(chainID int64, address, label string) {
	if address == "" {
		return
	}
	addr := CanonicalAddress(address)
	id := NodeID(chainID, addr)
	if _, ok := g.seen[id]; ok {
		return
	}
	g.seen[id] = struct{}{}
	g.Nodes = append(g.Nodes, Node{
		ID:      id,
		Address: addr,
		ChainID: chainID,
		Label:   label,
	})
}

func (g *FlowGraph) AddEdge(e Edge) {
	e.From = CanonicalAddress(e.From)
	e.To = CanonicalAddress(e.To)
	if e.TokenAddr != "" {
		e.TokenAddr = CanonicalAddress(e.TokenAddr)
	}
	g.Edges = append(g.Edges, e)
}

// ScoringGraph is the multi-hop view handed to the risk engine: same edge
// semantics as FlowGraph, richer node attributes.
type ScoringGraph struct {
	Nodes []ScoringNode `json:"nodes"`
	Edges []Edge        `json:"edges"`

	seen map[string]int
}

func NewScoringGraph() *ScoringGraph {
	return &ScoringGraph{seen: make(map[string]int)}
}

// NodeFlags is the list-membership snapshot attached to a scoring node at
// insertion time.
type NodeFlags struct {
	Label        string
	IsBridge     bool
	IsKnownScam  bool
	IsMixer      bool
	IsSanctioned bool
}

// AddNode appends the address with its flags unless the identity already
// exists. Re-adding an existing node is a no-op, flags included.
func (g *ScoringGraph) AddNode(chainID int64, address string, flags NodeFlags) {
	if address == "" {
		return
	}
	addr := CanonicalAddress(address)
	id := NodeID(chainID, addr)
	if _, ok := g.seen[id]; ok {
		return
	}
	g.seen[id] = len(g.Nodes)
	g.Nodes = append(g.Nodes, ScoringNode{
		ID:           id,
		Address:      addr,
		ChainID:      chainID,
		Label:        flags.Label,
		IsBridge:     flags.IsBridge,
		IsKnownScam:  flags.IsKnownScam,
		IsMixer:      flags.IsMixer,
		IsSanctioned: flags.IsSanctioned,
	})
}

func (g *ScoringGraph) AddEdge(e Edge) {
	e.From = CanonicalAddress(e.From)
	e.To = CanonicalAddress(e.To)
	if e.TokenAddr != "" {
		e.TokenAddr = CanonicalAddress(e.TokenAddr)
	}
	g.Edges = append(g.Edges, e)
}

// HasNode reports whether the identity is present.
func (g *ScoringGraph) HasNode(chainID int64, address string) bool {
	_, ok := g.seen[NodeID(chainID, address)]
	return ok
}
