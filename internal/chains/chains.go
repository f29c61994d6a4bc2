// Package chains maps EVM chain ids to the symbolic names used in scoring
// output. Unknown ids fall back to Ethereum mainnet.
package chains

import "strings"

const (
	DefaultID   = int64(1)
	DefaultName = "ethereum"
)

var idToName = map[int64]string{
	1:     "ethereum",
	42161: "arbitrum",
	43114: "avalanche",
	8453:  "base",
	137:   "polygon",
	56:    "bsc",
	250:   "fantom",
	10:    "optimism",
	81457: "blast",
}

var nameToID = func() map[string]int64 {
	m := make(map[string]int64, len(idToName))
	for id, name := range idToName {
		m[name] = id
	}
	return m
}()

// Name returns the symbolic chain name for an id, "ethereum" when unknown.
func Name(chainID int64) string {
	if name, ok := idToName[chainID]; ok {
		return name
	}
	return DefaultName
}

// ID returns the chain id for a symbolic name, 1 when unknown.
func ID(name string) int64 {
	if id, ok := nameToID[strings.ToLower(name)]; ok {
		return id
	}
	return DefaultID
}

// Supported reports whether the chain id is one of the known networks.
func Supported(chainID int64) bool {
	_, ok := idToName[chainID]
	return ok
}
