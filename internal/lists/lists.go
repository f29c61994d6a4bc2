// Package lists loads the labeled address sets (SDN, CEX, mixer, bridge,
// scam) the rule engine matches against. Sets are loaded once at startup,
// normalized to lowercase, and immutable afterwards.
package lists

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tracex/risk-engine/pkg/models"
)

const (
	SDNList    = "SDN_LIST"
	CEXList    = "CEX_LIST"
	MixerList  = "MIXER_LIST"
	BridgeList = "BRIDGE_LIST"
	ScamList   = "SCAM_LIST"
)

// Lists holds the loaded address sets keyed by canonical lowercase address.
type Lists struct {
	sets map[string]map[string]struct{}
}

// Load reads every list file from dir. A missing individual file yields an
// empty set; an unreadable directory is fatal for the caller to decide.
func Load(dir string) (*Lists, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("lists directory %s: %w", dir, err)
	}

	l := &Lists{sets: make(map[string]map[string]struct{})}
	l.sets[SDNList] = loadFlatList(filepath.Join(dir, "sdn_addresses.json"))
	l.sets[ScamList] = loadFlatList(filepath.Join(dir, "scam_addresses.json"))
	l.sets[CEXList] = loadCexList(filepath.Join(dir, "cex_addresses.json"))

	mixers, bridges := loadBridgeFile(filepath.Join(dir, "bridge_contracts.json"))
	l.sets[MixerList] = mixers
	l.sets[BridgeList] = bridges
	return l, nil
}

// Empty returns a Lists with no members, for tests and for callers that
// inject membership flags directly on transactions.
func Empty() *Lists {
	l := &Lists{sets: make(map[string]map[string]struct{})}
	for _, name := range []string{SDNList, CEXList, MixerList, BridgeList, ScamList} {
		l.sets[name] = make(map[string]struct{})
	}
	return l
}

// Add inserts an address into a named set. Only used by tests and seed
// tooling; production sets come from Load.
func (l *Lists) Add(listName, address string) {
	set, ok := l.sets[listName]
	if !ok {
		set = make(map[string]struct{})
		l.sets[listName] = set
	}
	set[models.CanonicalAddress(address)] = struct{}{}
}

// Contains reports membership of address in the named set.
func (l *Lists) Contains(listName, address string) bool {
	set, ok := l.sets[listName]
	if !ok {
		return false
	}
	_, ok = set[models.CanonicalAddress(address)]
	return ok
}

func (l *Lists) IsSanctioned(address string) bool { return l.Contains(SDNList, address) }
func (l *Lists) IsMixer(address string) bool      { return l.Contains(MixerList, address) }
func (l *Lists) IsBridge(address string) bool     { return l.Contains(BridgeList, address) }
func (l *Lists) IsCEX(address string) bool        { return l.Contains(CEXList, address) }
func (l *Lists) IsScam(address string) bool       { return l.Contains(ScamList, address) }

// Members returns the named set. The returned map must not be mutated.
func (l *Lists) Members(listName string) map[string]struct{} {
	return l.sets[listName]
}

// Size returns the member count of the named set.
func (l *Lists) Size(listName string) int {
	return len(l.sets[listName])
}

// Label resolves the display label for an address. Precedence when an
// address appears in several lists: mixer > cex > bridge > unknown.
// Contract/token labels are resolved upstream from indexer metadata and
// only apply when no list matches.
func (l *Lists) Label(address string) string {
	switch {
	case l.IsMixer(address):
		return "mixer"
	case l.IsCEX(address):
		return "cex"
	case l.IsBridge(address):
		return "bridge"
	default:
		return "unknown"
	}
}

// Flags snapshots every membership bit for a scoring node.
func (l *Lists) Flags(address string) models.NodeFlags {
	return models.NodeFlags{
		Label:        l.Label(address),
		IsBridge:     l.IsBridge(address),
		IsKnownScam:  l.IsScam(address),
		IsMixer:      l.IsMixer(address),
		IsSanctioned: l.IsSanctioned(address),
	}
}

// loadFlatList reads either a bare JSON array of addresses or an object
// with an "addresses" array. Unreadable files yield an empty set.
func loadFlatList(path string) map[string]struct{} {
	set := make(map[string]struct{})
	raw, err := os.ReadFile(path)
	if err != nil {
		return set
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		for _, addr := range arr {
			set[models.CanonicalAddress(addr)] = struct{}{}
		}
		return set
	}

	var obj struct {
		Addresses []string `json:"addresses"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, addr := range obj.Addresses {
			set[models.CanonicalAddress(addr)] = struct{}{}
		}
	}
	return set
}

// loadCexList reads a map of exchange name to address array and flattens it.
func loadCexList(path string) map[string]struct{} {
	set := make(map[string]struct{})
	raw, err := os.ReadFile(path)
	if err != nil {
		return set
	}
	var byExchange map[string][]string
	if err := json.Unmarshal(raw, &byExchange); err != nil {
		return set
	}
	for _, addrs := range byExchange {
		for _, addr := range addrs {
			set[models.CanonicalAddress(addr)] = struct{}{}
		}
	}
	return set
}

// loadBridgeFile reads bridge_contracts.json, which carries both the mixer
// service list and per-chain bridge contract addresses.
func loadBridgeFile(path string) (mixers, bridges map[string]struct{}) {
	mixers = make(map[string]struct{})
	bridges = make(map[string]struct{})
	raw, err := os.ReadFile(path)
	if err != nil {
		return mixers, bridges
	}
	var doc struct {
		MixerServices []string `json:"mixer_services"`
		Bridges       []struct {
			Contracts map[string]string `json:"contracts"`
		} `json:"bridges"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return mixers, bridges
	}
	for _, addr := range doc.MixerServices {
		mixers[models.CanonicalAddress(addr)] = struct{}{}
	}
	for _, bridge := range doc.Bridges {
		for _, addr := range bridge.Contracts {
			if addr != "" {
				bridges[models.CanonicalAddress(addr)] = struct{}{}
			}
		}
	}
	return mixers, bridges
}
