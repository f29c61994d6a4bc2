package engine

import "time"

// History keeps per-address transaction lists with age-based eviction.
// One instance lives for the duration of a single analysis request unless
// the caller opts into a shared instance.
type History struct {
	maxAgeSec int64
	byAddress map[string][]*TxData

	now func() time.Time
}

func NewHistory(maxHistoryDays int) *History {
	return &History{
		maxAgeSec: int64(maxHistoryDays) * 86400,
		byAddress: make(map[string][]*TxData),
		now:       time.Now,
	}
}

// Add appends tx to the address's list, then evicts entries older than the
// retention horizon.
func (h *History) Add(address string, tx *TxData) {
	entries := append(h.byAddress[address], tx)

	cutoff := h.now().Unix() - h.maxAgeSec
	kept := entries[:0]
	for _, e := range entries {
		if timestampOf(e) >= cutoff {
			kept = append(kept, e)
		}
	}
	h.byAddress[address] = kept
}

// Window returns entries with refTs-durationSec <= ts <= refTs, both ends
// inclusive.
func (h *History) Window(address string, refTs, durationSec int64) []*TxData {
	start := refTs - durationSec
	var out []*TxData
	for _, e := range h.byAddress[address] {
		ts := timestampOf(e)
		if ts >= start && ts <= refTs {
			out = append(out, e)
		}
	}
	return out
}

// All returns every retained entry for the address.
func (h *History) All(address string) []*TxData {
	return h.byAddress[address]
}

// Len reports the retained entry count for the address.
func (h *History) Len(address string) int {
	return len(h.byAddress[address])
}
