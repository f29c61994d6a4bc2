// Package engine implements the declarative risk ruleset: rule loading,
// per-transaction evaluation across window, bucket, statistics, pattern,
// PageRank and topology branches, and address-level score aggregation.
package engine

import (
	"strings"

	"github.com/tracex/risk-engine/pkg/models"
)

// TxData is the evaluator's view of one transaction. Fields referenced by
// rule predicates form a closed set resolved through Field / StringField;
// predicates naming anything else simply never match.
type TxData struct {
	TxHash        string
	From          string
	To            string
	TargetAddress string
	Timestamp     int64
	RawTimestamp  string
	BlockHeight   int64
	UsdValue      float64
	Amount        float64
	Chain         string
	Label         string
	AssetContract string

	IsSanctioned bool
	IsMixer      bool
	IsBridge     bool
	IsKnownScam  bool

	// Per-endpoint attribution of the list flags above, set when the
	// source graph knows which side carries the label.
	fromSanctioned, fromMixer bool
	toSanctioned, toMixer     bool
	hasEndpointFlags          bool

	interarrivalStd    float64
	hasInterarrivalStd bool
}

// SetEndpointFlags records which endpoint carries each list flag. The
// tx-level flags stay the union of both sides.
func (t *TxData) SetEndpointFlags(from, to models.NodeFlags) {
	t.fromSanctioned = from.IsSanctioned
	t.fromMixer = from.IsMixer
	t.toSanctioned = to.IsSanctioned
	t.toMixer = to.IsMixer
	t.hasEndpointFlags = true
}

// SetInterarrivalStd records the computed burst statistic on the
// transaction so later rules in the same pass can reference it.
func (t *TxData) SetInterarrivalStd(v float64) {
	t.interarrivalStd = v
	t.hasInterarrivalStd = true
}

// Field resolves a numeric rule field. The second return is false when the
// field is unknown or not yet defined for this transaction.
func (t *TxData) Field(name string) (float64, bool) {
	switch name {
	case "usd_value", "amount_usd":
		return t.UsdValue, true
	case "amount", "value":
		return t.Amount, true
	case "timestamp":
		return float64(t.Timestamp), true
	case "block_height":
		return float64(t.BlockHeight), true
	case "interarrival_std":
		return t.interarrivalStd, t.hasInterarrivalStd
	}
	return 0, false
}

// StringField resolves a string rule field, lowercased for matching.
func (t *TxData) StringField(name string) (string, bool) {
	switch name {
	case "from", "from_address":
		return strings.ToLower(t.From), true
	case "to", "to_address":
		return strings.ToLower(t.To), true
	case "tx_hash":
		return strings.ToLower(t.TxHash), true
	case "asset_contract", "token_address":
		return strings.ToLower(t.AssetContract), true
	case "label":
		return strings.ToLower(t.Label), true
	case "chain":
		return strings.ToLower(t.Chain), true
	case "target_address":
		return strings.ToLower(t.TargetAddress), true
	}
	return "", false
}

// Weight is the transaction's graph weight: priced USD value when known,
// otherwise the scaled native amount.
func (t *TxData) Weight() float64 {
	if t.UsdValue > 0 {
		return t.UsdValue
	}
	return t.Amount
}

// GroupKey returns the history and sliding-window grouping key: the
// lowercased recipient, with the analysis target as fallback when the
// recipient is unknown.
func (t *TxData) GroupKey() string {
	if t.To != "" {
		return strings.ToLower(t.To)
	}
	return strings.ToLower(t.TargetAddress)
}

// flagForList maps a membership list name to the corresponding pre-resolved
// transaction flag, used when the evaluator has no loaded list to consult.
func (t *TxData) flagForList(listName string) bool {
	switch listName {
	case "SDN_LIST":
		return t.IsSanctioned
	case "MIXER_LIST":
		return t.IsMixer
	case "BRIDGE_LIST":
		return t.IsBridge
	case "SCAM_LIST":
		return t.IsKnownScam
	}
	return false
}

// timestampOf reads the epoch timestamp of a TxData, preferring the parsed
// value and falling back to the raw string form.
func timestampOf(t *TxData) int64 {
	if t.Timestamp != 0 {
		return t.Timestamp
	}
	return models.ParseTimestamp(t.RawTimestamp)
}
