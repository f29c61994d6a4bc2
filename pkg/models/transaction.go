package models

import (
	"strconv"
	"strings"
	"time"
)

// TxType labels the shape of a transfer as observed on an EVM chain.
// Unknown transfers are filtered out before they reach the scoring pipeline.
type TxType string

const (
	TxNative        TxType = "Native"
	TxERC20Transfer TxType = "ERC20_Transfer"
	TxBridge        TxType = "Bridge"
	TxSwap          TxType = "Swap"
	TxUnknown       TxType = "Unknown"
)

// Transaction is the normalized form of an on-chain transfer. Amount is a
// decimal string already scaled by token decimals (10^18 for native);
// UsdValue is zero when no price was available at normalization time.
type Transaction struct {
	TxHash      string  `json:"tx_hash"`
	ChainID     int64   `json:"chain_id"`
	BlockHeight int64   `json:"block_height"`
	Timestamp   int64   `json:"timestamp"`
	From        string  `json:"from_address"`
	To          string  `json:"to_address"`
	TxType      TxType  `json:"tx_type"`
	Amount      string  `json:"amount"`
	TokenAddr   string  `json:"token_address"`
	TokenSymbol string  `json:"token_symbol"`
	UsdValue    float64 `json:"usd_value"`

	// List-membership flags resolved against the loaded address lists.
	IsSanctioned bool `json:"is_sanctioned,omitempty"`
	IsMixer      bool `json:"is_mixer,omitempty"`
	IsBridge     bool `json:"is_bridge,omitempty"`
	IsKnownScam  bool `json:"is_known_scam,omitempty"`
}

// ParseTimestamp coerces the timestamp formats seen on the wire into epoch
// seconds: integer seconds (possibly as a string) or ISO-8601 with a Z or
// explicit offset. Naive ISO strings are treated as UTC. Anything
// unparseable maps to 0, which places the record outside every finite
// window.
func ParseTimestamp(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.Unix()
		}
		if ts, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			return ts.Unix()
		}
		return 0
	}
	return 0
}

// Weight returns the USD weight of the transfer for graph analytics, falling
// back to the scaled native amount when no price is known.
func (t *Transaction) Weight() float64 {
	if t.UsdValue > 0 {
		return t.UsdValue
	}
	if amt, err := strconv.ParseFloat(t.Amount, 64); err == nil && amt > 0 {
		return amt
	}
	return 0
}
