package models

// FiredRule is the address-level aggregation of one rule across every
// transaction that triggered it.
type FiredRule struct {
	RuleID string `json:"rule_id"`
	Score  int    `json:"score"`
	Count  int    `json:"count,omitempty"`
}

// AnalysisSummary is the envelope-level rollup of the scored set.
type AnalysisSummary struct {
	TotalTransactions int               `json:"total_transactions"`
	TotalVolumeUsd    float64           `json:"total_volume_usd"`
	TimeRange         map[string]string `json:"time_range,omitempty"`
	PartialData       bool              `json:"partial_data,omitempty"`
}

// TransactionPatterns counts the headline behaviors over the scored set.
type TransactionPatterns struct {
	MixerExposureCount      int     `json:"mixer_exposure_count"`
	SanctionedExposureCount int     `json:"sanctioned_exposure_count"`
	HighValueCount          int     `json:"high_value_count"`
	BurstPatterns           int     `json:"burst_patterns"`
	TotalVolumeUsd          float64 `json:"total_volume_usd"`
}

// TimelineEntry records the per-transaction scoring outcome in ascending
// timestamp order.
type TimelineEntry struct {
	Timestamp  int64    `json:"timestamp"`
	TxHash     string   `json:"tx_hash"`
	RiskScore  float64  `json:"risk_score"`
	FiredRules []string `json:"fired_rules"`
}

// AddressAnalysisResult is the engine's answer for one analyzed address.
type AddressAnalysisResult struct {
	Address             string              `json:"address"`
	Chain               string              `json:"chain"`
	RiskScore           int                 `json:"risk_score"`
	RiskLevel           string              `json:"risk_level"`
	AnalysisSummary     AnalysisSummary     `json:"analysis_summary"`
	FiredRules          []FiredRule         `json:"fired_rules"`
	RiskTags            []string            `json:"risk_tags"`
	TransactionPatterns TransactionPatterns `json:"transaction_patterns"`
	Timeline            []TimelineEntry     `json:"timeline"`
	Explanation         string              `json:"explanation"`
	CompletedAt         string              `json:"completed_at"`
}

// TransactionInput is the caller-supplied view of a single transfer for
// one-shot scoring.
type TransactionInput struct {
	TxHash              string  `json:"tx_hash"`
	Chain               string  `json:"chain"`
	Timestamp           string  `json:"timestamp"`
	BlockHeight         int64   `json:"block_height"`
	TargetAddress       string  `json:"target_address"`
	CounterpartyAddress string  `json:"counterparty_address"`
	Label               string  `json:"label"`
	IsSanctioned        bool    `json:"is_sanctioned"`
	IsKnownScam         bool    `json:"is_known_scam"`
	IsMixer             bool    `json:"is_mixer"`
	IsBridge            bool    `json:"is_bridge"`
	AmountUsd           float64 `json:"amount_usd"`
	AssetContract       string  `json:"asset_contract"`
}

// ScoringResult is the one-shot transaction scoring envelope.
type ScoringResult struct {
	TargetAddress string      `json:"target_address"`
	RiskScore     int         `json:"risk_score"`
	RiskLevel     string      `json:"risk_level"`
	RiskTags      []string    `json:"risk_tags"`
	FiredRules    []FiredRule `json:"fired_rules"`
	Explanation   string      `json:"explanation"`
	CompletedAt   string      `json:"completed_at"`
	Timestamp     string      `json:"timestamp"`
	ChainID       int64       `json:"chain_id"`
	Value         float64     `json:"value"`
}
