package engine

import (
	"math"
	"time"

	"github.com/tracex/risk-engine/internal/chains"
	"github.com/tracex/risk-engine/internal/lists"
	"github.com/tracex/risk-engine/pkg/models"
)

// TransactionScorer scores a single caller-supplied transfer without any
// surrounding graph. Each call runs against fresh request-scoped state.
type TransactionScorer struct {
	rules          *Ruleset
	lists          *lists.Lists
	maxHistoryDays int

	now func() time.Time
}

func NewTransactionScorer(rules *Ruleset, addressLists *lists.Lists, maxHistoryDays int) *TransactionScorer {
	return &TransactionScorer{
		rules:          rules,
		lists:          addressLists,
		maxHistoryDays: maxHistoryDays,
		now:            time.Now,
	}
}

// Score evaluates the ruleset against the single transfer and assembles
// the one-shot envelope.
func (s *TransactionScorer) Score(in *models.TransactionInput) *models.ScoringResult {
	tx := FromTransactionInput(in)
	ev := NewEvaluator(s.rules, s.lists, s.maxHistoryDays)
	fired := ev.Evaluate(tx)

	var sum float64
	for _, f := range fired {
		sum += f.Score
	}
	score := math.Min(100, sum)

	aggregated := aggregateFired([][]FiredRule{fired})
	level := RiskLevel(score)

	return &models.ScoringResult{
		TargetAddress: tx.TargetAddress,
		RiskScore:     int(math.Round(score)),
		RiskLevel:     level,
		RiskTags:      transactionTags(aggregated),
		FiredRules:    toModelFired(aggregated),
		Explanation:   explain(aggregated, level),
		CompletedAt:   s.now().UTC().Format(time.RFC3339),
		Timestamp:     in.Timestamp,
		ChainID:       chains.ID(in.Chain),
		Value:         in.AmountUsd,
	}
}

// transactionTags is the single-transfer tag set: burst-style patterns
// need history and never apply here.
func transactionTags(aggregated []aggregatedRule) []string {
	tags := riskTags(aggregated)
	out := tags[:0]
	for _, t := range tags {
		if t == "suspicious_pattern" {
			continue
		}
		out = append(out, t)
	}
	return out
}
