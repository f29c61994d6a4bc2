package engine

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tracex/risk-engine/pkg/models"
)

// Risk level thresholds on the 0..100 score.
const (
	levelCritical = 80
	levelHigh     = 60
	levelMedium   = 30
)

const highValueFloor = 1000.0

const cleanExplanation = "정상 거래 패턴으로 리스크가 낮습니다."

// RiskLevel maps a score to its level name.
func RiskLevel(score float64) string {
	switch {
	case score >= levelCritical:
		return "critical"
	case score >= levelHigh:
		return "high"
	case score >= levelMedium:
		return "medium"
	default:
		return "low"
	}
}

// Scorer turns per-transaction rule firings into the address-level
// result: recency-weighted score, aggregated rules, tags, patterns,
// timeline and explanation.
type Scorer struct {
	ml  *MLScorer
	now func() time.Time
}

type ScorerOption func(*Scorer)

// WithHybrid blends a model score into the final address score.
func WithHybrid(ml *MLScorer) ScorerOption {
	return func(s *Scorer) { s.ml = ml }
}

func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreAddress evaluates every transaction in ascending timestamp order
// and assembles the result envelope. The caller owns summary flags like
// partial data.
func (s *Scorer) ScoreAddress(ev *Evaluator, txs []*TxData, address, chain string) *models.AddressAnalysisResult {
	sort.SliceStable(txs, func(i, j int) bool {
		return timestampOf(txs[i]) < timestampOf(txs[j])
	})

	scores := make([]float64, 0, len(txs))
	firedPerTx := make([][]FiredRule, 0, len(txs))
	for _, tx := range txs {
		fired := ev.Evaluate(tx)
		var sum float64
		for _, f := range fired {
			sum += f.Score
		}
		scores = append(scores, sum)
		firedPerTx = append(firedPerTx, fired)
	}

	final := weightedScore(scores)
	if s.ml != nil && len(txs) > 0 {
		sdn, mixer := ev.riskSources(txs, strings.ToLower(address))
		final = s.ml.Blend(final, s.ml.Score(txs, address, sdn, mixer))
	}

	aggregated := aggregateFired(firedPerTx)
	level := RiskLevel(final)

	result := &models.AddressAnalysisResult{
		Address:             models.CanonicalAddress(address),
		Chain:               chain,
		RiskScore:           int(math.Round(final)),
		RiskLevel:           level,
		AnalysisSummary:     summarize(txs),
		FiredRules:          toModelFired(aggregated),
		RiskTags:            riskTags(aggregated),
		TransactionPatterns: patterns(txs, firedPerTx),
		Timeline:            timeline(txs, scores, firedPerTx),
		Explanation:         explain(aggregated, level),
		CompletedAt:         s.now().UTC().Format(time.RFC3339),
	}
	return result
}

// weightedScore implements the recency-weighted final score: the recent
// 30% of transactions carry 70% of the weight, floored by the single
// worst transaction.
func weightedScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	maxScore := scores[0]
	for _, v := range scores[1:] {
		maxScore = math.Max(maxScore, v)
	}
	if len(scores) == 1 {
		return math.Min(100, maxScore)
	}

	recentN := int(math.Ceil(0.3 * float64(len(scores))))
	head := scores[:len(scores)-recentN]
	recent := scores[len(scores)-recentN:]
	weighted := 0.7*meanOrZero(recent) + 0.3*meanOrZero(head)
	return math.Min(100, math.Max(maxScore, weighted))
}

func meanOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// aggregatedRule is one rule's address-level rollup, in first-fired
// order.
type aggregatedRule struct {
	RuleID string
	Name   string
	Score  float64
	Count  int
}

// aggregateFired groups firings by rule id, keeping the count and the
// maximum observed score.
func aggregateFired(firedPerTx [][]FiredRule) []aggregatedRule {
	index := map[string]int{}
	var out []aggregatedRule
	for _, fired := range firedPerTx {
		for _, f := range fired {
			i, ok := index[f.RuleID]
			if !ok {
				index[f.RuleID] = len(out)
				out = append(out, aggregatedRule{RuleID: f.RuleID, Name: f.Name, Score: f.Score, Count: 1})
				continue
			}
			out[i].Count++
			out[i].Score = math.Max(out[i].Score, f.Score)
		}
	}
	return out
}

func toModelFired(aggregated []aggregatedRule) []models.FiredRule {
	out := make([]models.FiredRule, 0, len(aggregated))
	for _, a := range aggregated {
		out = append(out, models.FiredRule{
			RuleID: a.RuleID,
			Score:  int(math.Round(a.Score)),
			Count:  a.Count,
		})
	}
	return out
}

// tagMatchers maps fired rules to risk tags by id or name fragment.
var tagMatchers = []struct {
	tag  string
	ids  []string
	name string
}{
	{"mixer_inflow", []string{"E-101", "E-102"}, "mixer"},
	{"sanction_exposure", []string{"C-001"}, "sanction"},
	{"scam_exposure", nil, "scam"},
	{"high_value_transfer", []string{"C-003", "C-004"}, "high-value"},
	{"bridge_large_transfer", nil, "bridge"},
	{"cex_inflow", nil, "cex"},
	{"suspicious_pattern", []string{"B-101", "B-102"}, "burst"},
}

func matchesRule(a aggregatedRule, ids []string, nameFragment string) bool {
	for _, id := range ids {
		if a.RuleID == id {
			return true
		}
	}
	return nameFragment != "" && strings.Contains(strings.ToLower(a.Name), nameFragment)
}

// riskTags derives the sorted, deduplicated tag set from the aggregated
// firings.
func riskTags(aggregated []aggregatedRule) []string {
	seen := map[string]struct{}{}
	tags := []string{}
	for _, m := range tagMatchers {
		for _, a := range aggregated {
			if matchesRule(a, m.ids, m.name) {
				if _, dup := seen[m.tag]; !dup {
					seen[m.tag] = struct{}{}
					tags = append(tags, m.tag)
				}
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// patterns counts the headline behaviors over the scored set.
func patterns(txs []*TxData, firedPerTx [][]FiredRule) models.TransactionPatterns {
	p := models.TransactionPatterns{}
	for _, tx := range txs {
		if tx.IsMixer {
			p.MixerExposureCount++
		}
		if tx.IsSanctioned {
			p.SanctionedExposureCount++
		}
		if tx.UsdValue >= highValueFloor {
			p.HighValueCount++
		}
		p.TotalVolumeUsd += tx.UsdValue
	}
	for _, fired := range firedPerTx {
		for _, f := range fired {
			if f.RuleID == "B-101" || f.RuleID == "B-102" {
				p.BurstPatterns++
			}
		}
	}
	return p
}

func timeline(txs []*TxData, scores []float64, firedPerTx [][]FiredRule) []models.TimelineEntry {
	out := make([]models.TimelineEntry, 0, len(txs))
	for i, tx := range txs {
		ids := make([]string, 0, len(firedPerTx[i]))
		for _, f := range firedPerTx[i] {
			ids = append(ids, f.RuleID)
		}
		out = append(out, models.TimelineEntry{
			Timestamp:  timestampOf(tx),
			TxHash:     tx.TxHash,
			RiskScore:  math.Min(100, scores[i]),
			FiredRules: ids,
		})
	}
	return out
}

// explainOrder fixes the clause priority in the generated explanation.
var explainOrder = []struct {
	ids  []string
	name string
}{
	{[]string{"E-101", "E-102"}, "mixer"},
	{[]string{"C-001"}, "sanction"},
	{[]string{"C-003"}, "high-value"},
	{[]string{"C-004"}, "repeated"},
	{[]string{"B-101"}, "burst"},
}

var levelKorean = map[string]string{
	"critical": "치명적인",
	"high":     "높은",
	"medium":   "중간",
	"low":      "낮은",
}

// explain renders the human-readable summary: one clause per matched
// category in fixed priority order, closed with the level.
func explain(aggregated []aggregatedRule, level string) string {
	if len(aggregated) == 0 {
		return cleanExplanation
	}

	used := map[string]struct{}{}
	var clauses []string
	for _, cat := range explainOrder {
		for _, a := range aggregated {
			if _, dup := used[a.RuleID]; dup {
				continue
			}
			if matchesRule(a, cat.ids, cat.name) {
				used[a.RuleID] = struct{}{}
				clauses = append(clauses, a.Name+" 패턴 감지")
				break
			}
		}
	}
	if len(clauses) == 0 {
		clauses = append(clauses, "의심 거래 패턴 감지")
	}
	return strings.Join(clauses, ", ") + "로 인해 " + levelKorean[level] + " 리스크로 분류됨."
}

// summarize rolls up volume and time range over the scored set.
func summarize(txs []*TxData) models.AnalysisSummary {
	s := models.AnalysisSummary{TotalTransactions: len(txs)}
	var first, last int64
	for _, tx := range txs {
		s.TotalVolumeUsd += tx.UsdValue
		ts := timestampOf(tx)
		if ts == 0 {
			continue
		}
		if first == 0 || ts < first {
			first = ts
		}
		if ts > last {
			last = ts
		}
	}
	if first > 0 {
		s.TimeRange = map[string]string{
			"start": time.Unix(first, 0).UTC().Format(time.RFC3339),
			"end":   time.Unix(last, 0).UTC().Format(time.RFC3339),
		}
	}
	return s
}
