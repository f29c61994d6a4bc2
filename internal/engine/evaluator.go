package engine

import (
	"strings"

	"github.com/tracex/risk-engine/internal/lists"
)

// Fire threshold for the connection-risk branch.
const pprFireThreshold = 0.05

// FiredRule is one rule firing on one transaction.
type FiredRule struct {
	RuleID   string  `json:"rule_id"`
	Name     string  `json:"name,omitempty"`
	Axis     string  `json:"axis,omitempty"`
	Severity string  `json:"severity,omitempty"`
	Score    float64 `json:"score"`
	Source   string  `json:"source,omitempty"`
}

// Evaluator runs the loaded ruleset against one transaction at a time.
// It owns the per-request mutable state: history and bucket store.
type Evaluator struct {
	rules   *Ruleset
	lists   *lists.Lists
	history *History
	buckets *BucketStore

	// Every transaction evaluated this request, in order. Topology rules
	// search the whole request set; history stays grouped by recipient.
	seen []*TxData

	damping         float64
	includeTopology bool
}

// EvaluatorOption tweaks evaluator construction.
type EvaluatorOption func(*Evaluator)

// WithTopology enables the layering and cycle branches, which only run in
// advanced analysis mode.
func WithTopology(enabled bool) EvaluatorOption {
	return func(ev *Evaluator) { ev.includeTopology = enabled }
}

// WithDamping overrides the PageRank damping factor.
func WithDamping(d float64) EvaluatorOption {
	return func(ev *Evaluator) { ev.damping = d }
}

// WithSharedHistory reuses a process-scoped history instead of the
// evaluator's own request-scoped one. Callers sharing a history across
// requests must serialize evaluation per address.
func WithSharedHistory(h *History) EvaluatorOption {
	return func(ev *Evaluator) { ev.history = h }
}

func NewEvaluator(rules *Ruleset, addressLists *lists.Lists, maxHistoryDays int, opts ...EvaluatorOption) *Evaluator {
	ev := &Evaluator{
		rules:   rules,
		lists:   addressLists,
		history: NewHistory(maxHistoryDays),
		buckets: NewBucketStore(maxHistoryDays),
		damping: defaultDamping,
	}
	if rules.Defaults.PPRDamping > 0 {
		ev.damping = rules.Defaults.PPRDamping
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// History exposes the evaluator's history for callers pre-seeding shared
// state.
func (ev *Evaluator) History() *History {
	return ev.history
}

// Evaluate appends the transaction to history and runs every rule,
// returning the firings in ruleset order. A transaction is evaluated
// exactly once.
func (ev *Evaluator) Evaluate(tx *TxData) []FiredRule {
	key := tx.GroupKey()
	ev.history.Add(key, tx)
	ev.seen = append(ev.seen, tx)

	var fired []FiredRule
	for _, r := range ev.rules.Rules {
		switch r.Kind {
		case KindPPR:
			if f, ok := ev.evalPPR(r, tx, key); ok {
				fired = append(fired, f)
			}
		case KindStats:
			if ev.evalStats(r, tx, key) {
				fired = append(fired, firing(r, r.ScoreValue(), ""))
			}
		case KindLayering:
			if ev.includeTopology && len(DetectLayering(ev.seen, topologyTarget(tx), r.Topology)) > 0 {
				fired = append(fired, firing(r, r.ScoreValue(), ""))
			}
		case KindCycle:
			if ev.includeTopology && len(DetectCycles(ev.seen, topologyTarget(tx), r.Topology)) > 0 {
				fired = append(fired, firing(r, r.ScoreValue(), ""))
			}
		case KindDynamicBucket:
			if score, ok := evalRangeRule(r, tx); ok {
				fired = append(fired, firing(r, score, ""))
			}
		case KindBucket:
			if ev.buckets.Evaluate(r, tx) {
				fired = append(fired, firing(r, r.ScoreValue(), ""))
			}
		case KindWindow:
			if evalWindowRule(r, tx, ev.history) {
				fired = append(fired, firing(r, r.ScoreValue(), ""))
			}
		case KindPlain:
			if ev.evalPlain(r, tx) {
				fired = append(fired, firing(r, r.ScoreValue(), ""))
			}
		}
	}
	return fired
}

func firing(r *Rule, score float64, source string) FiredRule {
	return FiredRule{
		RuleID:   r.ID,
		Name:     r.Name,
		Axis:     r.Axis,
		Severity: r.Severity,
		Score:    score,
		Source:   source,
	}
}

// evalPlain is match, then conditions, then exceptions. A missing match
// or conditions block passes; a true exceptions block vetoes.
func (ev *Evaluator) evalPlain(r *Rule, tx *TxData) bool {
	if r.Match != nil && !evalClause(r.Match, tx, ev.lists) {
		return false
	}
	if r.Conditions != nil && !evalClause(r.Conditions, tx, ev.lists) {
		return false
	}
	if r.Exceptions != nil && evalClause(r.Exceptions, tx, ev.lists) {
		return false
	}
	return true
}

// evalPPR builds the pattern graph over the target's history and fires
// when the blended connection risk clears the threshold and the rule's
// own clauses agree.
func (ev *Evaluator) evalPPR(r *Rule, tx *TxData, key string) (FiredRule, bool) {
	txs := ev.history.All(key)
	g := NewWeightedGraph(txs)
	sdn, mixer := ev.riskSources(txs, key)

	risk := g.ConnectionRiskOf(key, sdn, mixer, ev.damping)
	if risk.Total < pprFireThreshold {
		return FiredRule{}, false
	}
	if r.Conditions != nil && !evalClause(r.Conditions, tx, ev.lists) {
		return FiredRule{}, false
	}
	if r.Exceptions != nil && evalClause(r.Exceptions, tx, ev.lists) {
		return FiredRule{}, false
	}
	return firing(r, r.ScoreValue(), "PPR"), true
}

// evalStats requires the prerequisites, then computes the interarrival
// deviation and writes it onto the transaction for later rules.
func (ev *Evaluator) evalStats(r *Rule, tx *TxData, key string) bool {
	txs := ev.history.All(key)
	minEdges := 0
	if r.Prerequisites != nil {
		minEdges = r.Prerequisites.MinEdges
	}
	if !CheckPrerequisites(txs, minEdges) {
		return false
	}
	std, ok := InterarrivalStd(txs)
	if !ok {
		return false
	}
	tx.SetInterarrivalStd(std)
	return true
}

// topologyTarget is the root the chain and cycle searches start from:
// the analysis target when known, otherwise the recipient.
func topologyTarget(t *TxData) string {
	if t.TargetAddress != "" {
		return strings.ToLower(t.TargetAddress)
	}
	return strings.ToLower(t.To)
}

// riskSources collects sanctioned and mixer addresses observed in the
// transaction set, from the loaded lists and from pre-resolved
// counterparty flags. A flag counts only against the endpoint that
// carries it when the source graph recorded per-side attribution.
func (ev *Evaluator) riskSources(txs []*TxData, target string) (sdn, mixer []string) {
	seenSdn := map[string]struct{}{}
	seenMixer := map[string]struct{}{}

	note := func(addr string, flaggedSdn, flaggedMixer bool) {
		addr = strings.ToLower(addr)
		if addr == "" || addr == target {
			return
		}
		if flaggedSdn || ev.lists.IsSanctioned(addr) {
			if _, dup := seenSdn[addr]; !dup {
				seenSdn[addr] = struct{}{}
				sdn = append(sdn, addr)
			}
		}
		if flaggedMixer || ev.lists.IsMixer(addr) {
			if _, dup := seenMixer[addr]; !dup {
				seenMixer[addr] = struct{}{}
				mixer = append(mixer, addr)
			}
		}
	}

	for _, tx := range txs {
		if tx.hasEndpointFlags {
			note(tx.From, tx.fromSanctioned, tx.fromMixer)
			note(tx.To, tx.toSanctioned, tx.toMixer)
			continue
		}
		note(tx.From, tx.IsSanctioned, tx.IsMixer)
		note(tx.To, tx.IsSanctioned, tx.IsMixer)
	}
	return sdn, mixer
}
