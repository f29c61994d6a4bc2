// Package service wires the collector and the rule engine into the
// operations the API surface exposes: address analysis, one-shot
// transaction scoring and fund-flow graphs.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tracex/risk-engine/internal/chains"
	"github.com/tracex/risk-engine/internal/collector"
	"github.com/tracex/risk-engine/internal/engine"
	"github.com/tracex/risk-engine/internal/lists"
	"github.com/tracex/risk-engine/pkg/models"
)

const (
	// Defaults the API surface applies when a request omits the limits.
	DefaultMaxHops      = 2
	DefaultMaxAddresses = 10

	AnalysisBasic    = "basic"
	AnalysisAdvanced = "advanced"
	AnalysisHybrid   = "hybrid"
)

// ValidationError marks caller mistakes so the API layer can answer 4xx
// without inspecting message strings.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AnalyzeRequest describes one address analysis.
type AnalyzeRequest struct {
	Address                  string `json:"address"`
	ChainID                  int64  `json:"chain_id"`
	MaxHops                  int    `json:"max_hops"`
	MaxAddressesPerDirection int    `json:"max_addresses_per_direction"`
	AnalysisType             string `json:"analysis_type"`
}

// Service owns the process-scoped read-only state (ruleset, lists) and
// builds request-scoped evaluators per analysis.
type Service struct {
	collector      *collector.Collector
	rules          *engine.Ruleset
	lists          *lists.Lists
	txScorer       *engine.TransactionScorer
	maxHistoryDays int
	ml             *engine.MLScorer

	// Optional shared history. When set, evaluation serializes per
	// address so concurrent requests keep windows deterministic.
	sharedHistory *engine.History
	lockMu        sync.Mutex
	addrLocks     map[string]*sync.Mutex
}

// Option configures optional service behavior.
type Option func(*Service)

// WithSharedHistory accumulates history across requests instead of
// starting each analysis empty.
func WithSharedHistory() Option {
	return func(s *Service) {
		s.sharedHistory = engine.NewHistory(s.maxHistoryDays)
	}
}

// WithHybridScoring blends the model score into address results.
func WithHybridScoring(ml *engine.MLScorer) Option {
	return func(s *Service) { s.ml = ml }
}

func New(col *collector.Collector, rules *engine.Ruleset, addressLists *lists.Lists, maxHistoryDays int, opts ...Option) *Service {
	s := &Service{
		collector:      col,
		rules:          rules,
		lists:          addressLists,
		txScorer:       engine.NewTransactionScorer(rules, addressLists, maxHistoryDays),
		maxHistoryDays: maxHistoryDays,
		addrLocks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeAddress collects the address neighborhood and scores it.
func (s *Service) AnalyzeAddress(ctx context.Context, req AnalyzeRequest) (*models.AddressAnalysisResult, error) {
	if err := normalizeRequest(&req); err != nil {
		return nil, err
	}

	if s.sharedHistory != nil {
		lock := s.addrLock(req.Address)
		lock.Lock()
		defer lock.Unlock()
	}

	graph, stats, err := s.collector.Collect(ctx, req.ChainID, req.Address, req.MaxHops, req.MaxAddressesPerDirection)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", req.Address, err)
	}

	evOpts := []engine.EvaluatorOption{engine.WithTopology(req.AnalysisType == AnalysisAdvanced)}
	if s.sharedHistory != nil {
		evOpts = append(evOpts, engine.WithSharedHistory(s.sharedHistory))
	}
	ev := engine.NewEvaluator(s.rules, s.lists, s.maxHistoryDays, evOpts...)

	txs := engine.TransactionsFromGraph(graph, req.Address)
	result := engine.NewScorer(s.scorerOpts(req.AnalysisType)...).ScoreAddress(ev, txs, req.Address, chains.Name(req.ChainID))
	result.AnalysisSummary.PartialData = stats.PartialData
	return result, nil
}

// AnalyzeTransactionsRequest scores a caller-supplied transaction set
// without touching the indexer.
type AnalyzeTransactionsRequest struct {
	Address      string                    `json:"address"`
	Chain        string                    `json:"chain"`
	AnalysisType string                    `json:"analysis_type"`
	Transactions []models.TransactionInput `json:"transactions"`
}

// AnalyzeTransactions evaluates pre-collected transactions for an address.
func (s *Service) AnalyzeTransactions(req AnalyzeTransactionsRequest) (*models.AddressAnalysisResult, error) {
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		return nil, &ValidationError{Field: "address", Reason: "required"}
	}
	if !models.IsValidAddress(req.Address) {
		return nil, &ValidationError{Field: "address", Reason: "not a hex address"}
	}
	req.Address = models.CanonicalAddress(req.Address)
	switch req.AnalysisType {
	case "":
		req.AnalysisType = AnalysisBasic
	case AnalysisBasic, AnalysisAdvanced, AnalysisHybrid:
	default:
		return nil, &ValidationError{Field: "analysis_type", Reason: "must be basic, advanced or hybrid"}
	}
	chain := strings.ToLower(strings.TrimSpace(req.Chain))
	if chain == "" {
		chain = chains.DefaultName
	}

	txs := make([]*engine.TxData, 0, len(req.Transactions))
	for i := range req.Transactions {
		in := req.Transactions[i]
		if in.TargetAddress == "" {
			in.TargetAddress = req.Address
		}
		if in.Chain == "" {
			in.Chain = chain
		}
		txs = append(txs, engine.FromTransactionInput(&in))
	}

	ev := engine.NewEvaluator(s.rules, s.lists, s.maxHistoryDays,
		engine.WithTopology(req.AnalysisType == AnalysisAdvanced))
	return engine.NewScorer(s.scorerOpts(req.AnalysisType)...).ScoreAddress(ev, txs, req.Address, chain), nil
}

// ScoringGraph collects the multi-hop neighborhood without scoring it.
func (s *Service) ScoringGraph(ctx context.Context, req AnalyzeRequest) (*models.ScoringGraph, error) {
	if err := normalizeRequest(&req); err != nil {
		return nil, err
	}
	graph, _, err := s.collector.Collect(ctx, req.ChainID, req.Address, req.MaxHops, req.MaxAddressesPerDirection)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", req.Address, err)
	}
	return graph, nil
}

// scorerOpts enables the model blend for hybrid requests, or always when
// the service was built with hybrid scoring.
func (s *Service) scorerOpts(analysisType string) []engine.ScorerOption {
	ml := s.ml
	if ml == nil && analysisType == AnalysisHybrid {
		ml = engine.NewMLScorer()
	}
	if ml == nil {
		return nil
	}
	return []engine.ScorerOption{engine.WithHybrid(ml)}
}

// ScoreTransaction scores one caller-supplied transfer.
func (s *Service) ScoreTransaction(in *models.TransactionInput) (*models.ScoringResult, error) {
	if strings.TrimSpace(in.TargetAddress) == "" {
		return nil, &ValidationError{Field: "target_address", Reason: "required"}
	}
	return s.txScorer.Score(in), nil
}

// FundFlow returns the one-hop flow graph around an address.
func (s *Service) FundFlow(ctx context.Context, chainID int64, address string) (*models.FlowGraph, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &ValidationError{Field: "address", Reason: "required"}
	}
	if !chains.Supported(chainID) {
		chainID = chains.DefaultID
	}
	return s.collector.CollectFlow(ctx, chainID, address)
}

func normalizeRequest(req *AnalyzeRequest) error {
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		return &ValidationError{Field: "address", Reason: "required"}
	}
	if !models.IsValidAddress(req.Address) {
		return &ValidationError{Field: "address", Reason: "not a hex address"}
	}
	req.Address = models.CanonicalAddress(req.Address)

	if !chains.Supported(req.ChainID) {
		req.ChainID = chains.DefaultID
	}
	// Zero hops is a legal request and scores the seed address alone.
	if req.MaxHops < 0 {
		return &ValidationError{Field: "max_hops", Reason: "must be non-negative"}
	}
	if req.MaxAddressesPerDirection <= 0 {
		req.MaxAddressesPerDirection = DefaultMaxAddresses
	}
	switch req.AnalysisType {
	case "":
		req.AnalysisType = AnalysisBasic
	case AnalysisBasic, AnalysisAdvanced, AnalysisHybrid:
	default:
		return &ValidationError{Field: "analysis_type", Reason: "must be basic, advanced or hybrid"}
	}
	return nil
}

func (s *Service) addrLock(address string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.addrLocks[address]
	if !ok {
		lock = &sync.Mutex{}
		s.addrLocks[address] = lock
	}
	return lock
}
