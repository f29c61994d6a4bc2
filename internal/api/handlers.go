package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tracex/risk-engine/internal/chains"
	"github.com/tracex/risk-engine/internal/service"
	"github.com/tracex/risk-engine/pkg/models"
)

// analyzeTimeout bounds one full multi-hop collection. Deep graphs on
// busy addresses can take many paced indexer calls.
const analyzeTimeout = 120 * time.Second

// analyzeAddressRequest uses pointers for the limits so an omitted field
// is distinguishable from an explicit zero. When the caller supplies a
// transactions array the collector is skipped entirely.
type analyzeAddressRequest struct {
	Address                  string                    `json:"address"`
	ChainID                  int64                     `json:"chain_id"`
	Chain                    string                    `json:"chain"`
	MaxHops                  *int                      `json:"max_hops"`
	MaxAddressesPerDirection *int                      `json:"max_addresses_per_direction"`
	AnalysisType             string                    `json:"analysis_type"`
	Transactions             []models.TransactionInput `json:"transactions"`
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":  "ok",
		"service": "risk-engine",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.dbStore == nil {
		status["database"] = "disabled"
	} else {
		status["database"] = "connected"
	}
	c.JSON(http.StatusOK, status)
}

func (h *APIHandler) handleAnalyzeAddress(c *gin.Context) {
	var body analyzeAddressRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if len(body.Transactions) > 0 {
		result, err := h.svc.AnalyzeTransactions(service.AnalyzeTransactionsRequest{
			Address:      body.Address,
			Chain:        body.Chain,
			AnalysisType: body.AnalysisType,
			Transactions: body.Transactions,
		})
		if err != nil {
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed"})
			return
		}
		h.wsHub.BroadcastRiskAlert(result)
		h.persistAnalysis(c, result)
		c.JSON(http.StatusOK, result)
		return
	}

	req := service.AnalyzeRequest{
		Address:                  body.Address,
		ChainID:                  body.ChainID,
		MaxHops:                  service.DefaultMaxHops,
		MaxAddressesPerDirection: service.DefaultMaxAddresses,
		AnalysisType:             body.AnalysisType,
	}
	if body.MaxHops != nil {
		req.MaxHops = *body.MaxHops
	}
	if body.MaxAddressesPerDirection != nil {
		req.MaxAddressesPerDirection = *body.MaxAddressesPerDirection
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()

	result, err := h.svc.AnalyzeAddress(ctx, req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Printf("[API] analyze %s failed: %v", body.Address, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis failed: upstream data collection error"})
		return
	}

	h.wsHub.BroadcastRiskAlert(result)
	h.persistAnalysis(c, result)

	c.JSON(http.StatusOK, result)
}

// persistAnalysis stores the result when a database is configured.
// Persistence failure never fails the request.
func (h *APIHandler) persistAnalysis(c *gin.Context, result *models.AddressAnalysisResult) {
	if h.dbStore == nil {
		return
	}
	if err := h.dbStore.SaveAddressAnalysis(c.Request.Context(), result); err != nil {
		log.Printf("[API] failed to persist analysis for %s: %v", result.Address, err)
	}
}

// handleRiskScoringQuery is the GET form of address analysis, driven by
// query parameters.
func (h *APIHandler) handleRiskScoringQuery(c *gin.Context) {
	req := service.AnalyzeRequest{
		Address:                  c.Query("address"),
		MaxHops:                  queryInt(c, "max_hops", service.DefaultMaxHops),
		MaxAddressesPerDirection: queryInt(c, "max_addresses_per_direction", service.DefaultMaxAddresses),
		AnalysisType:             c.Query("analysis_type"),
	}
	if raw := c.Query("chain_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain_id: " + raw})
			return
		}
		req.ChainID = id
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()

	result, err := h.svc.AnalyzeAddress(ctx, req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Printf("[API] analyze %s failed: %v", req.Address, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis failed: upstream data collection error"})
		return
	}

	h.wsHub.BroadcastRiskAlert(result)
	h.persistAnalysis(c, result)
	c.JSON(http.StatusOK, result)
}

// handleScoringGraph returns the collected multi-hop graph without
// running the rule engine.
func (h *APIHandler) handleScoringGraph(c *gin.Context) {
	req := service.AnalyzeRequest{
		Address:                  c.Query("address"),
		MaxHops:                  queryInt(c, "max_hops", service.DefaultMaxHops),
		MaxAddressesPerDirection: queryInt(c, "max_addresses_per_direction", service.DefaultMaxAddresses),
	}
	if raw := c.Query("chain_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain_id: " + raw})
			return
		}
		req.ChainID = id
	}
	h.serveScoringGraph(c, req)
}

// handleScoringGraphPost is the body-bound form of graph collection.
func (h *APIHandler) handleScoringGraphPost(c *gin.Context) {
	var body analyzeAddressRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	req := service.AnalyzeRequest{
		Address:                  body.Address,
		ChainID:                  body.ChainID,
		MaxHops:                  service.DefaultMaxHops,
		MaxAddressesPerDirection: service.DefaultMaxAddresses,
	}
	if body.MaxHops != nil {
		req.MaxHops = *body.MaxHops
	}
	if body.MaxAddressesPerDirection != nil {
		req.MaxAddressesPerDirection = *body.MaxAddressesPerDirection
	}
	h.serveScoringGraph(c, req)
}

func (h *APIHandler) serveScoringGraph(c *gin.Context, req service.AnalyzeRequest) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()

	graph, err := h.svc.ScoringGraph(ctx, req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Printf("[API] graph collection for %s failed: %v", req.Address, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Graph collection failed"})
		return
	}
	c.JSON(http.StatusOK, graph)
}

func (h *APIHandler) handleScoreTransaction(c *gin.Context) {
	var in models.TransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.svc.ScoreTransaction(&in)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scoring failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) handleFundFlow(c *gin.Context) {
	address := c.Query("address")
	chainID := chains.DefaultID
	if raw := c.Query("chain_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain_id: " + raw})
			return
		}
		chainID = id
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()

	graph, err := h.svc.FundFlow(ctx, chainID, address)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Printf("[API] fund flow for %s failed: %v", address, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Fund flow collection failed"})
		return
	}
	c.JSON(http.StatusOK, graph)
}

func (h *APIHandler) handleRecentAnalyses(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is not configured"})
		return
	}
	address := models.CanonicalAddress(c.Param("address"))
	if !models.IsValidAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	records, err := h.dbStore.RecentAnalyses(c.Request.Context(), address, queryInt(c, "limit", 20))
	if err != nil {
		log.Printf("[API] recent analyses for %s failed: %v", address, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analyses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "analyses": records})
}
