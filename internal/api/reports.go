package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tracex/risk-engine/internal/db"
	"github.com/tracex/risk-engine/pkg/models"
)

var reportCategories = map[string]bool{
	"scam":      true,
	"phishing":  true,
	"mixer":     true,
	"sanctions": true,
	"hack":      true,
	"other":     true,
}

type createReportRequest struct {
	Address     string `json:"address"`
	ChainID     int64  `json:"chain_id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Reporter    string `json:"reporter"`
}

func (h *APIHandler) handleCreateReport(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is not configured"})
		return
	}

	var body createReportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if !models.IsValidAddress(body.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}
	category := strings.ToLower(strings.TrimSpace(body.Category))
	if !reportCategories[category] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category: " + body.Category})
		return
	}

	id, err := h.dbStore.CreateReport(c.Request.Context(), &db.SuspiciousReport{
		Address:     body.Address,
		ChainID:     body.ChainID,
		Category:    category,
		Description: body.Description,
		Reporter:    body.Reporter,
	})
	if err != nil {
		log.Printf("[API] failed to create report: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create report"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "status": "open"})
}

func (h *APIHandler) handleListReports(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is not configured"})
		return
	}

	status := c.Query("status")
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)

	reports, total, err := h.dbStore.ListReports(c.Request.Context(), status, page, limit)
	if err != nil {
		log.Printf("[API] failed to list reports: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"total":   total,
		"page":    page,
	})
}

func (h *APIHandler) handleGetReport(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is not configured"})
		return
	}

	report, err := h.dbStore.GetReport(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		log.Printf("[API] failed to load report %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *APIHandler) handleUpdateReportStatus(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is not configured"})
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	err := h.dbStore.UpdateReportStatus(c.Request.Context(), c.Param("id"), body.Status)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": body.Status})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
