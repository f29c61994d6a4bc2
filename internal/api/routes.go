package api

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tracex/risk-engine/internal/db"
	"github.com/tracex/risk-engine/internal/service"
)

type APIHandler struct {
	svc     *service.Service
	dbStore *db.PostgresStore
	wsHub   *Hub
}

// SetupRouter assembles the HTTP surface: CORS, per-IP rate limiting and
// the versioned API group. dbStore may be nil; persistence-backed routes
// then answer 503.
func SetupRouter(svc *service.Service, dbStore *db.PostgresStore, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	// CORS is configured via ALLOWED_ORIGINS (comma separated); empty or
	// "*" allows everything.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	limiter := NewRateLimiter(30, 10)
	handler := &APIHandler{svc: svc, dbStore: dbStore, wsHub: wsHub}

	api := r.Group("/api/v1")
	api.Use(limiter.Middleware())
	{
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)

		// Address analysis: full graph collection plus rule evaluation.
		// The analyze alias also accepts pre-collected transactions.
		api.POST("/analyze/address", handler.handleAnalyzeAddress)
		api.POST("/analysis/risk-scoring", handler.handleAnalyzeAddress)
		api.GET("/analysis/risk-scoring", handler.handleRiskScoringQuery)

		// One-shot transaction scoring.
		api.POST("/score/transaction", handler.handleScoreTransaction)

		// Graph collection without scoring.
		api.GET("/analysis/scoring", handler.handleScoringGraph)
		api.POST("/analysis/scoring", handler.handleScoringGraphPost)
		api.GET("/analysis/fund-flow", handler.handleFundFlow)

		// Analyst reports.
		api.POST("/reports/suspicious", handler.handleCreateReport)
		api.GET("/reports/suspicious", handler.handleListReports)
		api.GET("/reports/suspicious/:id", handler.handleGetReport)
		api.PUT("/reports/suspicious/:id/status", handler.handleUpdateReportStatus)

		// Stored analysis history.
		api.GET("/analyses/:address", handler.handleRecentAnalyses)
	}

	return r
}
