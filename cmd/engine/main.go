package main

import (
	"log"
	"os"
	"strconv"

	"github.com/tracex/risk-engine/internal/api"
	"github.com/tracex/risk-engine/internal/collector"
	"github.com/tracex/risk-engine/internal/db"
	"github.com/tracex/risk-engine/internal/engine"
	"github.com/tracex/risk-engine/internal/indexer"
	"github.com/tracex/risk-engine/internal/lists"
	"github.com/tracex/risk-engine/internal/service"
)

func main() {
	log.Println("Starting TraceX Risk Scoring Engine (Microservice: evm-risk-analytics)...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	apiKey := requireEnv("INDEXER_API_KEY")

	rulesPath := getEnvOrDefault("RULES_PATH", "rules/risk_rules.yaml")
	ruleset, err := engine.LoadRuleset(rulesPath)
	if err != nil {
		log.Fatalf("FATAL: failed to load ruleset %s: %v", rulesPath, err)
	}
	log.Printf("[Rules] loaded %d rules from %s", len(ruleset.Rules), rulesPath)

	listsDir := getEnvOrDefault("LISTS_DIR", "data/lists")
	addressLists, err := lists.Load(listsDir)
	if err != nil {
		log.Fatalf("FATAL: failed to load address lists from %s: %v", listsDir, err)
	}

	maxHistoryDays := getEnvInt("MAX_HISTORY_DAYS", ruleset.Defaults.MaxHistoryDays)
	if maxHistoryDays <= 0 {
		maxHistoryDays = 365
	}
	if d := getEnvFloat("PPR_DAMPING", 0); d > 0 && d < 1 {
		ruleset.Defaults.PPRDamping = d
	}

	// Persistence is optional; without DATABASE_URL results are served but
	// not stored.
	var dbConn *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbConn, err = db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, continuing without persisting analyses. Error: %v", err)
			dbConn = nil
		} else {
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("[DB] DATABASE_URL not set, persistence disabled")
	}

	client := indexer.NewClient(apiKey)
	col := collector.New(client, addressLists)

	var opts []service.Option
	// History is request-scoped unless a shared cache is explicitly
	// enabled. Shared history accumulates state across analyses of the
	// same address.
	if getEnvOrDefault("SHARED_HISTORY", "false") == "true" {
		opts = append(opts, service.WithSharedHistory())
	}
	// Hybrid is normally requested per analysis; HYBRID_SCORING=true turns
	// the model blend on for every request.
	if getEnvOrDefault("HYBRID_SCORING", "false") == "true" {
		ml := engine.NewMLScorer()
		if w := getEnvFloat("RULE_WEIGHT", 0); w > 0 {
			ml.RuleWeight = w
		}
		if w := getEnvFloat("ML_WEIGHT", 0); w > 0 {
			ml.MLWeight = w
		}
		opts = append(opts, service.WithHybridScoring(ml))
	}
	svc := service.New(col, ruleset, addressLists, maxHistoryDays, opts...)

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Setup the Gin Router
	r := api.SetupRouter(svc, dbConn, wsHub)

	port := getEnvOrDefault("PORT", "5341")

	// Start the server
	log.Printf("Engine running on :%s (API Node: evm-risk-analytics)\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}
