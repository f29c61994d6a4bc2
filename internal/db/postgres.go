package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracex/risk-engine/pkg/models"
)

// schemaSQL is compiled into the binary so schema init works in runtime
// images that do not carry the source tree.
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("db: not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the pgx connection pool.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("[DB] connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded DDL.
func (s *PostgresStore) InitSchema() error {
	if _, err := s.pool.Exec(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	log.Println("[DB] risk engine schema initialized")
	return nil
}

// SaveAddressAnalysis persists one analysis result for audit and replay.
func (s *PostgresStore) SaveAddressAnalysis(ctx context.Context, result *models.AddressAnalysisResult) error {
	firedJSON, err := json.Marshal(result.FiredRules)
	if err != nil {
		return fmt.Errorf("marshal fired rules: %w", err)
	}
	tagsJSON, err := json.Marshal(result.RiskTags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	completedAt, err := time.Parse(time.RFC3339, result.CompletedAt)
	if err != nil {
		completedAt = time.Now().UTC()
	}

	sql := `
		INSERT INTO address_analyses
			(id, address, chain, risk_score, risk_level, fired_rules, risk_tags, explanation, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err = s.pool.Exec(ctx, sql,
		uuid.New(),
		result.Address,
		result.Chain,
		result.RiskScore,
		result.RiskLevel,
		firedJSON,
		tagsJSON,
		result.Explanation,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert address analysis: %w", err)
	}
	return nil
}

// AnalysisRecord is one stored analysis row.
type AnalysisRecord struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Chain       string    `json:"chain"`
	RiskScore   int       `json:"risk_score"`
	RiskLevel   string    `json:"risk_level"`
	CompletedAt time.Time `json:"completed_at"`
}

// RecentAnalyses returns the latest stored analyses for an address.
func (s *PostgresStore) RecentAnalyses(ctx context.Context, address string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sql := `
		SELECT id, address, chain, risk_score, risk_level, completed_at
		FROM address_analyses
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2;
	`
	rows, err := s.pool.Query(ctx, sql, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]AnalysisRecord, 0)
	for rows.Next() {
		var r AnalysisRecord
		if err := rows.Scan(&r.ID, &r.Address, &r.Chain, &r.RiskScore, &r.RiskLevel, &r.CompletedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SuspiciousReport is a community or analyst flag against an address.
type SuspiciousReport struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	ChainID     int64     `json:"chain_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Reporter    string    `json:"reporter"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateReport inserts a new report in open status and returns its id.
func (s *PostgresStore) CreateReport(ctx context.Context, report *SuspiciousReport) (string, error) {
	id := uuid.New().String()
	sql := `
		INSERT INTO suspicious_reports (id, address, chain_id, category, description, reporter)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.pool.Exec(ctx, sql, id,
		models.CanonicalAddress(report.Address),
		report.ChainID,
		report.Category,
		report.Description,
		report.Reporter,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert report: %w", err)
	}
	return id, nil
}

// GetReport fetches one report by id.
func (s *PostgresStore) GetReport(ctx context.Context, id string) (*SuspiciousReport, error) {
	sql := `
		SELECT id, address, chain_id, category, description, reporter, status, created_at, updated_at
		FROM suspicious_reports WHERE id = $1;
	`
	var r SuspiciousReport
	err := s.pool.QueryRow(ctx, sql, id).Scan(
		&r.ID, &r.Address, &r.ChainID, &r.Category, &r.Description,
		&r.Reporter, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReports pages through reports, optionally filtered by status.
func (s *PostgresStore) ListReports(ctx context.Context, status string, page, limit int) ([]SuspiciousReport, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	where := ""
	args := []any{limit, offset}
	var total int
	if status != "" {
		where = "WHERE status = $3"
		args = append(args, status)
		if err := s.pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM suspicious_reports WHERE status = $1", status).Scan(&total); err != nil {
			return nil, 0, err
		}
	} else {
		if err := s.pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM suspicious_reports").Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, address, chain_id, category, description, reporter, status, created_at, updated_at
		FROM suspicious_reports %s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2;
	`, where)
	rows, err := s.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports := make([]SuspiciousReport, 0)
	for rows.Next() {
		var r SuspiciousReport
		if err := rows.Scan(&r.ID, &r.Address, &r.ChainID, &r.Category, &r.Description,
			&r.Reporter, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		reports = append(reports, r)
	}
	return reports, total, rows.Err()
}

// UpdateReportStatus transitions a report between open, reviewing and
// resolved.
func (s *PostgresStore) UpdateReportStatus(ctx context.Context, id, status string) error {
	valid := map[string]bool{"open": true, "reviewing": true, "resolved": true, "dismissed": true}
	if !valid[status] {
		return fmt.Errorf("invalid status: %s", status)
	}

	sql := `UPDATE suspicious_reports SET status = $1, updated_at = NOW() WHERE id = $2;`
	tag, err := s.pool.Exec(ctx, sql, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
