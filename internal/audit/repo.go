package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealdesk/pkg/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Repo stores one row per finished aggregation.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Record inserts run, filling in ID and CreatedAt when empty.
func (r *Repo) Record(ctx context.Context, run models.AggregationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO aggregation_runs (
			id, deal_id, surface, success, error_kind, message,
			total_found, total_formatted, products_found, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.DealID, run.Surface, run.Success, nullable(run.ErrorKind), nullable(run.Message),
		run.TotalFound, run.TotalFormatted, run.ProductsFound, run.DurationMS, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListByDeal returns the latest runs for dealID, newest first.
func (r *Repo) ListByDeal(ctx context.Context, dealID string, limit int) ([]models.AggregationRun, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, deal_id, surface, success, error_kind, message,
		       total_found, total_formatted, products_found, duration_ms, created_at
		FROM aggregation_runs
		WHERE deal_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, strings.TrimSpace(dealID), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.AggregationRun, 0, limit)
	for rows.Next() {
		var (
			run       models.AggregationRun
			kind, msg sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.DealID, &run.Surface, &run.Success, &kind, &msg,
			&run.TotalFound, &run.TotalFormatted, &run.ProductsFound, &run.DurationMS, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.ErrorKind = kind.String
		run.Message = msg.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
