package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ACS-web2026/aste-backend/internal/domain"
)

// PerformanceStore keeps one row per fetch attempt in site_performance.
type PerformanceStore struct {
	db *sqlx.DB
}

func NewPerformanceStore(db *sqlx.DB) *PerformanceStore {
	return &PerformanceStore{db: db}
}

func (s *PerformanceStore) Record(ctx context.Context, a domain.FetchAttempt) error {
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	errMsg := sql.NullString{String: a.Error, Valid: a.Error != ""}

	_, err := executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO site_performance (
			site_name, method, success, result_count, response_time_ms, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.Source, string(a.Method), a.Success, a.Count, a.Duration.Milliseconds(), errMsg, at,
	)
	if err != nil {
		return fmt.Errorf("insert fetch attempt: %w", err)
	}
	return nil
}

// Stats aggregates attempts made after since, per source and method.
func (s *PerformanceStore) Stats(ctx context.Context, since time.Time) ([]domain.SiteStats, error) {
	stats := []domain.SiteStats{}
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &stats, `
		SELECT site_name,
		       method,
		       COUNT(*) AS total_requests,
		       COUNT(*) FILTER (WHERE success) AS successful_requests,
		       COALESCE(AVG(response_time_ms), 0)::DOUBLE PRECISION AS avg_response_time
		FROM site_performance
		WHERE created_at > $1
		GROUP BY site_name, method
		ORDER BY site_name, method`, since)
	if err != nil {
		return nil, fmt.Errorf("select site stats: %w", err)
	}
	return stats, nil
}
