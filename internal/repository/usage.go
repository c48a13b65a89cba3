package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
)

// UsageRepository persists the LLM usage ledger
type UsageRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *pgxpool.Pool, logger *logrus.Logger) *UsageRepository {
	return &UsageRepository{
		db:  db,
		log: logger,
	}
}

// Record inserts one ledger entry. A zero CreatedAt uses the database clock.
func (r *UsageRepository) Record(ctx context.Context, rec domain.UsageRecord) error {
	query := `
		INSERT INTO llm_usage (
			request_id, operation, model, prompt_tokens, completion_tokens,
			total_tokens, cost_usd, cost_jpy, cached, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW())
		)`

	var createdAt *time.Time
	if !rec.CreatedAt.IsZero() {
		createdAt = &rec.CreatedAt
	}

	_, err := r.db.Exec(ctx, query,
		rec.RequestID,
		rec.Operation,
		rec.Model,
		rec.Usage.PromptTokens,
		rec.Usage.CompletionTokens,
		rec.Usage.TotalTokens,
		rec.Usage.EstimatedCostUSD,
		rec.Usage.EstimatedCostJPY,
		rec.Cached,
		createdAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"operation": rec.Operation,
			"model":     rec.Model,
			"error":     err,
		}).Error("Failed to record LLM usage")
		return fmt.Errorf("recording usage: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"operation":    rec.Operation,
		"model":        rec.Model,
		"total_tokens": rec.Usage.TotalTokens,
		"cached":       rec.Cached,
	}).Debug("LLM usage recorded")

	return nil
}

// Summary aggregates the ledger per model for entries at or after since
func (r *UsageRepository) Summary(ctx context.Context, since time.Time) ([]domain.ModelUsageSummary, error) {
	query := `
		SELECT model,
			   COUNT(*),
			   COUNT(*) FILTER (WHERE cached),
			   COALESCE(SUM(prompt_tokens), 0),
			   COALESCE(SUM(completion_tokens), 0),
			   COALESCE(SUM(total_tokens), 0),
			   COALESCE(SUM(cost_usd), 0)::float8,
			   COALESCE(SUM(cost_jpy), 0)::float8
		FROM llm_usage
		WHERE created_at >= $1
		GROUP BY model
		ORDER BY model`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		r.log.WithError(err).Error("Failed to query usage summary")
		return nil, fmt.Errorf("querying usage summary: %w", err)
	}
	defer rows.Close()

	summaries := []domain.ModelUsageSummary{}
	for rows.Next() {
		var s domain.ModelUsageSummary
		if err := rows.Scan(
			&s.Model,
			&s.Requests,
			&s.CachedRequests,
			&s.PromptTokens,
			&s.CompletionTokens,
			&s.TotalTokens,
			&s.EstimatedCostUSD,
			&s.EstimatedCostJPY,
		); err != nil {
			return nil, fmt.Errorf("scanning usage summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage summary: %w", err)
	}

	return summaries, nil
}
