package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonho/pulserank/internal/domain"
)

// ScoreRepository persists score records so every served score can be
// traced back to its inputs later.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a repository over an existing pool.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// Migrate creates the score history table when missing.
func (r *ScoreRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS score_history (
			id            BIGSERIAL PRIMARY KEY,
			symbol        TEXT NOT NULL,
			total         DOUBLE PRECISION NOT NULL,
			sub_scores    JSONB NOT NULL,
			snapshot_refs JSONB NOT NULL,
			computed_at   TIMESTAMPTZ NOT NULL,
			recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("migrate score_history: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_score_history_symbol_time
		ON score_history (symbol, computed_at DESC)`)
	if err != nil {
		return fmt.Errorf("migrate score_history index: %w", err)
	}
	return nil
}

// SaveScores writes a batch of records in one round trip.
func (r *ScoreRepository) SaveScores(ctx context.Context, records []domain.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO score_history (symbol, total, sub_scores, snapshot_refs, computed_at)
		VALUES ($1, $2, $3, $4, $5)`

	batch := &pgx.Batch{}
	for _, rec := range records {
		subScores, err := json.Marshal(rec.SubScores)
		if err != nil {
			return fmt.Errorf("marshal sub-scores for %s: %w", rec.Symbol, err)
		}
		refs, err := json.Marshal(rec.SnapshotRefs)
		if err != nil {
			return fmt.Errorf("marshal snapshot refs for %s: %w", rec.Symbol, err)
		}
		batch.Queue(query, rec.Symbol, rec.Total, subScores, refs, rec.ComputedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert score history: %w", err)
		}
	}
	return nil
}

// History returns a symbol's most recent records, newest first.
func (r *ScoreRepository) History(ctx context.Context, symbol string, limit int) ([]domain.ScoreRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT symbol, total, sub_scores, snapshot_refs, computed_at
		FROM score_history
		WHERE symbol = $1
		ORDER BY computed_at DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query score history: %w", err)
	}
	defer rows.Close()

	var records []domain.ScoreRecord
	for rows.Next() {
		var (
			rec       domain.ScoreRecord
			subScores []byte
			refs      []byte
		)
		if err := rows.Scan(&rec.Symbol, &rec.Total, &subScores, &refs, &rec.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan score history: %w", err)
		}
		if err := json.Unmarshal(subScores, &rec.SubScores); err != nil {
			return nil, fmt.Errorf("decode sub-scores: %w", err)
		}
		if err := json.Unmarshal(refs, &rec.SnapshotRefs); err != nil {
			return nil, fmt.Errorf("decode snapshot refs: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes records older than the retention window and reports how
// many rows went away.
func (r *ScoreRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM score_history WHERE recorded_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("prune score history: %w", err)
	}
	return tag.RowsAffected(), nil
}
