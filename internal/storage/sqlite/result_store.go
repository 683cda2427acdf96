package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/result"
)

// ResultStore implements result persistence backed by SQLite.
type ResultStore struct {
	db *DB
}

// NewResultStore creates a new SQLite-backed result store.
func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db}
}

// Save replaces the single last_result row.
func (s *ResultStore) Save(ctx context.Context, r result.LastResult) error {
	placements, err := json.Marshal(r.Placements)
	if err != nil {
		return fmt.Errorf("marshal placements: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO last_result (id, title, score, total, percentage, placements, completed_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, score=excluded.score, total=excluded.total,
			percentage=excluded.percentage, placements=excluded.placements,
			completed_at=excluded.completed_at`,
		r.Title, r.Score, r.Total, r.Percentage, string(placements), r.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert last result: %w", err)
	}
	return nil
}

// Load returns the last result or domain.ErrNoResult.
func (s *ResultStore) Load(ctx context.Context) (result.LastResult, error) {
	var (
		r          result.LastResult
		placements string
		completed  time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT title, score, total, percentage, placements, completed_at
		FROM last_result WHERE id = 1`,
	).Scan(&r.Title, &r.Score, &r.Total, &r.Percentage, &placements, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return result.LastResult{}, domain.ErrNoResult
	}
	if err != nil {
		return result.LastResult{}, fmt.Errorf("query last result: %w", err)
	}

	if err := json.Unmarshal([]byte(placements), &r.Placements); err != nil {
		return result.LastResult{}, fmt.Errorf("unmarshal placements: %w", err)
	}
	r.Timestamp = completed.UTC()
	return r, nil
}
