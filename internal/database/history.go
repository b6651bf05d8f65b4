package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
)

// CreateHistoryEntries writes one row per (session, user); existing rows are kept.
func (s *Store) CreateHistoryEntries(ctx context.Context, entries []models.HistoryEntry) error {
	q := `
		INSERT INTO history (session_id, user_id, game_slug, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, user_id) DO NOTHING
	`
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, e := range entries {
			createdAt := e.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			if _, err := tx.Exec(ctx, q, e.SessionID, e.UserID, e.GameSlug, e.Result, createdAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}
