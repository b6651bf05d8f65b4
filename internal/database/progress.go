package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
)

// IncrementProgress bumps one achievement counter inside a transaction. The
// (scope, slug, source) event row makes a replayed increment a no-op, and the
// achieved_at stamp is only written while it is still NULL.
func (s *Store) IncrementProgress(ctx context.Context, inc models.ProgressIncrement) (models.ProgressResult, error) {
	var res models.ProgressResult
	at := inc.At
	if at.IsZero() {
		at = time.Now()
	}

	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			INSERT INTO achievement_progress_events (scope_key, slug, source_id)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, inc.ScopeKey, inc.Slug, inc.SourceID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			res.Duplicate = true
			err := tx.QueryRow(ctx, `
				SELECT progress FROM achievement_progress WHERE scope_key = $1 AND slug = $2
			`, inc.ScopeKey, inc.Slug).Scan(&res.Progress)
			return notFoundOK(err)
		}

		var achievedAt *time.Time
		err = tx.QueryRow(ctx, `
			INSERT INTO achievement_progress (scope_key, slug, progress)
			VALUES ($1, $2, $3)
			ON CONFLICT (scope_key, slug)
			DO UPDATE SET progress = achievement_progress.progress + EXCLUDED.progress
			RETURNING progress, achieved_at
		`, inc.ScopeKey, inc.Slug, inc.By).Scan(&res.Progress, &achievedAt)
		if err != nil {
			return err
		}

		reached := inc.Goal == nil || res.Progress >= *inc.Goal
		if !reached || achievedAt != nil {
			return nil
		}
		ct, err = tx.Exec(ctx, `
			UPDATE achievement_progress SET achieved_at = $3
			WHERE scope_key = $1 AND slug = $2 AND achieved_at IS NULL
		`, inc.ScopeKey, inc.Slug, at)
		if err != nil {
			return err
		}
		res.JustUnlocked = ct.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return models.ProgressResult{}, fmt.Errorf("increment progress %s/%s: %w", inc.ScopeKey, inc.Slug, err)
	}
	return res, nil
}

func notFoundOK(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
