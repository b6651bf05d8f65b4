package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

// CreateSession inserts a new game session, assigning an id and start time if missing.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate session id: %w", err)
		}
		sess.ID = id
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	var partnershipID *uuid.UUID
	if sess.PartnershipID != uuid.Nil {
		partnershipID = &sess.PartnershipID
	}

	q := `
		INSERT INTO game_sessions (id, game_slug, partner1_id, partner2_id, partner2_accepted, partnership_id, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q,
			sess.ID, sess.GameSlug, sess.Partner1ID, sess.Partner2ID,
			sess.Partner2Accepted, partnershipID, sess.StartedAt,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	q := `
		SELECT id, game_slug, partner1_id, partner2_id, partner2_accepted,
		       partnership_id, started_at, ended_at, winner_id, result_json
		FROM game_sessions
		WHERE id = $1
	`
	var (
		sess          models.Session
		partnershipID *uuid.UUID
		result        []byte
	)
	err := s.Pool.QueryRow(ctx, q, id).Scan(
		&sess.ID, &sess.GameSlug, &sess.Partner1ID, &sess.Partner2ID, &sess.Partner2Accepted,
		&partnershipID, &sess.StartedAt, &sess.EndedAt, &sess.WinnerID, &result,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if partnershipID != nil {
		sess.PartnershipID = *partnershipID
	}
	sess.Result = result
	return &sess, nil
}

// FinishSession stamps the outcome unless the session already ended.
func (s *Store) FinishSession(ctx context.Context, id uuid.UUID, outcome models.SessionOutcome) (bool, error) {
	q := `
		UPDATE game_sessions
		SET ended_at = $2, winner_id = $3, result_json = $4
		WHERE id = $1 AND ended_at IS NULL
	`
	var result []byte
	if len(outcome.Result) > 0 {
		result = outcome.Result
	}

	updated := false
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, e := tx.Exec(ctx, q, id, outcome.EndedAt, outcome.WinnerID, result)
		if e != nil {
			return e
		}
		if ct.RowsAffected() == 1 {
			updated = true
			return nil
		}
		var exists bool
		if e := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM game_sessions WHERE id = $1)`, id).Scan(&exists); e != nil {
			return e
		}
		if !exists {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("finish session %s: %w", id, err)
	}
	return updated, nil
}
