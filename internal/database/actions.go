package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ARTFROST1/DuoLoveCursor/internal/cache"
)

// InsertSessionActions persists a batch of journal records in one transaction.
func (s *Store) InsertSessionActions(ctx context.Context, records []cache.SessionActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	q := `
		INSERT INTO session_actions (
			session_id, action_index, actor_user_id, action_type, action_payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			payload, err := json.Marshal(rec.ActionPayload)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, q,
				rec.SessionID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, payload,
				time.UnixMilli(rec.Timestamp),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert session actions: %w", err)
	}
	return nil
}
