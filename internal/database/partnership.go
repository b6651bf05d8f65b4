package database

import (
	"context"

	"github.com/google/uuid"
)

// ResolveActivePartner returns the other member of userID's active partnership.
func (s *Store) ResolveActivePartner(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	q := `
		SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
		FROM partnerships
		WHERE is_active AND (user1_id = $1 OR user2_id = $1)
		ORDER BY created_at DESC
		LIMIT 1
	`
	var partnerID uuid.UUID
	if err := s.Pool.QueryRow(ctx, q, userID).Scan(&partnerID); err != nil {
		return uuid.Nil, notFound(err)
	}
	return partnerID, nil
}

// ResolvePartnership returns the id of the active partnership joining a and b.
func (s *Store) ResolvePartnership(ctx context.Context, a, b uuid.UUID) (uuid.UUID, error) {
	q := `
		SELECT id
		FROM partnerships
		WHERE is_active
		  AND ((user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1))
		ORDER BY created_at DESC
		LIMIT 1
	`
	var id uuid.UUID
	if err := s.Pool.QueryRow(ctx, q, a, b).Scan(&id); err != nil {
		return uuid.Nil, notFound(err)
	}
	return id, nil
}
