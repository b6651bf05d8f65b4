// Package store defines the persistence contract consumed by the session engine
// and an in-memory implementation of it.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SessionStore reads and writes game sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// FinishSession applies the terminal outcome only if the session has not
	// ended yet. It reports false when another path already ended it.
	FinishSession(ctx context.Context, id uuid.UUID, outcome models.SessionOutcome) (bool, error)
}

// HistoryStore records per-participant outcomes. Rows are unique per
// (session, user); re-inserting is a no-op.
type HistoryStore interface {
	CreateHistoryEntries(ctx context.Context, entries []models.HistoryEntry) error
}

// ProgressStore holds achievement counters.
type ProgressStore interface {
	IncrementProgress(ctx context.Context, inc models.ProgressIncrement) (models.ProgressResult, error)
}

// QuizStore holds the question bank and answer profiles.
type QuizStore interface {
	ListQuizQuestions(ctx context.Context, quizID string) ([]models.QuizQuestion, error)
	GetAnswerProfile(ctx context.Context, userID uuid.UUID, quizID string) (*models.AnswerProfile, error)
	UpsertAnswerProfile(ctx context.Context, p *models.AnswerProfile) error
}

// PartnerLookup resolves the external partnership relation.
type PartnerLookup interface {
	// ResolveActivePartner returns ErrNotFound when userID has no active partner.
	ResolveActivePartner(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	// ResolvePartnership returns the id of the active partnership between a
	// and b, in either order, or ErrNotFound.
	ResolvePartnership(ctx context.Context, a, b uuid.UUID) (uuid.UUID, error)
}

// Store is everything the engine needs from persistence.
type Store interface {
	SessionStore
	HistoryStore
	ProgressStore
	QuizStore
	PartnerLookup
}
