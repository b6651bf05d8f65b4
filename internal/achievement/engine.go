package achievement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

// Completion describes a session that has just finished.
type Completion struct {
	SessionID     uuid.UUID
	PartnershipID uuid.UUID
	Partner1ID    uuid.UUID
	Partner2ID    uuid.UUID
	WinnerID      *uuid.UUID
}

// Recorder is what controllers need from the engine.
type Recorder interface {
	RecordSessionCompletion(ctx context.Context, c Completion) ([]string, error)
}

// Backend is the persistence the engine reads and writes.
type Backend interface {
	store.ProgressStore
	store.PartnerLookup
}

// Engine advances couple-scoped counters for finished sessions.
type Engine struct {
	store  Backend
	logger *logrus.Logger
	now    func() time.Time
}

// NewEngine returns an engine writing to b.
func NewEngine(b Backend, logger *logrus.Logger) *Engine {
	return &Engine{store: b, logger: logger, now: time.Now}
}

// Triggers returns the slugs a finished session advances.
func Triggers(c Completion) []string {
	slugs := []string{SlugFirstGame, SlugGameDuo, SlugHardcoreMode}
	if c.WinnerID != nil {
		slugs = append(slugs, SlugFirstVictory)
	}
	return slugs
}

// RecordSessionCompletion increments every trigger for the session's
// partnership and returns the slugs whose goal was crossed by this call.
// Replaying the same session id does not count again. When the session
// carries no partnership, the pair's active partnership is looked up; a pair
// without one advances nothing.
func (e *Engine) RecordSessionCompletion(ctx context.Context, c Completion) ([]string, error) {
	partnershipID := c.PartnershipID
	if partnershipID == uuid.Nil {
		id, err := e.store.ResolvePartnership(ctx, c.Partner1ID, c.Partner2ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve partnership: %w", err)
		}
		partnershipID = id
	}
	scopeKey := models.CoupleScopeKey(partnershipID)
	now := e.now()

	var (
		unlocked []string
		errs     []error
	)
	for _, slug := range Triggers(c) {
		def, ok := Lookup(slug)
		if !ok {
			continue
		}
		res, err := e.store.IncrementProgress(ctx, models.ProgressIncrement{
			ScopeKey: scopeKey,
			Slug:     slug,
			By:       1,
			Goal:     def.Goal,
			SourceID: c.SessionID,
			At:       now,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", slug, err))
			continue
		}
		if res.Duplicate {
			e.logger.WithFields(logrus.Fields{
				"session_id": c.SessionID,
				"slug":       slug,
			}).Debug("achievement increment already applied")
			continue
		}
		if res.JustUnlocked {
			unlocked = append(unlocked, slug)
		}
	}
	return unlocked, errors.Join(errs...)
}
