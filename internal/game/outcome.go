package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/achievement"
	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
)

// AchievementPayload is the body of achievementUnlocked.
type AchievementPayload struct {
	Slug  string `json:"slug"`
	Emoji string `json:"emoji"`
	Title string `json:"title"`
}

// finishSession persists the terminal outcome and, if this call is the one
// that ended the session, runs the bookkeeping: achievements, history rows and
// the personal notifications. Failures are logged; the outcome the players
// already saw stands.
func finishSession(ctx context.Context, d Deps, winnerID *uuid.UUID, result interface{}) {
	sess := d.Session
	log := d.Logger.WithFields(d.fields())

	var raw json.RawMessage
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			log.Warnf("failed to marshal session result: %v", err)
		} else {
			raw = b
		}
	}

	endedAt := time.Now()
	ended, err := d.Store.FinishSession(ctx, sess.ID, models.SessionOutcome{
		WinnerID: winnerID,
		EndedAt:  endedAt,
		Result:   raw,
	})
	if err != nil {
		log.Errorf("failed to persist session outcome: %v", err)
		return
	}
	if !ended {
		log.Debug("session already ended elsewhere; skipping bookkeeping")
		return
	}
	sess.EndedAt = &endedAt
	sess.WinnerID = winnerID
	sess.Result = raw

	d.logAction(uuid.Nil, "session_end", map[string]interface{}{"winnerId": winnerID})

	unlocked, err := d.Achievements.RecordSessionCompletion(ctx, achievement.Completion{
		SessionID:     sess.ID,
		PartnershipID: sess.PartnershipID,
		Partner1ID:    sess.Partner1ID,
		Partner2ID:    sess.Partner2ID,
		WinnerID:      winnerID,
	})
	if err != nil {
		log.Errorf("failed to record achievements: %v", err)
	}
	for _, slug := range unlocked {
		def, ok := achievement.Lookup(slug)
		if !ok {
			continue
		}
		ev := Event{Type: EventAchievementUnlocked, Payload: AchievementPayload{
			Slug:  def.Slug,
			Emoji: def.Emoji,
			Title: def.Title,
		}}
		for _, p := range sess.Participants() {
			d.Broadcast.ToUser(p, ev)
		}
		log.WithField("slug", slug).Info("achievement unlocked")
	}

	entries := make([]models.HistoryEntry, 0, 2)
	for _, p := range sess.Participants() {
		entries = append(entries, models.HistoryEntry{
			UserID:    p,
			SessionID: sess.ID,
			GameSlug:  sess.GameSlug,
			Result:    models.OutcomeFor(p, winnerID),
			CreatedAt: endedAt,
		})
	}
	if err := d.Store.CreateHistoryEntries(ctx, entries); err != nil {
		log.WithFields(logrus.Fields{"entries": len(entries)}).Errorf("failed to write history: %v", err)
		return
	}
	for _, p := range sess.Participants() {
		d.Broadcast.ToUser(p, Event{Type: EventHistoryAdded})
	}
}
