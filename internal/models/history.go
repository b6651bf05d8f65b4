package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome labels stored on history rows, scoped to the row's user.
const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
	OutcomeDraw = "draw"
)

// HistoryEntry is one row per participant per finished session.
type HistoryEntry struct {
	UserID    uuid.UUID `json:"userId"`
	SessionID uuid.UUID `json:"sessionId"`
	GameSlug  string    `json:"gameSlug"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"createdAt"`
}

// OutcomeFor returns the outcome label for userID given the session winner.
// A nil winner is a draw.
func OutcomeFor(userID uuid.UUID, winnerID *uuid.UUID) string {
	if winnerID == nil {
		return OutcomeDraw
	}
	if *winnerID == userID {
		return OutcomeWon
	}
	return OutcomeLost
}
