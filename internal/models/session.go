package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session is one instance of two partners playing one game to completion.
// A Session is immutable once EndedAt is set; "play again" creates a new row.
type Session struct {
	ID               uuid.UUID       `json:"id"`
	GameSlug         string          `json:"gameSlug"`
	Partner1ID       uuid.UUID       `json:"partner1Id"`
	Partner2ID       uuid.UUID       `json:"partner2Id"`
	Partner2Accepted bool            `json:"partner2Accepted"`
	PartnershipID    uuid.UUID       `json:"partnershipId"`
	StartedAt        time.Time       `json:"startedAt"`
	EndedAt          *time.Time      `json:"endedAt,omitempty"`
	WinnerID         *uuid.UUID      `json:"winnerId,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
}

// SessionOutcome is the terminal update applied to a Session when a controller
// declares it finished.
type SessionOutcome struct {
	WinnerID *uuid.UUID
	EndedAt  time.Time
	Result   json.RawMessage
}

// IsParticipant reports whether userID is p1 or p2 of the session.
func (s *Session) IsParticipant(userID uuid.UUID) bool {
	return userID == s.Partner1ID || userID == s.Partner2ID
}

// PartnerOf returns the other participant. The result is uuid.Nil when userID
// is not part of the session.
func (s *Session) PartnerOf(userID uuid.UUID) uuid.UUID {
	switch userID {
	case s.Partner1ID:
		return s.Partner2ID
	case s.Partner2ID:
		return s.Partner1ID
	}
	return uuid.Nil
}

// Participants returns p1 and p2 in seat order.
func (s *Session) Participants() [2]uuid.UUID {
	return [2]uuid.UUID{s.Partner1ID, s.Partner2ID}
}

// Ended reports whether the session has reached a terminal state.
func (s *Session) Ended() bool {
	return s.EndedAt != nil
}
