package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AchievementScope tells whether progress is tracked per user or per partnership.
type AchievementScope string

const (
	ScopeIndividual AchievementScope = "INDIVIDUAL"
	ScopeCouple     AchievementScope = "COUPLE"
)

// AchievementDefinition is a static catalog entry.
type AchievementDefinition struct {
	Slug        string           `json:"slug"`
	Emoji       string           `json:"emoji"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Goal        *int             `json:"goal,omitempty"` // nil unlocks on the first qualifying event
	Scope       AchievementScope `json:"scope"`
}

// AchievementProgress is the persisted counter for one (scope entity, slug).
// AchievedAt is set at most once and never cleared.
type AchievementProgress struct {
	ScopeKey   string     `json:"scopeKey"`
	Slug       string     `json:"slug"`
	Progress   int        `json:"progress"`
	AchievedAt *time.Time `json:"achievedAt,omitempty"`
}

// ProgressIncrement asks the store to bump one counter. SourceID identifies the
// logical event; a second increment with the same (ScopeKey, Slug, SourceID)
// is ignored.
type ProgressIncrement struct {
	ScopeKey string
	Slug     string
	By       int
	Goal     *int
	SourceID uuid.UUID
	At       time.Time
}

// ProgressResult is the counter state after an increment.
type ProgressResult struct {
	Progress     int
	JustUnlocked bool
	Duplicate    bool
}

// CoupleScopeKey is the progress key for partnership-scoped achievements.
func CoupleScopeKey(partnershipID uuid.UUID) string {
	return fmt.Sprintf("couple:%s", partnershipID)
}

// IndividualScopeKey is the progress key for user-scoped achievements.
func IndividualScopeKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID)
}
