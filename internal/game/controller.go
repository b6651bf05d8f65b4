// Package game holds the per-session game controllers and the registry that
// selects one by game slug.
package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/achievement"
	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

// Server to client message types.
const (
	EventStart               = "start"
	EventResult              = "result"
	EventChoiceProgress      = "choiceProgress"
	EventRestart             = "restart"
	EventExit                = "exit"
	EventPrefillRequired     = "prefillRequired"
	EventWaitingForPartner   = "waitingForPartner"
	EventPrefillComplete     = "prefillComplete"
	EventQuestion            = "question"
	EventReveal              = "reveal"
	EventNext                = "next"
	EventSummary             = "summary"
	EventError               = "error"
	EventAchievementUnlocked = "achievementUnlocked"
	EventHistoryAdded        = "historyAdded"
	EventPartnerDisconnected = "partnerDisconnected"
)

// Client to server message types.
const (
	ClientReact   = "react"
	ClientChoice  = "choice"
	ClientPrefill = "prefill"
	ClientAnswer  = "answer"
)

// Event is one server to client message.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrorEvent builds an error message for a client.
func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Message: msg}}
}

// ClientEvent is one inbound message, already attributed to a participant.
type ClientEvent struct {
	Name          string
	Payload       json.RawMessage
	ParticipantID uuid.UUID
}

// Broadcaster delivers events. ToSession reaches both participants' session
// connections, ToParticipant only one of them, and ToUser a user's personal
// group wherever they are connected.
type Broadcaster interface {
	ToSession(sessionID uuid.UUID, ev Event)
	ToParticipant(sessionID, userID uuid.UUID, ev Event)
	ToUser(userID uuid.UUID, ev Event)
}

// Scheduler runs fn after d on the session's worker. The returned func
// cancels a timer that has not fired yet.
type Scheduler interface {
	After(d time.Duration, fn func(ctx context.Context)) (cancel func())
}

// ActionLog records session actions for the historian.
type ActionLog interface {
	Log(actorID uuid.UUID, actionType string, payload map[string]interface{})
}

// Controller is the per-session state machine. All methods are called from
// the session worker, one at a time.
type Controller interface {
	Start(ctx context.Context)
	OnEvent(ctx context.Context, ev ClientEvent) error
	Dispose()
}

// Timing groups the delays used by the controllers.
type Timing struct {
	ReadyDelay     time.Duration
	Countdown      time.Duration
	RevealDelay    time.Duration
	NextRoundDelay time.Duration
	PrefillGrace   time.Duration
	QuizRounds     int
}

// DefaultTiming returns the production delays.
func DefaultTiming() Timing {
	return Timing{
		ReadyDelay:     500 * time.Millisecond,
		Countdown:      3 * time.Second,
		RevealDelay:    3 * time.Second,
		NextRoundDelay: 1500 * time.Millisecond,
		PrefillGrace:   2 * time.Second,
		QuizRounds:     5,
	}
}

// Deps is everything a controller is built from.
type Deps struct {
	Session      *models.Session
	Store        store.Store
	Achievements achievement.Recorder
	Broadcast    Broadcaster
	Schedule     Scheduler
	Log          ActionLog
	Logger       *logrus.Logger
	Timing       Timing
}

func (d Deps) fields() logrus.Fields {
	return logrus.Fields{
		"session_id": d.Session.ID,
		"game":       d.Session.GameSlug,
	}
}

func (d Deps) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	if d.Log != nil {
		d.Log.Log(actorID, actionType, payload)
	}
}

// Factory builds a controller for one session.
type Factory func(d Deps) Controller

// Registry maps game slugs to controller factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for slug.
func (r *Registry) Register(slug string, f Factory) {
	r.factories[slug] = f
}

// Lookup returns the factory for slug.
func (r *Registry) Lookup(slug string) (Factory, bool) {
	f, ok := r.factories[slug]
	return f, ok
}

// DefaultRegistry returns a registry with every built-in game.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ReactionSlug, NewReaction)
	r.Register(QuizLoveSlug, NewQuiz)
	return r
}
