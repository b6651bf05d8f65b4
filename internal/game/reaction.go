package game

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
)

// ReactionSlug identifies the reaction race.
const ReactionSlug = "reaction_duo"

// Reaction choices after a finished race.
const (
	ChoiceAgain = "again"
	ChoiceExit  = "exit"
)

type reactionState int

const (
	reactionIdle reactionState = iota
	reactionCountdown
	reactionPlaying
	reactionFinished
	reactionRestarted
	reactionExited
)

func (s reactionState) String() string {
	switch s {
	case reactionIdle:
		return "idle"
	case reactionCountdown:
		return "countdown"
	case reactionPlaying:
		return "playing"
	case reactionFinished:
		return "finished"
	case reactionRestarted:
		return "restarted"
	case reactionExited:
		return "exited"
	}
	return "unknown"
}

// StartPayload is the body of start.
type StartPayload struct {
	CountdownMs int64 `json:"countdownMs"`
}

// ResultPayload is the body of the reaction result.
type ResultPayload struct {
	WinnerID uuid.UUID `json:"winnerId"`
}

// ChoiceProgressPayload is the running tally of post-game choices.
type ChoiceProgressPayload struct {
	ExitCount  int `json:"exitCount"`
	AgainCount int `json:"againCount"`
}

// RestartPayload points both players at the new session.
type RestartPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
}

type choiceRequest struct {
	Action string `json:"action"`
}

// Reaction is the first-to-press race. The first react processed after start
// wins; later ones are stale.
type Reaction struct {
	d       Deps
	state   reactionState
	winner  *uuid.UUID
	choices map[uuid.UUID]string
	timers  []func()
}

// NewReaction is the Factory for ReactionSlug.
func NewReaction(d Deps) Controller {
	return &Reaction{d: d, choices: make(map[uuid.UUID]string)}
}

func (r *Reaction) Start(_ context.Context) {
	r.timers = append(r.timers, r.d.Schedule.After(r.d.Timing.ReadyDelay, r.begin))
}

func (r *Reaction) begin(_ context.Context) {
	r.winner = nil
	r.state = reactionCountdown
	r.d.Broadcast.ToSession(r.d.Session.ID, Event{
		Type:    EventStart,
		Payload: StartPayload{CountdownMs: r.d.Timing.Countdown.Milliseconds()},
	})
	r.d.logAction(uuid.Nil, "session_start", map[string]interface{}{"countdownMs": r.d.Timing.Countdown.Milliseconds()})

	r.timers = append(r.timers, r.d.Schedule.After(r.d.Timing.Countdown, func(context.Context) {
		if r.state == reactionCountdown {
			r.state = reactionPlaying
		}
	}))
}

func (r *Reaction) OnEvent(ctx context.Context, ev ClientEvent) error {
	switch ev.Name {
	case ClientReact:
		return r.react(ctx, ev.ParticipantID)
	case ClientChoice:
		return r.choose(ctx, ev)
	}
	return nil
}

func (r *Reaction) react(ctx context.Context, participantID uuid.UUID) error {
	if r.winner != nil {
		return staleEvent("winner already decided")
	}
	if r.state != reactionCountdown && r.state != reactionPlaying {
		return staleEvent("react in state %s", r.state)
	}

	winner := participantID
	r.winner = &winner
	r.state = reactionFinished

	r.d.Broadcast.ToSession(r.d.Session.ID, Event{Type: EventResult, Payload: ResultPayload{WinnerID: winner}})
	r.d.logAction(winner, ClientReact, map[string]interface{}{"winner": true})

	finishSession(ctx, r.d, &winner, ResultPayload{WinnerID: winner})
	return nil
}

func (r *Reaction) choose(ctx context.Context, ev ClientEvent) error {
	var req choiceRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		return invalidPayload("choice: %v", err)
	}
	if req.Action != ChoiceAgain && req.Action != ChoiceExit {
		return invalidPayload("choice action %q", req.Action)
	}
	if r.state != reactionFinished {
		return staleEvent("choice in state %s", r.state)
	}

	r.choices[ev.ParticipantID] = req.Action
	r.d.logAction(ev.ParticipantID, ClientChoice, map[string]interface{}{"action": req.Action})

	var progress ChoiceProgressPayload
	for _, a := range r.choices {
		if a == ChoiceAgain {
			progress.AgainCount++
		} else {
			progress.ExitCount++
		}
	}
	r.d.Broadcast.ToSession(r.d.Session.ID, Event{Type: EventChoiceProgress, Payload: progress})

	if len(r.choices) < 2 {
		return nil
	}
	r.choices = make(map[uuid.UUID]string)

	if progress.AgainCount == 2 {
		r.restart(ctx)
		return nil
	}
	r.exit()
	return nil
}

func (r *Reaction) restart(ctx context.Context) {
	sess := r.d.Session
	log := r.d.Logger.WithFields(r.d.fields())

	partner, err := r.d.Store.ResolveActivePartner(ctx, sess.Partner1ID)
	if err != nil || partner != sess.Partner2ID {
		log.Infof("pair no longer partnered, exiting instead of restart (err=%v)", err)
		r.exit()
		return
	}

	next := &models.Session{
		GameSlug:         sess.GameSlug,
		Partner1ID:       sess.Partner1ID,
		Partner2ID:       sess.Partner2ID,
		Partner2Accepted: true,
		PartnershipID:    sess.PartnershipID,
	}
	if err := r.d.Store.CreateSession(ctx, next); err != nil {
		log.Errorf("failed to create restart session: %v", err)
		r.d.Broadcast.ToSession(sess.ID, ErrorEvent("could not start a new game"))
		return
	}

	r.state = reactionRestarted
	r.d.logAction(uuid.Nil, "session_restart", map[string]interface{}{"nextSessionId": next.ID})
	r.d.Broadcast.ToSession(sess.ID, Event{Type: EventRestart, Payload: RestartPayload{SessionID: next.ID}})
}

func (r *Reaction) exit() {
	r.state = reactionExited
	r.d.logAction(uuid.Nil, "session_exit", nil)
	r.d.Broadcast.ToSession(r.d.Session.ID, Event{Type: EventExit})
}

func (r *Reaction) Dispose() {
	for _, cancel := range r.timers {
		cancel()
	}
	r.timers = nil
	r.winner = nil
	r.choices = make(map[uuid.UUID]string)
}
