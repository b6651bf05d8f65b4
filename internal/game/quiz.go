package game

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

type quizPhase int

const (
	quizIdle quizPhase = iota
	quizPrefill
	quizStarting
	quizQuestion
	quizReveal
	quizSummary
)

func (p quizPhase) String() string {
	switch p {
	case quizIdle:
		return "idle"
	case quizPrefill:
		return "prefill"
	case quizStarting:
		return "starting"
	case quizQuestion:
		return "question"
	case quizReveal:
		return "reveal"
	case quizSummary:
		return "summary"
	}
	return "unknown"
}

// PrefillQuestion is one first-person question sent for prefill.
type PrefillQuestion struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// PrefillRequiredPayload is the body of prefillRequired.
type PrefillRequiredPayload struct {
	Questions []PrefillQuestion `json:"questions"`
}

// QuestionPayload is the body of question.
type QuestionPayload struct {
	Round      int      `json:"round"`
	Total      int      `json:"total"`
	QuestionID int      `json:"questionId"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
}

// RevealPayload is one participant's view of a finished round.
type RevealPayload struct {
	Round        int    `json:"round"`
	Selected     string `json:"selected"`
	Actual       string `json:"actual"`
	Match        bool   `json:"match"`
	YouScore     int    `json:"youScore"`
	PartnerScore int    `json:"partnerScore"`
}

// NextPayload announces the round about to start.
type NextPayload struct {
	Round int `json:"round"`
}

// SummaryPayload is one participant's view of the final score.
type SummaryPayload struct {
	YouScore     int        `json:"youScore"`
	PartnerScore int        `json:"partnerScore"`
	WinnerID     *uuid.UUID `json:"winnerId"`
}

// QuizResult is persisted as the session result.
type QuizResult struct {
	ScoreA      int `json:"scoreA"`
	ScoreB      int `json:"scoreB"`
	TotalRounds int `json:"totalRounds"`
}

type prefillRequest struct {
	Answers map[string]string `json:"answers"`
}

type answerRequest struct {
	Round  int    `json:"round"`
	Option string `json:"option"`
}

// Quiz is the preference quiz: each partner guesses the other's own answers.
type Quiz struct {
	d         Deps
	phase     quizPhase
	questions []models.QuizQuestion
	round     int
	scores    map[uuid.UUID]int
	answers   map[uuid.UUID]string
	profiles  map[uuid.UUID]map[string]string
	timers    []func()
}

// NewQuiz is the Factory for QuizLoveSlug.
func NewQuiz(d Deps) Controller {
	return &Quiz{
		d:        d,
		scores:   make(map[uuid.UUID]int),
		answers:  make(map[uuid.UUID]string),
		profiles: make(map[uuid.UUID]map[string]string),
	}
}

func (q *Quiz) total() int {
	return len(q.questions)
}

func (q *Quiz) Start(ctx context.Context) {
	sess := q.d.Session
	log := q.d.Logger.WithFields(q.d.fields())

	for _, p := range sess.Participants() {
		q.scores[p] = 0
	}

	bank, err := q.d.Store.ListQuizQuestions(ctx, QuizLoveSlug)
	if err != nil {
		log.Errorf("failed to load quiz questions: %v", err)
	}
	if len(bank) == 0 {
		q.d.Broadcast.ToSession(sess.ID, ErrorEvent("no quiz questions available"))
		return
	}
	rand.Shuffle(len(bank), func(i, j int) { bank[i], bank[j] = bank[j], bank[i] })
	n := q.d.Timing.QuizRounds
	if n <= 0 || n > len(bank) {
		n = len(bank)
	}
	q.questions = bank[:n]
	q.d.logAction(uuid.Nil, "session_start", map[string]interface{}{"rounds": n})

	var missing []uuid.UUID
	for _, p := range sess.Participants() {
		prof, err := q.d.Store.GetAnswerProfile(ctx, p, QuizLoveSlug)
		switch {
		case err == nil:
			q.profiles[p] = prof.Answers
		case errors.Is(err, store.ErrNotFound):
		default:
			log.WithField("user_id", p).Warnf("failed to load answer profile: %v", err)
		}
		if len(q.unanswered(p)) > 0 {
			missing = append(missing, p)
		}
	}

	if len(missing) == 0 {
		q.nextRound(ctx)
		return
	}

	q.phase = quizPrefill
	for _, p := range sess.Participants() {
		if !slices.Contains(missing, p) {
			q.d.Broadcast.ToParticipant(sess.ID, p, Event{Type: EventWaitingForPartner})
			continue
		}
		todo := q.unanswered(p)
		prefill := PrefillRequiredPayload{Questions: make([]PrefillQuestion, 0, len(todo))}
		for _, qq := range todo {
			prefill.Questions = append(prefill.Questions, PrefillQuestion{ID: qq.ID, Text: selfText(qq), Options: qq.Options})
		}
		q.d.Broadcast.ToParticipant(sess.ID, p, Event{Type: EventPrefillRequired, Payload: prefill})
	}
}

// unanswered lists the sampled questions missing from userID's own profile.
func (q *Quiz) unanswered(userID uuid.UUID) []models.QuizQuestion {
	var out []models.QuizQuestion
	for _, qq := range q.questions {
		if _, ok := q.profiles[userID][strconv.Itoa(qq.ID)]; !ok {
			out = append(out, qq)
		}
	}
	return out
}

func (q *Quiz) OnEvent(ctx context.Context, ev ClientEvent) error {
	switch ev.Name {
	case ClientPrefill:
		return q.prefill(ctx, ev)
	case ClientAnswer:
		return q.answer(ctx, ev)
	}
	return nil
}

func (q *Quiz) question(id string) (models.QuizQuestion, bool) {
	for _, qq := range q.questions {
		if strconv.Itoa(qq.ID) == id {
			return qq, true
		}
	}
	return models.QuizQuestion{}, false
}

func (q *Quiz) prefill(ctx context.Context, ev ClientEvent) error {
	var req prefillRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		return invalidPayload("prefill: %v", err)
	}
	if len(req.Answers) == 0 {
		return invalidPayload("prefill answers are empty")
	}
	if q.phase != quizPrefill {
		return staleEvent("prefill in phase %s", q.phase)
	}
	todo := q.unanswered(ev.ParticipantID)
	if len(todo) == 0 {
		return staleEvent("profile already covers this quiz")
	}
	for id, option := range req.Answers {
		qq, ok := q.question(id)
		if !ok {
			return invalidPayload("unknown question %q", id)
		}
		if !slices.Contains(qq.Options, option) {
			return invalidPayload("option %q is not offered for question %q", option, id)
		}
	}
	for _, qq := range todo {
		if _, ok := req.Answers[strconv.Itoa(qq.ID)]; !ok {
			return invalidPayload("prefill is missing question %d", qq.ID)
		}
	}

	// Answers from earlier sessions stay; this session's sample is added on top.
	merged := make(map[string]string, len(q.profiles[ev.ParticipantID])+len(req.Answers))
	for id, option := range q.profiles[ev.ParticipantID] {
		merged[id] = option
	}
	for id, option := range req.Answers {
		merged[id] = option
	}

	sess := q.d.Session
	err := q.d.Store.UpsertAnswerProfile(ctx, &models.AnswerProfile{
		UserID:  ev.ParticipantID,
		QuizID:  QuizLoveSlug,
		Answers: merged,
	})
	if err != nil {
		q.d.Logger.WithFields(q.d.fields()).WithField("user_id", ev.ParticipantID).Errorf("failed to save answer profile: %v", err)
		q.d.Broadcast.ToParticipant(sess.ID, ev.ParticipantID, ErrorEvent("could not save your answers"))
		return nil
	}
	q.profiles[ev.ParticipantID] = merged
	q.d.logAction(ev.ParticipantID, ClientPrefill, map[string]interface{}{"answers": len(req.Answers)})

	partner := sess.PartnerOf(ev.ParticipantID)
	if len(q.unanswered(partner)) > 0 {
		q.d.Broadcast.ToParticipant(sess.ID, ev.ParticipantID, Event{Type: EventWaitingForPartner})
		return nil
	}

	q.phase = quizStarting
	q.d.Broadcast.ToSession(sess.ID, Event{Type: EventPrefillComplete})
	q.after(q.d.Timing.PrefillGrace, q.nextRound)
	return nil
}

func (q *Quiz) nextRound(_ context.Context) {
	q.round++
	q.answers = make(map[uuid.UUID]string)
	q.phase = quizQuestion

	qq := q.questions[q.round-1]
	q.d.Broadcast.ToSession(q.d.Session.ID, Event{Type: EventQuestion, Payload: QuestionPayload{
		Round:      q.round,
		Total:      q.total(),
		QuestionID: qq.ID,
		Text:       qq.Text,
		Options:    qq.Options,
	}})
}

func (q *Quiz) answer(ctx context.Context, ev ClientEvent) error {
	var req answerRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		return invalidPayload("answer: %v", err)
	}
	if req.Round <= 0 || req.Option == "" {
		return invalidPayload("answer needs a round and an option")
	}
	if q.phase != quizQuestion || req.Round != q.round {
		return staleEvent("answer for round %d in phase %s round %d", req.Round, q.phase, q.round)
	}
	if _, done := q.answers[ev.ParticipantID]; done {
		return staleEvent("round %d already answered", req.Round)
	}
	if !slices.Contains(q.questions[q.round-1].Options, req.Option) {
		return invalidPayload("option %q is not offered", req.Option)
	}

	q.answers[ev.ParticipantID] = req.Option
	q.d.logAction(ev.ParticipantID, ClientAnswer, map[string]interface{}{"round": req.Round, "option": req.Option})

	if len(q.answers) < 2 {
		return nil
	}
	q.reveal(ctx)
	return nil
}

func (q *Quiz) reveal(_ context.Context) {
	q.phase = quizReveal
	sess := q.d.Session
	key := strconv.Itoa(q.questions[q.round-1].ID)

	actual := make(map[uuid.UUID]string, 2)
	match := make(map[uuid.UUID]bool, 2)
	for _, p := range sess.Participants() {
		actual[p] = q.profiles[sess.PartnerOf(p)][key]
		match[p] = actual[p] != "" && q.answers[p] == actual[p]
		if match[p] {
			q.scores[p]++
		}
	}
	for _, p := range sess.Participants() {
		q.d.Broadcast.ToParticipant(sess.ID, p, Event{Type: EventReveal, Payload: RevealPayload{
			Round:        q.round,
			Selected:     q.answers[p],
			Actual:       actual[p],
			Match:        match[p],
			YouScore:     q.scores[p],
			PartnerScore: q.scores[sess.PartnerOf(p)],
		}})
	}

	q.after(q.d.Timing.RevealDelay, func(ctx context.Context) {
		if q.round >= q.total() {
			q.summarize(ctx)
			return
		}
		q.d.Broadcast.ToSession(sess.ID, Event{Type: EventNext, Payload: NextPayload{Round: q.round + 1}})
		q.after(q.d.Timing.NextRoundDelay, q.nextRound)
	})
}

func (q *Quiz) summarize(ctx context.Context) {
	q.phase = quizSummary
	sess := q.d.Session
	a, b := q.scores[sess.Partner1ID], q.scores[sess.Partner2ID]

	var winner *uuid.UUID
	switch {
	case a > b:
		w := sess.Partner1ID
		winner = &w
	case b > a:
		w := sess.Partner2ID
		winner = &w
	}

	for _, p := range sess.Participants() {
		q.d.Broadcast.ToParticipant(sess.ID, p, Event{Type: EventSummary, Payload: SummaryPayload{
			YouScore:     q.scores[p],
			PartnerScore: q.scores[sess.PartnerOf(p)],
			WinnerID:     winner,
		}})
	}

	finishSession(ctx, q.d, winner, QuizResult{ScoreA: a, ScoreB: b, TotalRounds: q.total()})
}

func (q *Quiz) after(d time.Duration, fn func(ctx context.Context)) {
	q.timers = append(q.timers, q.d.Schedule.After(d, fn))
}

func (q *Quiz) Dispose() {
	for _, cancel := range q.timers {
		cancel()
	}
	q.timers = nil
	q.questions = nil
	q.answers = make(map[uuid.UUID]string)
	q.profiles = make(map[uuid.UUID]map[string]string)
}
