package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
)

type historyKey struct {
	sessionID uuid.UUID
	userID    uuid.UUID
}

type progressKey struct {
	scopeKey string
	slug     string
}

type progressEventKey struct {
	progressKey
	sourceID uuid.UUID
}

type partnerLink struct {
	partner       uuid.UUID
	partnershipID uuid.UUID
}

type profileKey struct {
	userID uuid.UUID
	quizID string
}

// Memory is a process-local Store. It backs the "memory" store driver and tests.
type Memory struct {
	mu sync.Mutex

	sessions       map[uuid.UUID]*models.Session
	history        map[historyKey]models.HistoryEntry
	historyOrder   []historyKey
	progress       map[progressKey]*models.AchievementProgress
	progressEvents map[progressEventKey]struct{}
	profiles       map[profileKey]*models.AnswerProfile
	questions      map[string][]models.QuizQuestion
	partners       map[uuid.UUID]partnerLink
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:       make(map[uuid.UUID]*models.Session),
		history:        make(map[historyKey]models.HistoryEntry),
		progress:       make(map[progressKey]*models.AchievementProgress),
		progressEvents: make(map[progressEventKey]struct{}),
		profiles:       make(map[profileKey]*models.AnswerProfile),
		questions:      make(map[string][]models.QuizQuestion),
		partners:       make(map[uuid.UUID]partnerLink),
	}
}

// SetPartners records an active partnership between a and b and returns its id.
func (m *Memory) SetPartners(a, b uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.partners[a] = partnerLink{partner: b, partnershipID: id}
	m.partners[b] = partnerLink{partner: a, partnershipID: id}
	return id
}

// RemovePartners dissolves the partnership of a, if any.
func (m *Memory) RemovePartners(a uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.partners[a]; ok {
		delete(m.partners, link.partner)
	}
	delete(m.partners, a)
}

// AddQuizQuestions appends questions to a quiz's bank.
func (m *Memory) AddQuizQuestions(quizID string, qs ...models.QuizQuestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range qs {
		q.QuizID = quizID
		m.questions[quizID] = append(m.questions[quizID], q)
	}
}

// AcceptSession flips the acceptance flag for p2.
func (m *Memory) AcceptSession(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Partner2Accepted = true
	return nil
}

// History returns all history rows in insertion order.
func (m *Memory) History() []models.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.HistoryEntry, 0, len(m.historyOrder))
	for _, k := range m.historyOrder {
		out = append(out, m.history[k])
	}
	return out
}

// Progress returns a copy of one counter.
func (m *Memory) Progress(scopeKey, slug string) (models.AchievementProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[progressKey{scopeKey, slug}]
	if !ok {
		return models.AchievementProgress{}, false
	}
	return *p, true
}

// Sessions returns copies of all sessions sorted by start time.
func (m *Memory) Sessions() []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (m *Memory) CreateSession(_ context.Context, s *models.Session) error {
	if s.Partner1ID == s.Partner2ID {
		return fmt.Errorf("session needs two distinct participants")
	}
	if s.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate session id: %w", err)
		}
		s.ID = id
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) FinishSession(_ context.Context, id uuid.UUID, outcome models.SessionOutcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if s.EndedAt != nil {
		return false, nil
	}
	endedAt := outcome.EndedAt
	s.EndedAt = &endedAt
	if outcome.WinnerID != nil {
		w := *outcome.WinnerID
		s.WinnerID = &w
	}
	s.Result = outcome.Result
	return true, nil
}

func (m *Memory) CreateHistoryEntries(_ context.Context, entries []models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		k := historyKey{e.SessionID, e.UserID}
		if _, exists := m.history[k]; exists {
			continue
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		m.history[k] = e
		m.historyOrder = append(m.historyOrder, k)
	}
	return nil
}

func (m *Memory) IncrementProgress(_ context.Context, inc models.ProgressIncrement) (models.ProgressResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pk := progressKey{inc.ScopeKey, inc.Slug}
	rec, ok := m.progress[pk]
	if !ok {
		rec = &models.AchievementProgress{ScopeKey: inc.ScopeKey, Slug: inc.Slug}
		m.progress[pk] = rec
	}

	ek := progressEventKey{pk, inc.SourceID}
	if _, seen := m.progressEvents[ek]; seen {
		return models.ProgressResult{Progress: rec.Progress, Duplicate: true}, nil
	}
	m.progressEvents[ek] = struct{}{}

	rec.Progress += inc.By
	reached := inc.Goal == nil || rec.Progress >= *inc.Goal
	res := models.ProgressResult{Progress: rec.Progress}
	if reached && rec.AchievedAt == nil {
		at := inc.At
		if at.IsZero() {
			at = time.Now()
		}
		rec.AchievedAt = &at
		res.JustUnlocked = true
	}
	return res, nil
}

func (m *Memory) ListQuizQuestions(_ context.Context, quizID string) ([]models.QuizQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qs := append([]models.QuizQuestion(nil), m.questions[quizID]...)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
	return qs, nil
}

func (m *Memory) GetAnswerProfile(_ context.Context, userID uuid.UUID, quizID string) (*models.AnswerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileKey{userID, quizID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Answers = maps.Clone(p.Answers)
	return &cp, nil
}

func (m *Memory) UpsertAnswerProfile(_ context.Context, p *models.AnswerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.Answers = maps.Clone(p.Answers)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	m.profiles[profileKey{p.UserID, p.QuizID}] = &cp
	return nil
}

func (m *Memory) ResolveActivePartner(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.partners[userID]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return link.partner, nil
}

func (m *Memory) ResolvePartnership(_ context.Context, a, b uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.partners[a]
	if !ok || link.partner != b {
		return uuid.Nil, ErrNotFound
	}
	return link.partnershipID, nil
}

var _ Store = (*Memory)(nil)
