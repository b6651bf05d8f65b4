package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ARTFROST1/DuoLoveCursor/internal/achievement"
	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu          sync.Mutex
	session     []Event
	participant map[uuid.UUID][]Event
	user        map[uuid.UUID][]Event
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		participant: make(map[uuid.UUID][]Event),
		user:        make(map[uuid.UUID][]Event),
	}
}

func (mb *mockBroadcaster) ToSession(_ uuid.UUID, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.session = append(mb.session, ev)
}

func (mb *mockBroadcaster) ToParticipant(_, userID uuid.UUID, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.participant[userID] = append(mb.participant[userID], ev)
}

func (mb *mockBroadcaster) ToUser(userID uuid.UUID, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.user[userID] = append(mb.user[userID], ev)
}

func (mb *mockBroadcaster) sessionOfType(typ string) []Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return filterEvents(mb.session, typ)
}

func (mb *mockBroadcaster) participantOfType(userID uuid.UUID, typ string) []Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return filterEvents(mb.participant[userID], typ)
}

func (mb *mockBroadcaster) userOfType(userID uuid.UUID, typ string) []Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return filterEvents(mb.user[userID], typ)
}

func filterEvents(evs []Event, typ string) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// manualScheduler queues timers until the test fires them.
type manualScheduler struct {
	pending []*manualTimer
}

type manualTimer struct {
	d         time.Duration
	fn        func(ctx context.Context)
	cancelled bool
}

func (s *manualScheduler) After(d time.Duration, fn func(ctx context.Context)) func() {
	t := &manualTimer{d: d, fn: fn}
	s.pending = append(s.pending, t)
	return func() { t.cancelled = true }
}

// fire runs every queued timer, including ones queued while firing.
func (s *manualScheduler) fire(ctx context.Context) int {
	n := 0
	for len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		if t.cancelled {
			continue
		}
		t.fn(ctx)
		n++
	}
	return n
}

// fireNext runs the oldest live timer.
func (s *manualScheduler) fireNext(ctx context.Context) bool {
	for len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		if t.cancelled {
			continue
		}
		t.fn(ctx)
		return true
	}
	return false
}

type fixture struct {
	store   *store.Memory
	mb      *mockBroadcaster
	sched   *manualScheduler
	session *models.Session
	p1, p2  uuid.UUID
	deps    Deps
}

func newFixture(t *testing.T, slug string) *fixture {
	t.Helper()
	mem := store.NewMemory()
	p1, p2 := uuid.New(), uuid.New()
	mem.SetPartners(p1, p2)

	sess := &models.Session{
		GameSlug:         slug,
		Partner1ID:       p1,
		Partner2ID:       p2,
		Partner2Accepted: true,
		PartnershipID:    uuid.New(),
	}
	require.NoError(t, mem.CreateSession(context.Background(), sess))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f := &fixture{
		store:   mem,
		mb:      newMockBroadcaster(),
		sched:   &manualScheduler{},
		session: sess,
		p1:      p1,
		p2:      p2,
	}
	f.deps = Deps{
		Session:      sess,
		Store:        mem,
		Achievements: achievement.NewEngine(mem, logger),
		Broadcast:    f.mb,
		Schedule:     f.sched,
		Logger:       logger,
		Timing:       DefaultTiming(),
	}
	return f
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
