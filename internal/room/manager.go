// Package room binds live connections to game sessions. Each active session
// gets one worker goroutine that owns its controller.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/achievement"
	"github.com/ARTFROST1/DuoLoveCursor/internal/cache"
	"github.com/ARTFROST1/DuoLoveCursor/internal/game"
	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

// Admission failures.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInviteNotAccepted = errors.New("invite not accepted")
	ErrNotAParticipant   = errors.New("not a participant of this session")
	ErrUnsupportedGame   = errors.New("unsupported game")
	ErrSessionEnded      = errors.New("session already ended")
)

// Conn is one live client connection.
type Conn interface {
	ID() uuid.UUID
	UserID() uuid.UUID
	// Send must not block.
	Send(ev game.Event)
	// Close ends the connection; the owner is expected to call Leave afterwards.
	Close()
}

// Config wires a Manager.
type Config struct {
	Store        store.Store
	Registry     *game.Registry
	Achievements achievement.Recorder
	Journal      *cache.Journal
	Logger       *logrus.Logger
	Timing       game.Timing
}

type room struct {
	session    models.Session
	conns      map[uuid.UUID]Conn
	started    bool
	worker     *worker
	controller game.Controller
	actions    *cache.SessionLog
}

// Manager is the session registry. Its mutex guards rooms and personal
// groups and is never held while a controller runs.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	rooms    map[uuid.UUID]*room
	personal map[uuid.UUID]map[uuid.UUID]Conn

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// NewManager returns an empty registry.
func NewManager(cfg Config) *Manager {
	if cfg.Registry == nil {
		cfg.Registry = game.DefaultRegistry()
	}
	if cfg.Achievements == nil {
		cfg.Achievements = achievement.NewEngine(cfg.Store, cfg.Logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		rooms:    make(map[uuid.UUID]*room),
		personal: make(map[uuid.UUID]map[uuid.UUID]Conn),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Admit joins conn to its user's personal group and, when sessionID is set,
// to that session's room. The controller starts once both participants are
// present and the invite is accepted. An ended session is only joinable while
// its room is still live; it never gets a new controller.
func (m *Manager) Admit(ctx context.Context, conn Conn, sessionID *uuid.UUID) error {
	userID := conn.UserID()
	if sessionID == nil {
		m.joinPersonal(conn)
		return nil
	}

	sess, err := m.cfg.Store.GetSession(ctx, *sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load session %s: %w", *sessionID, err)
	}
	if userID == sess.Partner2ID && !sess.Partner2Accepted {
		return ErrInviteNotAccepted
	}
	if !sess.IsParticipant(userID) {
		return ErrNotAParticipant
	}
	factory, ok := m.cfg.Registry.Lookup(sess.GameSlug)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedGame, sess.GameSlug)
	}

	ended := sess.Ended()

	m.mu.Lock()
	r, exists := m.rooms[sess.ID]
	if !exists {
		if ended {
			m.mu.Unlock()
			return ErrSessionEnded
		}
		r = m.newRoomLocked(*sess, factory)
	}
	m.joinPersonalLocked(conn)
	old := r.conns[userID]
	r.conns[userID] = conn
	shouldStart := len(r.conns) == 2 && sess.Partner2Accepted && !r.started && !ended
	if shouldStart {
		r.started = true
	}
	m.mu.Unlock()

	if old != nil && old.ID() != conn.ID() {
		m.cfg.Logger.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"user_id":    userID,
		}).Info("participant reconnected; closing previous connection")
		old.Close()
	}

	r.worker.post(func(ctx context.Context) {
		r.actions.Log(userID, "session_admit", map[string]interface{}{"connId": conn.ID()})
		if shouldStart {
			r.controller.Start(ctx)
		}
	})
	return nil
}

func (m *Manager) newRoomLocked(sess models.Session, factory game.Factory) *room {
	logger := m.cfg.Logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"game":       sess.GameSlug,
	})
	r := &room{
		session: sess,
		conns:   make(map[uuid.UUID]Conn, 2),
		worker:  newWorker(m.ctx, logger),
		actions: cache.NewSessionLog(m.cfg.Journal, sess.ID),
	}
	controllerSession := sess
	r.controller = factory(game.Deps{
		Session:      &controllerSession,
		Store:        m.cfg.Store,
		Achievements: m.cfg.Achievements,
		Broadcast:    m,
		Schedule:     r.worker,
		Log:          r.actions,
		Logger:       m.cfg.Logger,
		Timing:       m.cfg.Timing,
	})
	m.rooms[sess.ID] = r

	m.workers.Add(1)
	go func() {
		<-r.worker.stopped
		m.workers.Done()
	}()
	logger.Info("room created")
	return r
}

func (m *Manager) joinPersonal(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinPersonalLocked(conn)
}

func (m *Manager) joinPersonalLocked(conn Conn) {
	group, ok := m.personal[conn.UserID()]
	if !ok {
		group = make(map[uuid.UUID]Conn)
		m.personal[conn.UserID()] = group
	}
	group[conn.ID()] = conn
}

// Leave detaches conn. A room left empty has its controller disposed and is
// forgotten, so a later Admit builds a fresh controller.
func (m *Manager) Leave(conn Conn, sessionID *uuid.UUID) {
	userID := conn.UserID()

	m.mu.Lock()
	if group, ok := m.personal[userID]; ok {
		delete(group, conn.ID())
		if len(group) == 0 {
			delete(m.personal, userID)
		}
	}
	if sessionID == nil {
		m.mu.Unlock()
		return
	}
	r, ok := m.rooms[*sessionID]
	if !ok || r.conns[userID] == nil || r.conns[userID].ID() != conn.ID() {
		m.mu.Unlock()
		return
	}
	delete(r.conns, userID)
	partner := r.session.PartnerOf(userID)
	_, partnerPresent := r.conns[partner]
	empty := len(r.conns) == 0
	if empty {
		delete(m.rooms, *sessionID)
	}
	m.mu.Unlock()

	if partnerPresent {
		m.ToUser(partner, game.Event{Type: game.EventPartnerDisconnected})
	}

	r.worker.post(func(context.Context) {
		r.actions.Log(userID, "session_leave", nil)
	})
	if empty {
		m.teardown(r)
	}
}

func (m *Manager) teardown(r *room) {
	ok := r.worker.post(func(context.Context) {
		r.controller.Dispose()
		r.worker.stop()
	})
	if !ok {
		r.worker.stop()
	}
	m.cfg.Logger.WithField("session_id", r.session.ID).Info("room empty; controller disposed")
}

// Dispatch hands an inbound event to the session's controller. Events for
// unknown sessions or from non-participants are ignored.
func (m *Manager) Dispatch(sessionID, participantID uuid.UUID, name string, payload json.RawMessage) {
	m.mu.Lock()
	r, ok := m.rooms[sessionID]
	m.mu.Unlock()
	if !ok || !r.session.IsParticipant(participantID) {
		return
	}

	ev := game.ClientEvent{Name: name, Payload: payload, ParticipantID: participantID}
	r.worker.post(func(ctx context.Context) {
		err := r.controller.OnEvent(ctx, ev)
		if err == nil {
			return
		}
		log := m.cfg.Logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"user_id":    participantID,
			"event":      name,
		})
		switch {
		case errors.Is(err, game.ErrStaleEvent):
			log.Debugf("dropped event: %v", err)
		case errors.Is(err, game.ErrInvalidPayload):
			log.Infof("rejected event: %v", err)
			m.ToParticipant(sessionID, participantID, game.ErrorEvent(err.Error()))
		default:
			log.Warnf("event failed: %v", err)
			m.ToParticipant(sessionID, participantID, game.ErrorEvent("internal error"))
		}
	})
}

// ToSession sends ev to both participants' session connections.
func (m *Manager) ToSession(sessionID uuid.UUID, ev game.Event) {
	m.mu.Lock()
	var targets []Conn
	if r, ok := m.rooms[sessionID]; ok {
		for _, c := range r.conns {
			targets = append(targets, c)
		}
	}
	m.mu.Unlock()
	for _, c := range targets {
		c.Send(ev)
	}
}

// ToParticipant sends ev to one participant's session connection.
func (m *Manager) ToParticipant(sessionID, userID uuid.UUID, ev game.Event) {
	m.mu.Lock()
	var target Conn
	if r, ok := m.rooms[sessionID]; ok {
		target = r.conns[userID]
	}
	m.mu.Unlock()
	if target != nil {
		target.Send(ev)
	}
}

// ToUser sends ev to every connection of userID.
func (m *Manager) ToUser(userID uuid.UUID, ev game.Event) {
	m.mu.Lock()
	targets := make([]Conn, 0, len(m.personal[userID]))
	for _, c := range m.personal[userID] {
		targets = append(targets, c)
	}
	m.mu.Unlock()
	for _, c := range targets {
		c.Send(ev)
	}
}

// Rooms returns the number of live rooms.
func (m *Manager) Rooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// RoomSize returns how many connections a session's room holds.
func (m *Manager) RoomSize(sessionID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[sessionID]; ok {
		return len(r.conns)
	}
	return 0
}

// Shutdown disposes every live controller and waits for the workers to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	rooms := make([]*room, 0, len(m.rooms))
	for id, r := range m.rooms {
		rooms = append(rooms, r)
		delete(m.rooms, id)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		m.teardown(r)
	}

	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		return ctx.Err()
	}
}

var _ game.Broadcaster = (*Manager)(nil)
