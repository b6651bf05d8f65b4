package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARTFROST1/DuoLoveCursor/internal/auth"
	"github.com/ARTFROST1/DuoLoveCursor/internal/game"
	"github.com/ARTFROST1/DuoLoveCursor/internal/models"
	"github.com/ARTFROST1/DuoLoveCursor/internal/room"
	"github.com/ARTFROST1/DuoLoveCursor/internal/store"
)

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type gatewayFixture struct {
	srv    *httptest.Server
	mgr    *room.Manager
	store  *store.Memory
	signer *auth.Signer
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	mem := store.NewMemory()
	signer, err := auth.NewSigner(time.Hour)
	require.NoError(t, err)

	timing := game.DefaultTiming()
	timing.ReadyDelay = 5 * time.Millisecond
	timing.Countdown = 5 * time.Millisecond

	mgr := room.NewManager(room.Config{Store: mem, Logger: logger, Timing: timing})

	mux := http.NewServeMux()
	mux.Handle("/ws", SessionWSHandler(logger, mgr, signer))
	mux.Handle("/healthz", HealthHandler(mgr))
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})
	return &gatewayFixture{srv: srv, mgr: mgr, store: mem, signer: signer}
}

func (f *gatewayFixture) dial(t *testing.T, userID uuid.UUID, sessionID *uuid.UUID) *websocket.Conn {
	t.Helper()
	token, err := f.signer.CreateJWT(userID)
	require.NoError(t, err)

	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	if sessionID != nil {
		u += "?sessionId=" + sessionID.String()
	}
	header := http.Header{}
	header.Set("Cookie", AuthCookieName+"="+token)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, c *websocket.Conn, typ string) wireEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		var ev wireEvent
		require.NoError(t, wsjson.Read(ctx, c, &ev), "waiting for %s", typ)
		if ev.Type == typ {
			return ev
		}
	}
}

func send(t *testing.T, c *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg := map[string]interface{}{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, wsjson.Write(ctx, c, msg))
}

func expectClose(t *testing.T, c *websocket.Conn, code websocket.StatusCode) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, _, err := c.Read(ctx)
		if err != nil {
			assert.Equal(t, code, websocket.CloseStatus(err))
			return
		}
	}
}

func (f *gatewayFixture) reactionSession(t *testing.T) *models.Session {
	s := &models.Session{
		GameSlug:         game.ReactionSlug,
		Partner1ID:       uuid.New(),
		Partner2ID:       uuid.New(),
		Partner2Accepted: true,
		PartnershipID:    uuid.New(),
	}
	require.NoError(t, f.store.CreateSession(context.Background(), s))
	f.store.SetPartners(s.Partner1ID, s.Partner2ID)
	return s
}

func TestUnknownSessionIsRefused(t *testing.T) {
	f := newGatewayFixture(t)
	missing := uuid.New()
	c := f.dial(t, uuid.New(), &missing)

	ev := readUntil(t, c, game.EventError)
	assert.Contains(t, string(ev.Payload), "session not found")
	expectClose(t, c, SessionNotFoundError)
}

func TestStrangerIsRefused(t *testing.T) {
	f := newGatewayFixture(t)
	s := f.reactionSession(t)
	c := f.dial(t, uuid.New(), &s.ID)

	readUntil(t, c, game.EventError)
	expectClose(t, c, NotAParticipantError)
}

func TestEndedSessionIsRefused(t *testing.T) {
	f := newGatewayFixture(t)
	s := f.reactionSession(t)
	_, err := f.store.FinishSession(context.Background(), s.ID, models.SessionOutcome{WinnerID: &s.Partner1ID, EndedAt: time.Now()})
	require.NoError(t, err)

	c := f.dial(t, s.Partner2ID, &s.ID)
	ev := readUntil(t, c, game.EventError)
	assert.Contains(t, string(ev.Payload), "session already ended")
	expectClose(t, c, SessionEndedError)
}

func TestBadTokenIsRefused(t *testing.T) {
	f := newGatewayFixture(t)
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=garbage"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	expectClose(t, c, InvalidAuthTokenError)
}

func TestPingPong(t *testing.T) {
	f := newGatewayFixture(t)
	c := f.dial(t, uuid.New(), nil)

	send(t, c, "ping", nil)
	readUntil(t, c, "pong")
}

func TestReactionOverWebsocket(t *testing.T) {
	f := newGatewayFixture(t)
	s := f.reactionSession(t)

	a := f.dial(t, s.Partner1ID, &s.ID)
	b := f.dial(t, s.Partner2ID, &s.ID)

	readUntil(t, a, game.EventStart)
	readUntil(t, b, game.EventStart)

	send(t, b, game.ClientReact, nil)

	for _, c := range []*websocket.Conn{a, b} {
		ev := readUntil(t, c, game.EventResult)
		var res game.ResultPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &res))
		assert.Equal(t, s.Partner2ID, res.WinnerID)
		readUntil(t, c, game.EventHistoryAdded)
	}

	send(t, a, game.ClientChoice, map[string]string{"action": "dance"})
	ev := readUntil(t, a, game.EventError)
	assert.Contains(t, string(ev.Payload), "invalid payload")
}

func TestHealthz(t *testing.T) {
	f := newGatewayFixture(t)
	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "abc", extractCookieToken("theme=dark; auth_token=abc; lang=en", "auth_token"))
	assert.Equal(t, "abc", extractCookieToken("auth_token=abc", "auth_token"))
	assert.Empty(t, extractCookieToken("x_auth_token=abc", "auth_token"))
	assert.Empty(t, extractCookieToken("", "auth_token"))
}
