package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/auth"
	"github.com/ARTFROST1/DuoLoveCursor/internal/game"
	"github.com/ARTFROST1/DuoLoveCursor/internal/middleware"
	"github.com/ARTFROST1/DuoLoveCursor/internal/room"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "duo"

const outChanSize = 32

// inboundMessage is one client frame.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn is one websocket client as seen by the room manager.
type wsConn struct {
	id       uuid.UUID
	userID   uuid.UUID
	ws       *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	OutChan  chan game.Event
	replaced atomic.Bool
	logger   *logrus.Logger
}

func (c *wsConn) ID() uuid.UUID { return c.id }
func (c *wsConn) UserID() uuid.UUID { return c.userID }

// Send pushes an event onto OutChan without blocking. Events for a closed or
// saturated connection are dropped.
func (c *wsConn) Send(ev game.Event) {
	select {
	case <-c.ctx.Done():
		return
	default:
	}
	select {
	case c.OutChan <- ev:
	default:
		c.logger.Warnf("OutChan for user %s full. Dropped message type '%s'.", c.userID, ev.Type)
	}
}

// Close is called by the manager when a newer connection replaces this one.
func (c *wsConn) Close() {
	c.replaced.Store(true)
	go func() {
		_ = c.ws.Close(ReplacedConnectionError, "replaced by a newer connection")
		c.cancel()
	}()
}

// SessionWSHandler serves GET /ws. The user comes from the auth token; the
// optional sessionId query parameter selects the game session to join.
func SessionWSHandler(logger *logrus.Logger, mgr *room.Manager, signer *auth.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the duo subprotocol")
			return
		}

		userID, err := signer.AuthenticateJWT(requestToken(r))
		if err != nil {
			logger.Warnf("websocket auth failed from %s: %v", r.RemoteAddr, err)
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}

		var sessionID *uuid.UUID
		if raw := r.URL.Query().Get("sessionId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				c.Close(InvalidSessionIDError, "invalid sessionId")
				return
			}
			sessionID = &id
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := &wsConn{
			id:      uuid.New(),
			userID:  userID,
			ws:      c,
			ctx:     ctx,
			cancel:  cancel,
			OutChan: make(chan game.Event, outChanSize),
			logger:  logger,
		}

		if err := mgr.Admit(ctx, conn, sessionID); err != nil {
			logger.WithFields(logrus.Fields{
				"user_id":    userID,
				"session_id": sessionID,
			}).Infof("admission refused: %v", err)
			writeEvent(ctx, c, game.ErrorEvent(err.Error()))
			c.Close(admissionCloseCode(err), err.Error())
			return
		}
		middleware.LogWebSocketConnect(logger, r, userID, sessionID)

		go writePump(ctx, c, conn, logger)
		readErr := readPump(ctx, c, conn, mgr, sessionID, logger)

		mgr.Leave(conn, sessionID)
		middleware.LogWebSocketDisconnect(logger, r, userID, readErr)
		if !conn.replaced.Load() {
			c.Close(websocket.StatusNormalClosure, "")
		}
	}
}

// readPump forwards client frames to the room manager until the connection
// ends. It answers ping frames itself.
func readPump(ctx context.Context, c *websocket.Conn, conn *wsConn, mgr *room.Manager, sessionID *uuid.UUID, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			if conn.replaced.Load() {
				return nil
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Warnf("Error reading from WebSocket for user %s: %v (Status: %d)", conn.userID, err, status)
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from user %s. Ignoring.", msgType, conn.userID)
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			conn.Send(game.ErrorEvent("invalid message format"))
			continue
		}

		if msg.Type == "ping" {
			conn.Send(game.Event{Type: "pong"})
			continue
		}
		if sessionID == nil {
			continue
		}
		mgr.Dispatch(*sessionID, conn.userID, msg.Type, msg.Payload)
	}
}

// writePump drains OutChan to the socket and pings the client every 30s.
func writePump(ctx context.Context, c *websocket.Conn, conn *wsConn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			if err := writeEvent(ctx, c, ev); err != nil {
				logger.Warnf("Failed to write to websocket for user %v: %v", conn.userID, err)
				conn.cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to send ping to user %v: %v. Assuming disconnect.", conn.userID, err)
				conn.cancel()
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, c *websocket.Conn, ev game.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}
