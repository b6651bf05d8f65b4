package handlers

import (
	"errors"

	"github.com/coder/websocket"

	"github.com/ARTFROST1/DuoLoveCursor/internal/room"
)

// Custom websocket close codes for the session endpoint.
const (
	BadSubprotocolError     = 3000 // client did not speak the duo subprotocol
	InvalidAuthTokenError   = 3001
	InvalidSessionIDError   = 3002 // sessionId query parameter is not a UUID
	SessionNotFoundError    = 3003
	InviteNotAcceptedError  = 3004
	NotAParticipantError    = 3005
	UnsupportedGameError    = 3006
	ReplacedConnectionError = 3007 // the same participant connected again
	SessionEndedError       = 3008
)

// admissionCloseCode maps a room admission failure to its close code.
func admissionCloseCode(err error) websocket.StatusCode {
	switch {
	case errors.Is(err, room.ErrSessionNotFound):
		return SessionNotFoundError
	case errors.Is(err, room.ErrInviteNotAccepted):
		return InviteNotAcceptedError
	case errors.Is(err, room.ErrNotAParticipant):
		return NotAParticipantError
	case errors.Is(err, room.ErrUnsupportedGame):
		return UnsupportedGameError
	case errors.Is(err, room.ErrSessionEnded):
		return SessionEndedError
	}
	return websocket.StatusInternalError
}
