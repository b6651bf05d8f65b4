package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LogMiddleware logs method, path, status and duration of every request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("HTTP Request")
		})
	}
}

// LogWebSocketConnect logs an accepted and authenticated websocket client.
func LogWebSocketConnect(logger *logrus.Logger, r *http.Request, userID uuid.UUID, sessionID *uuid.UUID) {
	fields := logrus.Fields{
		"remote":  r.RemoteAddr,
		"path":    r.URL.Path,
		"user_id": userID,
	}
	if sessionID != nil {
		fields["session_id"] = *sessionID
	}
	logger.WithFields(fields).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a websocket client going away.
func LogWebSocketDisconnect(logger *logrus.Logger, r *http.Request, userID uuid.UUID, err error) {
	fields := logrus.Fields{
		"remote":  r.RemoteAddr,
		"path":    r.URL.Path,
		"user_id": userID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
