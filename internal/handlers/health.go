package handlers

import (
	"encoding/json"
	"net/http"
)

// RoomCounter reports how many session rooms are live.
type RoomCounter interface {
	Rooms() int
}

// HealthHandler answers GET /healthz.
func HealthHandler(rooms RoomCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"rooms":  rooms.Rooms(),
		})
	}
}
