// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// roomSummary is the public listing view of a room: seats without hands.
type roomSummary struct {
	RoomID  string        `json:"roomId"`
	Status  string        `json:"status"`
	HostID  string        `json:"hostId,omitempty"`
	Players []seatSummary `json:"players"`
}

type seatSummary struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

// CreateRoomHandler creates a fresh lobby room and returns its id. The
// creator still has to join over the WebSocket to take the host seat.
func CreateRoomHandler(logger *logrus.Logger, srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rm := srv.Rooms.Create()
		logger.WithField("room", rm.ID).Info("Room created")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"roomId": rm.ID.String()})
	}
}

// ListRoomsHandler returns a summary of every active room.
func ListRoomsHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rooms := srv.Rooms.List()
		out := make([]roomSummary, 0, len(rooms))
		for _, rm := range rooms {
			rm.Mu.Lock()
			out = append(out, summarizeRoomLocked(rm))
			rm.Mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"rooms": out})
	}
}
