package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/domain"
	"github.com/Tyrowin/roomchat/internal/log"
)

// maxCreateRoomBody caps the create-room request body.
const maxCreateRoomBody = 4 << 10

// WebSocketHandler upgrades GET /ws requests. When a roomId query parameter
// is present the room is checked first so that a missing or full room is
// refused with a plain HTTP status instead of an upgraded socket.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	if roomID := r.URL.Query().Get("roomId"); roomID != "" {
		if err := s.rooms.Admit(r.Context(), roomID); err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, domain.ErrRoomNotFound):
				status = http.StatusNotFound
			case errors.Is(err, domain.ErrRoomFull):
				status = http.StatusServiceUnavailable
			default:
				log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Msg("admission check failed")
			}
			http.Error(w, domain.UserMessage(err), status)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.L().Warn().Err(err).Str(log.FieldRemoteAddr, r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	if !s.hub.Register(client) {
		_ = conn.Close()
	}
}

// CreateRoomHandler handles POST /api/create-room with an optional
// {"name": ...} body and answers {"roomId", "name"}.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createRoomRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxCreateRoomBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	room, err := s.rooms.Create(r.Context(), req.Name)
	if err != nil {
		log.L().Error().Err(err).Msg("failed to create room")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create room"})
		return
	}

	writeJSON(w, http.StatusOK, createRoomResponse{RoomID: room.ID, Name: room.Name})
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Roomchat server is running!")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Warn().Err(err).Msg("error writing JSON response")
	}
}
