package server

import "net/http"

// routes configures the application ServeMux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/api/create-room", s.CreateRoomHandler)
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
