package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/log"
	"github.com/Tyrowin/roomchat/internal/registry"
)

// Server ties the HTTP listener, the WebSocket hub, and the room directory
// together.
type Server struct {
	cfg      Config
	rooms    Rooms
	hub      *Hub
	upgrader websocket.Upgrader
	http     *http.Server
}

// New builds a Server. Call Start to run the hub, then ListenAndServe.
func New(cfg Config, rooms Rooms, engine *broadcast.Engine, reg *registry.Registry) *Server {
	cfg = cfg.Sanitize()
	origins := newOriginPolicy(cfg.AllowedOrigins)

	s := &Server{
		cfg:   cfg,
		rooms: rooms,
		hub:   NewHub(rooms, engine, reg),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
	s.http = CreateServer(cfg.Addr, s.routes())
	return s
}

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub loop in a separate goroutine.
func (s *Server) Start() {
	go s.hub.Run()
	log.L().Info().Msg("hub started and ready to manage websocket connections")
}

// ListenAndServe blocks serving HTTP until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) ListenAndServe() error {
	log.L().Info().Str("addr", s.http.Addr).Msg("server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then closes every WebSocket and waits
// for the hub to drain.
func (s *Server) Shutdown() error {
	log.L().Info().Msg("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	httpErr := s.http.Shutdown(ctx)
	if httpErr != nil {
		log.L().Error().Err(httpErr).Msg("HTTP server shutdown error")
	}

	hubErr := s.hub.Shutdown(s.cfg.ShutdownTimeout)
	return errors.Join(httpErr, hubErr)
}
