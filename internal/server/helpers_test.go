package server_test

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/domain"
	"github.com/Tyrowin/roomchat/internal/log"
	"github.com/Tyrowin/roomchat/internal/moderation"
	"github.com/Tyrowin/roomchat/internal/registry"
	"github.com/Tyrowin/roomchat/internal/room"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

const testOrigin = "http://localhost:8080"

func init() {
	log.SetOutput(zerolog.Nop())
}

// testStack is a full server wired to an in-memory store.
type testStack struct {
	srv      *server.Server
	dir      *room.Directory
	registry *registry.Registry
	http     *httptest.Server
	wsURL    string
}

func newTestStack(t *testing.T, customize func(cfg *server.Config)) *testStack {
	t.Helper()
	return newTestStackWithRooms(t, customize, nil)
}

// newTestStackWithRooms lets wrap interpose on the directory as the server
// sees it.
func newTestStackWithRooms(t *testing.T, customize func(cfg *server.Config), wrap func(server.Rooms) server.Rooms) *testStack {
	t.Helper()

	cfg := server.DefaultConfig()
	cfg.AllowedOrigins = []string{testOrigin}
	cfg.ShutdownTimeout = 2 * time.Second
	// Generous budget so scenario tests are not throttled.
	cfg.RateLimit = server.RateLimitConfig{Burst: 100, RefillInterval: time.Second}
	if customize != nil {
		customize(&cfg)
	}

	engine := broadcast.New()
	reg := registry.New()
	dir := room.New(store.NewMemory(), moderation.New(moderation.DefaultTerms, moderation.DefaultMask), engine, room.DefaultOptions())
	var rooms server.Rooms = dir
	if wrap != nil {
		rooms = wrap(dir)
	}
	srv := server.New(cfg, rooms, engine, reg)
	srv.Start()

	ts := httptest.NewServer(srv.Handler())
	stack := &testStack{
		srv:      srv,
		dir:      dir,
		registry: reg,
		http:     ts,
		wsURL:    "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}

	t.Cleanup(func() {
		ts.Close()
		if err := srv.Shutdown(); err != nil {
			t.Errorf("server shutdown: %v", err)
		}
		_ = dir.Shutdown(2 * time.Second)
	})
	return stack
}

// createRoom calls the HTTP API and returns the new room id.
func (s *testStack) createRoom(t *testing.T, name string) string {
	t.Helper()

	body := strings.NewReader(`{"name":"` + name + `"}`)
	resp, err := http.Post(s.http.URL+"/api/create-room", "application/json", body)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create room: status %d", resp.StatusCode)
	}
	var out struct {
		RoomID string `json:"roomId"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode create room response: %v", err)
	}
	return out.RoomID
}

// dial opens a socket with an allowed Origin header. query may be empty.
func (s *testStack) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()

	conn, resp, err := dialWithOrigin(s.wsURL+query, testOrigin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func dialWithOrigin(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return dialer.Dial(url, headers)
}

// frame is a decoded server event.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	raw, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode frame %q: %v", raw, err)
	}
	return f
}

// expectEvent reads the next frame and checks its name before decoding the
// payload into dst.
func expectEvent(t *testing.T, conn *websocket.Conn, event string, dst any) {
	t.Helper()

	f := readFrame(t, conn)
	if f.Event != event {
		t.Fatalf("expected %s event, got %s: %s", event, f.Event, f.Data)
	}
	if dst == nil {
		return
	}
	if err := json.Unmarshal(f.Data, dst); err != nil {
		t.Fatalf("decode %s payload: %v", event, err)
	}
}

func expectError(t *testing.T, conn *websocket.Conn, message string) {
	t.Helper()

	var payload domain.ErrorPayload
	expectEvent(t, conn, domain.EventError, &payload)
	if payload.Message != message {
		t.Fatalf("expected error %q, got %q", message, payload.Message)
	}
}

// expectSilence asserts no frame arrives within timeout. The connection is
// unusable for reads afterwards.
func expectSilence(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got %s", raw)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

// join sends join-room and consumes the room-history reply.
func join(t *testing.T, conn *websocket.Conn, roomID, nickname string) domain.RoomHistory {
	t.Helper()

	emit(t, conn, domain.EventJoinRoom, domain.JoinRoomRequest{RoomID: roomID, Nickname: nickname})
	var history domain.RoomHistory
	expectEvent(t, conn, domain.EventRoomHistory, &history)
	return history
}

func send(t *testing.T, conn *websocket.Conn, roomID, content string) {
	t.Helper()
	emit(t, conn, domain.EventSendMessage, domain.SendMessageRequest{RoomID: roomID, Content: content, Type: domain.KindText})
}

// waitFor skips frames until one named event arrives.
func waitFor(t *testing.T, conn *websocket.Conn, event string, dst any) {
	t.Helper()

	for i := 0; i < 200; i++ {
		f := readFrame(t, conn)
		if f.Event != event {
			continue
		}
		if dst != nil {
			if err := json.Unmarshal(f.Data, dst); err != nil {
				t.Fatalf("decode %s payload: %v", event, err)
			}
		}
		return
	}
	t.Fatalf("no %s event within 200 frames", event)
}
