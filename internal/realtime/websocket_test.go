package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chirpsocial/securedm-go/internal/api"
)

// wsTestServer is a minimal room hub: it records join frames and lets the
// test push message frames to the connected client.
type wsTestServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	joins  []string
	frames []frame
}

func newWSTestServer(t *testing.T) (*wsTestServer, *api.Client) {
	t.Helper()
	ws := &wsTestServer{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws", ws.handle)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	apiClient, err := api.New("test-token", api.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}
	return ws, apiClient
}

func (s *wsTestServer) handle(w http.ResponseWriter, r *http.Request) {
	if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
		s.t.Errorf("ws Authorization = %q", got)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		s.mu.Lock()
		s.frames = append(s.frames, f)
		if f.Type == "join" {
			s.joins = append(s.joins, f.RoomID)
		}
		s.mu.Unlock()
	}
}

func (s *wsTestServer) push(t *testing.T, f *frame) {
	t.Helper()
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		t.Fatal("no client connected")
	}
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("push frame: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWebSocketStrategy_JoinAndReceive(t *testing.T) {
	server, apiClient := newWSTestServer(t)

	strategy := NewWebSocketStrategy(Config{APIClient: apiClient})

	var mu sync.Mutex
	var received []*Event
	handler := func(ctx context.Context, event *Event) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := strategy.JoinRoom("room-1"); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if err := strategy.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer strategy.Stop()

	select {
	case <-strategy.Connected():
	case <-time.After(2 * time.Second):
		t.Fatalf("strategy never connected: %v", strategy.LastError())
	}

	// The pre-joined room is announced on connect.
	waitFor(t, time.Second, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.joins) == 1 && server.joins[0] == "room-1"
	})

	server.push(t, &frame{
		Type:   "message",
		RoomID: "room-1",
		Envelope: &api.Envelope{
			ID:         "env-1",
			ChatRoomID: "room-1",
			SenderID:   "alice",
		},
	})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if received[0].RoomID != "room-1" || received[0].Envelope.ID != "env-1" {
		t.Errorf("received event = %+v", received[0])
	}
}

func TestWebSocketStrategy_IgnoresUnjoinedRooms(t *testing.T) {
	server, apiClient := newWSTestServer(t)
	strategy := NewWebSocketStrategy(Config{APIClient: apiClient})

	var mu sync.Mutex
	var received []*Event
	handler := func(ctx context.Context, event *Event) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strategy.JoinRoom("room-1")
	if err := strategy.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer strategy.Stop()

	<-strategy.Connected()

	server.push(t, &frame{
		Type:     "message",
		RoomID:   "other-room",
		Envelope: &api.Envelope{ID: "stray"},
	})
	server.push(t, &frame{
		Type:     "message",
		RoomID:   "room-1",
		Envelope: &api.Envelope{ID: "wanted"},
	})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if received[0].Envelope.ID != "wanted" {
		t.Errorf("received %q, want %q", received[0].Envelope.ID, "wanted")
	}
}

func TestWebSocketStrategy_PublishSendsMessageFrame(t *testing.T) {
	server, apiClient := newWSTestServer(t)
	strategy := NewWebSocketStrategy(Config{APIClient: apiClient})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strategy.JoinRoom("room-1")
	if err := strategy.Start(ctx, func(ctx context.Context, event *Event) error { return nil }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer strategy.Stop()

	<-strategy.Connected()

	env := &api.Envelope{ID: "env-out", ChatRoomID: "room-1", SenderID: "alice"}
	if err := strategy.Publish(ctx, "room-1", env); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		for _, f := range server.frames {
			if f.Type == "message" && f.Envelope != nil && f.Envelope.ID == "env-out" {
				return true
			}
		}
		return false
	})
}

func TestWebSocketStrategy_PublishWhenDisconnected(t *testing.T) {
	apiClient, err := api.New("tok", api.WithBaseURL("http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}
	strategy := NewWebSocketStrategy(Config{APIClient: apiClient})

	if err := strategy.Publish(context.Background(), "room-1", &api.Envelope{ID: "x"}); err == nil {
		t.Error("Publish on a disconnected strategy should fail")
	}
}
