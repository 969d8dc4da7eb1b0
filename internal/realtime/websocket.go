package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chirpsocial/securedm-go/internal/api"
)

const (
	wsReconnectInterval    = 5 * time.Second
	wsMaxReconnectAttempts = 10
	wsWriteTimeout         = 10 * time.Second
)

// frame is the JSON message exchanged over the WebSocket channel.
type frame struct {
	Type     string        `json:"type"` // "join", "leave" or "message"
	RoomID   string        `json:"roomId,omitempty"`
	Envelope *api.Envelope `json:"envelope,omitempty"`
}

// WebSocketStrategy implements live delivery over a single WebSocket
// connection carrying all of the client's rooms.
type WebSocketStrategy struct {
	apiClient *api.Client
	dialer    *websocket.Dialer

	mu          sync.RWMutex
	rooms       map[string]struct{}
	handler     EventHandler
	conn        *websocket.Conn
	writeMu     sync.Mutex
	cancel      context.CancelFunc
	started     bool
	attempts    int
	onReconnect func(ctx context.Context)

	reconnectWait time.Duration
	connected     chan struct{}
	connectedOnce sync.Once
	lastError     error
}

// NewWebSocketStrategy creates a new WebSocket strategy.
func NewWebSocketStrategy(cfg Config) *WebSocketStrategy {
	return &WebSocketStrategy{
		apiClient:     cfg.APIClient,
		dialer:        websocket.DefaultDialer,
		rooms:         make(map[string]struct{}),
		reconnectWait: wsReconnectInterval,
		connected:     make(chan struct{}),
	}
}

// Name returns the strategy name.
func (s *WebSocketStrategy) Name() string {
	return "websocket"
}

// Connected returns a channel that's closed once the first connection is
// established.
func (s *WebSocketStrategy) Connected() <-chan struct{} {
	return s.connected
}

// LastError returns the last connection error, if any.
func (s *WebSocketStrategy) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// OnReconnect sets the reconnection callback.
func (s *WebSocketStrategy) OnReconnect(fn func(ctx context.Context)) {
	s.mu.Lock()
	s.onReconnect = fn
	s.mu.Unlock()
}

// Start begins listening for envelopes.
func (s *WebSocketStrategy) Start(ctx context.Context, handler EventHandler) error {
	s.mu.Lock()
	s.handler = handler
	s.started = true
	s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	go s.connectLoop(ctx)
	return nil
}

// Stop gracefully shuts down the strategy.
func (s *WebSocketStrategy) Stop() error {
	s.mu.Lock()
	s.started = false
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if conn != nil {
		conn.Close()
	}
	return nil
}

// JoinRoom subscribes to a room, sending a join frame if connected. Rooms
// are also re-joined on every reconnection.
func (s *WebSocketStrategy) JoinRoom(roomID string) error {
	s.mu.Lock()
	if _, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.rooms[roomID] = struct{}{}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		// Not connected yet; the join frame goes out on connect.
		return nil
	}
	return s.writeFrame(conn, &frame{Type: "join", RoomID: roomID})
}

// LeaveRoom unsubscribes from a room.
func (s *WebSocketStrategy) LeaveRoom(roomID string) error {
	s.mu.Lock()
	delete(s.rooms, roomID)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return s.writeFrame(conn, &frame{Type: "leave", RoomID: roomID})
}

// Publish broadcasts an envelope to a room's other members.
func (s *WebSocketStrategy) Publish(ctx context.Context, roomID string, env *api.Envelope) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("websocket: not connected")
	}
	return s.writeFrame(conn, &frame{Type: "message", RoomID: roomID, Envelope: env})
}

func (s *WebSocketStrategy) writeFrame(conn *websocket.Conn, f *frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(f)
}

func (s *WebSocketStrategy) connectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := s.connect(ctx)
		if err == nil {
			// Clean shutdown.
			return
		}

		s.mu.Lock()
		s.lastError = err
		s.attempts++
		attempts := s.attempts
		s.mu.Unlock()

		if attempts >= wsMaxReconnectAttempts {
			return
		}

		wait := s.reconnectWait * time.Duration(1<<(attempts-1))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// connect dials the event stream, re-joins all rooms, and runs the read
// loop until the connection drops or the context is cancelled.
func (s *WebSocketStrategy) connect(ctx context.Context) error {
	wsURL, err := s.apiClient.EventStreamURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiClient.Token())

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.attempts = 0
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	onReconnect := s.onReconnect
	s.mu.Unlock()

	for _, id := range rooms {
		if err := s.writeFrame(conn, &frame{Type: "join", RoomID: id}); err != nil {
			s.detach(conn)
			return err
		}
	}

	s.connectedOnce.Do(func() {
		close(s.connected)
	})

	if onReconnect != nil {
		go onReconnect(ctx)
	}

	// Close the connection when the context is cancelled so the blocked
	// ReadJSON below returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			s.detach(conn)
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if f.Type != "message" || f.Envelope == nil {
			continue
		}

		s.mu.RLock()
		_, joined := s.rooms[f.RoomID]
		handler := s.handler
		s.mu.RUnlock()

		if joined && handler != nil {
			handler(ctx, &Event{RoomID: f.RoomID, Envelope: f.Envelope})
		}
	}
}

func (s *WebSocketStrategy) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}
