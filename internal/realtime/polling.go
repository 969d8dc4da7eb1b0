package realtime

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/chirpsocial/securedm-go/internal/api"
)

// PollingStrategy implements delivery by polling each room's sync status
// and fetching history only when the server-side hash changes.
type PollingStrategy struct {
	apiClient *api.Client
	rooms     map[string]*polledRoom
	handler   EventHandler
	cancel    context.CancelFunc
	mu        sync.RWMutex
	started   bool

	initialInterval   time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitterFactor      float64
}

type polledRoom struct {
	id       string
	lastHash string
	seen     map[string]struct{}
	interval time.Duration
}

// NewPollingStrategy creates a new polling strategy.
func NewPollingStrategy(cfg Config) *PollingStrategy {
	p := &PollingStrategy{
		apiClient:         cfg.APIClient,
		rooms:             make(map[string]*polledRoom),
		initialInterval:   cfg.PollingInitialInterval,
		maxBackoff:        cfg.PollingMaxBackoff,
		backoffMultiplier: cfg.PollingBackoffMultiplier,
		jitterFactor:      cfg.PollingJitterFactor,
	}
	if p.initialInterval <= 0 {
		p.initialInterval = DefaultPollingInitialInterval
	}
	if p.maxBackoff <= 0 {
		p.maxBackoff = DefaultPollingMaxBackoff
	}
	if p.backoffMultiplier <= 0 {
		p.backoffMultiplier = DefaultPollingBackoffMultiplier
	}
	if p.jitterFactor <= 0 {
		p.jitterFactor = DefaultPollingJitterFactor
	}
	return p
}

// Name returns the strategy name.
func (p *PollingStrategy) Name() string {
	return "polling"
}

// OnReconnect is a no-op for polling; there is no persistent connection.
func (p *PollingStrategy) OnReconnect(fn func(ctx context.Context)) {}

// Start begins polling joined rooms.
func (p *PollingStrategy) Start(ctx context.Context, handler EventHandler) error {
	p.mu.Lock()
	p.handler = handler
	p.started = true
	p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	go p.pollLoop(ctx)
	return nil
}

// Stop gracefully shuts down the strategy.
func (p *PollingStrategy) Stop() error {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// JoinRoom adds a room to the polling set. Idempotent.
func (p *PollingStrategy) JoinRoom(roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rooms[roomID]; ok {
		return nil
	}
	p.rooms[roomID] = &polledRoom{
		id:       roomID,
		seen:     make(map[string]struct{}),
		interval: p.initialInterval,
	}
	return nil
}

// LeaveRoom removes a room from the polling set.
func (p *PollingStrategy) LeaveRoom(roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rooms, roomID)
	return nil
}

// Publish is a no-op under polling. The envelope is already durably
// persisted by the outbox write; peers discover it on their next poll.
func (p *PollingStrategy) Publish(ctx context.Context, roomID string, env *api.Envelope) error {
	return nil
}

func (p *PollingStrategy) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		minWait := p.pollAll(ctx)
		if minWait <= 0 {
			minWait = p.initialInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(minWait):
		}
	}
}

func (p *PollingStrategy) pollAll(ctx context.Context) time.Duration {
	p.mu.RLock()
	rooms := make([]*polledRoom, 0, len(p.rooms))
	for _, room := range p.rooms {
		rooms = append(rooms, room)
	}
	p.mu.RUnlock()

	if len(rooms) == 0 {
		return p.initialInterval
	}

	for _, room := range rooms {
		p.pollRoom(ctx, room)
	}

	var minWait time.Duration
	for _, room := range rooms {
		wait := p.withJitter(room.interval)
		if minWait == 0 || wait < minWait {
			minWait = wait
		}
	}
	return minWait
}

// pollRoom checks a room's sync status and emits events for unseen
// envelopes. The interval backs off while nothing changes and resets on
// activity.
func (p *PollingStrategy) pollRoom(ctx context.Context, room *polledRoom) {
	status, err := p.apiClient.GetRoomSync(ctx, room.id)
	if err != nil {
		p.backOff(room)
		return
	}

	p.mu.RLock()
	unchanged := status.MessagesHash == room.lastHash && room.lastHash != ""
	p.mu.RUnlock()

	if unchanged {
		p.backOff(room)
		return
	}

	envelopes, err := p.apiClient.GetHistory(ctx, room.id)
	if err != nil {
		p.backOff(room)
		return
	}

	p.mu.Lock()
	room.lastHash = status.MessagesHash
	fresh := make([]*api.Envelope, 0)
	for i := range envelopes {
		env := &envelopes[i]
		if _, ok := room.seen[env.ID]; ok {
			continue
		}
		room.seen[env.ID] = struct{}{}
		fresh = append(fresh, env)
	}
	room.interval = p.initialInterval
	handler := p.handler
	p.mu.Unlock()

	if handler == nil {
		return
	}
	for _, env := range fresh {
		handler(ctx, &Event{RoomID: room.id, Envelope: env})
	}
}

func (p *PollingStrategy) backOff(room *polledRoom) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := time.Duration(float64(room.interval) * p.backoffMultiplier)
	if next > p.maxBackoff {
		next = p.maxBackoff
	}
	room.interval = next
}

func (p *PollingStrategy) withJitter(interval time.Duration) time.Duration {
	if p.jitterFactor <= 0 {
		return interval
	}
	jitter := time.Duration(rand.Float64() * p.jitterFactor * float64(interval))
	return interval + jitter
}
