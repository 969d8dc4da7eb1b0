package securedm

import (
	"context"
)

// Watch returns a channel that receives messages as they arrive in the room.
// The channel is not closed when the context is cancelled; use a select
// on ctx.Done() to detect cancellation.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
//	defer cancel()
//
//	ch := room.Watch(ctx)
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case msg := <-ch:
//	        fmt.Printf("%s: %s\n", msg.SenderID, msg.Text)
//	    }
//	}
func (r *Room) Watch(ctx context.Context) <-chan *Message {
	ch := make(chan *Message, 16)

	// Subscribe with callback that sends to channel
	unsubscribe := r.client.subs.subscribe(r.id, func(msg *Message) {
		select {
		case ch <- msg:
		default:
			// Buffer full, drop
		}
	})

	// Cleanup goroutine: unsubscribe when context is cancelled.
	// We intentionally do not close(ch) to avoid a race where an
	// in-flight callback tries to send after close.
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch
}

// WatchFunc calls fn for each message as they arrive until the context is
// cancelled. This is a convenience wrapper around Watch for simpler use
// cases.
//
// Example:
//
//	room.WatchFunc(ctx, func(msg *securedm.Message) {
//	    fmt.Printf("%s: %s\n", msg.SenderID, msg.Text)
//	})
func (r *Room) WatchFunc(ctx context.Context, fn func(*Message)) {
	messages := r.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-messages:
			if msg != nil {
				fn(msg)
			}
		}
	}
}

// WaitForMessage waits for a message matching the given criteria. It starts
// watching before checking history, so a message arriving mid-call cannot
// be missed.
func (r *Room) WaitForMessage(ctx context.Context, opts ...WaitOption) (*Message, error) {
	cfg := &waitConfig{
		timeout: defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	// 1. Start watching FIRST to avoid race condition
	messages := r.Watch(ctx)

	// 2. Check existing messages (handles already-arrived case)
	existing, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range existing {
		if cfg.Matches(m) {
			return m, nil
		}
	}

	// 3. Watch for new messages
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-messages:
			if msg != nil && cfg.Matches(msg) {
				return msg, nil
			}
		}
	}
}
