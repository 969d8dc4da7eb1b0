package securedm

import (
	"context"
	"sync"
)

// Session is a live, ordered view of one conversation. Starting a session
// subscribes to the room's live channel first and then merges in history, so
// messages arriving during the fetch are neither lost nor duplicated. New
// messages are appended in arrival order without re-sorting the past.
type Session struct {
	room *Room

	mu     sync.RWMutex
	order  []string            // envelope IDs in display order
	byID   map[string]*Message // envelope ID -> message
	unread int
	unsub  func()
	closed bool
}

// StartSession opens a session on the room: live subscription first, then a
// history merge. Messages the tracker already marked read do not count as
// unread.
func (r *Room) StartSession(ctx context.Context) (*Session, error) {
	c := r.client
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	s := &Session{
		room: r,
		byID: make(map[string]*Message),
	}

	// Subscribe before fetching so nothing slips between the two.
	s.unsub = c.subs.subscribe(r.id, s.append)

	history, err := r.History(ctx)
	if err != nil {
		s.unsub()
		return nil, err
	}
	for _, msg := range history {
		s.append(msg)
	}

	return s, nil
}

// append adds a message to the session, suppressing duplicates by envelope
// ID. A duplicate can still carry a fresher read flag, which is absorbed.
func (s *Session) append(msg *Message) {
	if msg == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if existing, ok := s.byID[msg.ID]; ok {
		if msg.IsRead && !existing.IsRead {
			existing.IsRead = true
			if existing.SenderID != s.room.client.self.ID && s.unread > 0 {
				s.unread--
			}
		}
		return
	}

	// Store a private copy; the original pointer fans out to every
	// subscriber.
	own := *msg
	s.byID[own.ID] = &own
	s.order = append(s.order, own.ID)
	if !own.IsRead && own.SenderID != s.room.client.self.ID {
		s.unread++
	}
}

// Messages returns the session's messages in display order.
func (s *Session) Messages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Message, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.byID[id])
	}
	return result
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Unread returns the number of peer messages not yet marked read.
func (s *Session) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// MarkVisible reports that the message with the given envelope ID became
// visible, driving the room's read receipt exactly once. The unread counter
// decrements only when the message actually flips from unread to read.
func (s *Session) MarkVisible(ctx context.Context, messageID string) error {
	s.mu.RLock()
	msg := s.byID[messageID]
	s.mu.RUnlock()
	if msg == nil {
		return ErrMessageNotFound
	}

	wasRead := msg.IsRead
	if err := s.room.MarkRead(ctx, msg); err != nil {
		return err
	}

	if msg.IsRead && !wasRead {
		s.mu.Lock()
		if s.unread > 0 {
			s.unread--
		}
		s.mu.Unlock()
	}
	return nil
}

// Close detaches the session from the live channel. The accumulated
// messages remain readable.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsub
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
