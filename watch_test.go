package securedm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chirpsocial/securedm-go/internal/realtime"
)

func TestWatch_DeliversPushedMessages(t *testing.T) {
	fs, srv := newFakeServer(t)
	client, room, bobKeys := openAliceRoom(t, fs, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := room.Watch(ctx)

	env := fs.appendFromPeer(t, room.ID(), "bob", "ping",
		bobKeys.PublicKeyB64, client.Identity().PublicKey())
	client.handleTransportEvent(context.Background(), &realtime.Event{
		RoomID:   room.ID(),
		Envelope: &env,
	})

	select {
	case msg := <-ch:
		if msg.Text != "ping" || msg.SenderID != "bob" {
			t.Errorf("watched message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered to watcher")
	}
}

func TestWaitForMessage_FindsExisting(t *testing.T) {
	fs, srv := newFakeServer(t)
	client, room, bobKeys := openAliceRoom(t, fs, srv)

	fs.appendFromPeer(t, room.ID(), "bob", "already here",
		bobKeys.PublicKeyB64, client.Identity().PublicKey())

	msg, err := room.WaitForMessage(context.Background(),
		WithText("already here"), WithWaitTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("WaitForMessage failed: %v", err)
	}
	if msg.SenderID != "bob" {
		t.Errorf("SenderID = %q", msg.SenderID)
	}
}

func TestWaitForMessage_MatchesLiveArrival(t *testing.T) {
	fs, srv := newFakeServer(t)
	client, room, bobKeys := openAliceRoom(t, fs, srv)

	done := make(chan struct{})
	var got *Message
	var waitErr error
	go func() {
		defer close(done)
		got, waitErr = room.WaitForMessage(context.Background(),
			WithSender("bob"), WithWaitTimeout(5*time.Second))
	}()

	// Give the waiter time to subscribe before pushing.
	time.Sleep(50 * time.Millisecond)
	env := fs.appendFromPeer(t, room.ID(), "bob", "late arrival",
		bobKeys.PublicKeyB64, client.Identity().PublicKey())
	client.handleTransportEvent(context.Background(), &realtime.Event{
		RoomID:   room.ID(),
		Envelope: &env,
	})

	<-done
	if waitErr != nil {
		t.Fatalf("WaitForMessage failed: %v", waitErr)
	}
	if got.Text != "late arrival" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestWaitForMessage_Timeout(t *testing.T) {
	fs, srv := newFakeServer(t)
	_, room, _ := openAliceRoom(t, fs, srv)

	_, err := room.WaitForMessage(context.Background(),
		WithText("never"), WithWaitTimeout(100*time.Millisecond))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForMessage error = %v, want DeadlineExceeded", err)
	}
}

func TestWatchRooms_FansAcrossRooms(t *testing.T) {
	fs, srv := newFakeServer(t)
	client, room, bobKeys := openAliceRoom(t, fs, srv)

	carolKeys := fs.seedPeer(t, "carol")
	room2, err := client.OpenRoom(context.Background(), "carol")
	if err != nil {
		t.Fatalf("OpenRoom(carol) failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := client.WatchRooms(ctx, room, room2)

	envBob := fs.appendFromPeer(t, room.ID(), "bob", "from bob",
		bobKeys.PublicKeyB64, client.Identity().PublicKey())
	envCarol := fs.appendFromPeer(t, room2.ID(), "carol", "from carol",
		carolKeys.PublicKeyB64, client.Identity().PublicKey())
	client.handleTransportEvent(context.Background(), &realtime.Event{RoomID: room.ID(), Envelope: &envBob})
	client.handleTransportEvent(context.Background(), &realtime.Event{RoomID: room2.ID(), Envelope: &envCarol})

	seen := make(map[string]string)
	for i := 0; i < 2; i++ {
		select {
		case event := <-ch:
			seen[event.Room.ID()] = event.Message.Text
		case <-time.After(time.Second):
			t.Fatalf("received %d events, want 2", i)
		}
	}
	if seen[room.ID()] != "from bob" || seen[room2.ID()] != "from carol" {
		t.Errorf("events = %v", seen)
	}
}

func TestMonitorRooms_EmitsToAllCallbacks(t *testing.T) {
	fs, srv := newFakeServer(t)
	client, room, bobKeys := openAliceRoom(t, fs, srv)

	monitor := client.MonitorRooms(room)
	defer monitor.Unsubscribe()

	var mu sync.Mutex
	counts := make(map[string]int)
	fired := make(chan struct{}, 4)
	for _, name := range []string{"a", "b"} {
		name := name
		monitor.OnMessage(func(r *Room, msg *Message) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
			fired <- struct{}{}
		})
	}

	env := fs.appendFromPeer(t, room.ID(), "bob", "broadcast",
		bobKeys.PublicKeyB64, client.Identity().PublicKey())
	client.handleTransportEvent(context.Background(), &realtime.Event{
		RoomID:   room.ID(),
		Envelope: &env,
	})

	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatalf("callback %d never fired", i)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if counts["a"] != 1 || counts["b"] != 1 {
		t.Errorf("callback counts = %v", counts)
	}
}
