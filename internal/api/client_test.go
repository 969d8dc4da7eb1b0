package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("test-token", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, srv
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") should return an error")
	}
}

func TestDo_SendsAuthHeader(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(UserInfo{ID: "u1", Username: "alice"})
	}))

	user, err := c.CheckToken(context.Background())
	if err != nil {
		t.Fatalf("CheckToken failed: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
	}
	if user.ID != "u1" || user.Username != "alice" {
		t.Errorf("user = %+v", user)
	}
}

func TestEndpoints_PathsAndMethods(t *testing.T) {
	type call struct{ method, path string }
	var got call

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = call{r.Method, r.URL.Path}
		w.Write([]byte("{}"))
	}))
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
		want call
	}{
		{"RegisterKeys", func() error {
			return c.RegisterKeys(ctx, &RegisterKeysRequest{PublicKey: "pk"})
		}, call{"POST", "/api/keys"}},
		{"GetOwnKeys", func() error {
			_, err := c.GetOwnKeys(ctx)
			return err
		}, call{"GET", "/api/keys"}},
		{"GetUserKeys", func() error {
			_, err := c.GetUserKeys(ctx, "bob")
			return err
		}, call{"GET", "/api/users/bob/keys"}},
		{"CreateOrGetRoom", func() error {
			_, err := c.CreateOrGetRoom(ctx, "bob")
			return err
		}, call{"POST", "/api/rooms"}},
		{"GetHistory", func() error {
			_, err := c.GetHistory(ctx, "r1")
			return err
		}, call{"GET", "/api/rooms/r1/messages"}},
		{"GetRoomSync", func() error {
			_, err := c.GetRoomSync(ctx, "r1")
			return err
		}, call{"GET", "/api/rooms/r1/sync"}},
		{"AppendEnvelope", func() error {
			_, err := c.AppendEnvelope(ctx, "r1", &Envelope{ID: "e1"})
			return err
		}, call{"POST", "/api/rooms/r1/messages"}},
		{"MarkEnvelopeRead", func() error {
			_, err := c.MarkEnvelopeRead(ctx, "r1", "e1")
			return err
		}, call{"PATCH", "/api/rooms/r1/messages/e1/read"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				// ListRooms and GetHistory decode into slices; "{}" fails
				// for those, so only path/method mismatches are fatal here.
				var netErr *NetworkError
				if errors.As(err, &netErr) {
					t.Fatalf("%s network error: %v", tt.name, err)
				}
			}
			if got != tt.want {
				t.Errorf("%s hit %s %s, want %s %s", tt.name, got.method, got.path, tt.want.method, tt.want.path)
			}
		})
	}
}

func TestDo_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		rt     ResourceType
		target error
	}{
		{"unauthorized", 401, ResourceUnknown, ErrUnauthorized},
		{"room not found", 404, ResourceRoom, ErrRoomNotFound},
		{"message not found", 404, ResourceMessage, ErrMessageNotFound},
		{"user not found", 404, ResourceUser, ErrUserNotFound},
		{"conflict", 409, ResourceUnknown, ErrKeysAlreadyRegistered},
		{"rate limited", 429, ResourceUnknown, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"error": tt.name})
			}))

			err := c.Do(context.Background(), "GET", "/api/anything", nil, nil)
			err = WithResourceType(err, tt.rt)
			if !errors.Is(err, tt.target) {
				t.Errorf("status %d error = %v, want %v", tt.status, err, tt.target)
			}
		})
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c, err := New("tok", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.retry.BaseDelay = time.Millisecond
	c.retry.Jitter = 0

	if err := c.Do(context.Background(), "GET", "/api/server-info", nil, nil); err != nil {
		t.Fatalf("Do failed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad request"})
	}))

	err := c.Do(context.Background(), "GET", "/api/anything", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Fatalf("error = %v, want 400 APIError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestEventStreamURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://api.chirpsocial.net", "wss://api.chirpsocial.net/api/ws"},
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/api/ws"},
	}

	for _, tt := range tests {
		c, err := New("tok", WithBaseURL(tt.base))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		got, err := c.EventStreamURL()
		if err != nil {
			t.Fatalf("EventStreamURL failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("EventStreamURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
