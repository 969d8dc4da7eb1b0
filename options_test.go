package securedm

import (
	"net/http"
	"testing"
	"time"
)

func TestOptions_Defaults(t *testing.T) {
	cfg := &clientConfig{
		baseURL:          defaultBaseURL,
		deliveryStrategy: StrategyWebSocket,
		timeout:          defaultWaitTimeout,
	}

	if cfg.baseURL != "https://api.chirpsocial.net" {
		t.Errorf("default baseURL = %q", cfg.baseURL)
	}
	if cfg.deliveryStrategy != StrategyWebSocket {
		t.Errorf("default strategy = %q", cfg.deliveryStrategy)
	}
	if cfg.timeout != 60*time.Second {
		t.Errorf("default timeout = %v", cfg.timeout)
	}
}

func TestOptions_Apply(t *testing.T) {
	httpClient := &http.Client{}
	syncErrs := func(error) {}
	transportErrs := func(error) {}

	cfg := &clientConfig{}
	opts := []Option{
		WithBaseURL("http://localhost:8080"),
		WithHTTPClient(httpClient),
		WithDeliveryStrategy(StrategyPolling),
		WithTimeout(10 * time.Second),
		WithRetries(5),
		WithRetryOn([]int{500, 503}),
		WithPollingInitialInterval(time.Second),
		WithPollingMaxBackoff(time.Minute),
		WithPollingBackoffMultiplier(2.0),
		WithPollingJitterFactor(0.1),
		WithSyncErrorHandler(syncErrs),
		WithTransportErrorHandler(transportErrs),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q", cfg.baseURL)
	}
	if cfg.httpClient != httpClient {
		t.Error("httpClient not applied")
	}
	if cfg.deliveryStrategy != StrategyPolling {
		t.Errorf("deliveryStrategy = %q", cfg.deliveryStrategy)
	}
	if cfg.timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.timeout)
	}
	if cfg.retries != 5 {
		t.Errorf("retries = %d", cfg.retries)
	}
	if len(cfg.retryOn) != 2 || cfg.retryOn[0] != 500 {
		t.Errorf("retryOn = %v", cfg.retryOn)
	}
	if cfg.pollingInitialInterval != time.Second {
		t.Errorf("pollingInitialInterval = %v", cfg.pollingInitialInterval)
	}
	if cfg.pollingMaxBackoff != time.Minute {
		t.Errorf("pollingMaxBackoff = %v", cfg.pollingMaxBackoff)
	}
	if cfg.pollingBackoffMultiplier != 2.0 {
		t.Errorf("pollingBackoffMultiplier = %v", cfg.pollingBackoffMultiplier)
	}
	if cfg.pollingJitterFactor != 0.1 {
		t.Errorf("pollingJitterFactor = %v", cfg.pollingJitterFactor)
	}
	if cfg.onSyncError == nil || cfg.onTransportError == nil {
		t.Error("error handlers not applied")
	}
}

func TestWaitConfig_Matches(t *testing.T) {
	msg := &Message{ID: "m1", SenderID: "bob", Text: "hello"}

	tests := []struct {
		name     string
		opts     []WaitOption
		expected bool
	}{
		{"no criteria", nil, true},
		{"text match", []WaitOption{WithText("hello")}, true},
		{"text mismatch", []WaitOption{WithText("bye")}, false},
		{"sender match", []WaitOption{WithSender("bob")}, true},
		{"sender mismatch", []WaitOption{WithSender("carol")}, false},
		{"predicate match", []WaitOption{WithPredicate(func(m *Message) bool { return m.ID == "m1" })}, true},
		{"predicate mismatch", []WaitOption{WithPredicate(func(m *Message) bool { return false })}, false},
		{"all criteria", []WaitOption{WithText("hello"), WithSender("bob")}, true},
		{"one of two fails", []WaitOption{WithText("hello"), WithSender("carol")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &waitConfig{}
			for _, opt := range tt.opts {
				opt(cfg)
			}
			if got := cfg.Matches(msg); got != tt.expected {
				t.Errorf("Matches() = %v, want %v", got, tt.expected)
			}
		})
	}
}
