package securedm

import (
	"net/http"
	"time"
)

// DeliveryStrategy specifies how the client receives new messages.
type DeliveryStrategy string

const (
	// StrategyWebSocket uses a persistent WebSocket connection for
	// real-time push delivery. This is the default.
	StrategyWebSocket DeliveryStrategy = "websocket"
	// StrategyPolling uses periodic API calls with exponential backoff.
	StrategyPolling DeliveryStrategy = "polling"
)

const (
	defaultBaseURL     = "https://api.chirpsocial.net"
	defaultWaitTimeout = 60 * time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL          string
	httpClient       *http.Client
	deliveryStrategy DeliveryStrategy
	timeout          time.Duration
	retries          int
	retryOn          []int

	// Polling configuration
	pollingInitialInterval   time.Duration
	pollingMaxBackoff        time.Duration
	pollingBackoffMultiplier float64
	pollingJitterFactor      float64

	// Error callbacks for background failures
	onSyncError      func(error)
	onTransportError func(error)
}

// waitConfig holds configuration for waiting on messages.
type waitConfig struct {
	text      string
	sender    string
	predicate func(*Message) bool
	timeout   time.Duration
}

// Option configures the client.
type Option func(*clientConfig)

// WaitOption configures message waiting.
type WaitOption func(*waitConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithDeliveryStrategy sets the delivery strategy.
func WithDeliveryStrategy(strategy DeliveryStrategy) Option {
	return func(c *clientConfig) {
		c.deliveryStrategy = strategy
	}
}

// WithTimeout sets the default timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets the number of retries for API calls.
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithRetryOn sets the HTTP status codes that trigger a retry.
// Default: [408, 429, 500, 502, 503, 504]
func WithRetryOn(statusCodes []int) Option {
	return func(c *clientConfig) {
		c.retryOn = statusCodes
	}
}

// WithPollingInitialInterval sets the initial polling interval.
// This is the interval used while messages are actively arriving.
// Default: 2 seconds
func WithPollingInitialInterval(interval time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingInitialInterval = interval
	}
}

// WithPollingMaxBackoff sets the maximum polling backoff interval.
// When no new messages arrive, the polling interval increases up to this
// maximum. Default: 30 seconds
func WithPollingMaxBackoff(maxBackoff time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingMaxBackoff = maxBackoff
	}
}

// WithPollingBackoffMultiplier sets the backoff multiplier for polling.
// After each poll with no changes, the interval is multiplied by this factor.
// Default: 1.5
func WithPollingBackoffMultiplier(multiplier float64) Option {
	return func(c *clientConfig) {
		c.pollingBackoffMultiplier = multiplier
	}
}

// WithPollingJitterFactor sets the jitter factor for polling intervals.
// Random jitter up to this fraction of the interval is added to prevent
// synchronized polling across multiple clients.
// Default: 0.3 (30%)
func WithPollingJitterFactor(factor float64) Option {
	return func(c *clientConfig) {
		c.pollingJitterFactor = factor
	}
}

// WithSyncErrorHandler sets a callback invoked when a background sync
// operation fails, including per-message decryption and receipt failures
// during history fetches.
func WithSyncErrorHandler(fn func(error)) Option {
	return func(c *clientConfig) {
		c.onSyncError = fn
	}
}

// WithTransportErrorHandler sets a callback invoked when the live channel
// fails, including best-effort publish failures after a durable send.
func WithTransportErrorHandler(fn func(error)) Option {
	return func(c *clientConfig) {
		c.onTransportError = fn
	}
}

// WithText filters messages by exact text match.
func WithText(text string) WaitOption {
	return func(c *waitConfig) {
		c.text = text
	}
}

// WithSender filters messages by sender user ID.
func WithSender(senderID string) WaitOption {
	return func(c *waitConfig) {
		c.sender = senderID
	}
}

// WithPredicate filters messages by custom predicate.
func WithPredicate(fn func(*Message) bool) WaitOption {
	return func(c *waitConfig) {
		c.predicate = fn
	}
}

// WithWaitTimeout sets the timeout for waiting.
func WithWaitTimeout(timeout time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.timeout = timeout
	}
}

// Matches checks if a message matches the wait criteria.
func (w *waitConfig) Matches(m *Message) bool {
	if w.text != "" && m.Text != w.text {
		return false
	}
	if w.sender != "" && m.SenderID != w.sender {
		return false
	}
	if w.predicate != nil && !w.predicate(m) {
		return false
	}
	return true
}
