package securedm

import (
	"errors"
	"fmt"

	"github.com/chirpsocial/securedm-go/internal/api"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingToken is returned when no session token is provided.
	ErrMissingToken = errors.New("session token is required")

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrUnauthorized is returned when the session token is invalid or expired.
	ErrUnauthorized = errors.New("invalid or expired session token")

	// ErrNoIdentity is returned when an operation needs key material but the
	// client has neither registered nor restored an identity.
	ErrNoIdentity = errors.New("no identity loaded")

	// ErrIdentityExists is returned when registering while an identity is
	// already loaded or already stored on the server.
	ErrIdentityExists = errors.New("identity already exists")

	// ErrKeyGeneration is returned when keypair generation fails.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrMalformedKey is returned when key material cannot be parsed.
	ErrMalformedKey = errors.New("malformed key material")

	// ErrRoomNotFound is returned when a room is not found.
	ErrRoomNotFound = errors.New("room not found")

	// ErrMessageNotFound is returned when a message is not found.
	ErrMessageNotFound = errors.New("message not found")

	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrSendFailed is returned when a message could not be durably persisted.
	ErrSendFailed = errors.New("send failed")

	// ErrDecryptionFailed is returned when envelope decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrReceiptInvalid is returned when a storage receipt fails verification.
	ErrReceiptInvalid = errors.New("storage receipt verification failed")

	// ErrInvalidImportData is returned when imported identity data is invalid.
	ErrInvalidImportData = errors.New("invalid import data")

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// SecureDMError is implemented by all SDK errors.
type SecureDMError interface {
	error
	SecureDMError() // marker method
}

// ResourceType indicates which type of resource an APIError relates to.
type ResourceType = api.ResourceType

// Resource type constants.
const (
	ResourceRoom    = api.ResourceRoom
	ResourceMessage = api.ResourceMessage
	ResourceUser    = api.ResourceUser
)

// APIError represents an HTTP error from the messaging API.
type APIError struct {
	StatusCode   int
	Message      string
	RequestID    string
	ResourceType ResourceType
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// SecureDMError implements the SecureDMError interface.
func (e *APIError) SecureDMError() {}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 401:
		return target == ErrUnauthorized
	case 404:
		switch e.ResourceType {
		case ResourceRoom:
			return target == ErrRoomNotFound
		case ResourceMessage:
			return target == ErrMessageNotFound
		case ResourceUser:
			return target == ErrUserNotFound
		default:
			return target == ErrRoomNotFound || target == ErrMessageNotFound || target == ErrUserNotFound
		}
	case 409:
		return target == ErrIdentityExists
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SecureDMError implements the SecureDMError interface.
func (e *NetworkError) SecureDMError() {}

// DecryptionError represents a failure to decrypt a message envelope.
type DecryptionError struct {
	EnvelopeID string
	Err        error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypt envelope %s: %v", e.EnvelopeID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryptionFailed
}

// SecureDMError implements the SecureDMError interface.
func (e *DecryptionError) SecureDMError() {}

// ReceiptError indicates a storage receipt that failed verification,
// meaning the persisted envelope may have been tampered with.
type ReceiptError struct {
	EnvelopeID string
	Err        error
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("storage receipt for envelope %s: %v", e.EnvelopeID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReceiptError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *ReceiptError) Is(target error) bool {
	return target == ErrReceiptInvalid
}

// SecureDMError implements the SecureDMError interface.
func (e *ReceiptError) SecureDMError() {}

// SendError indicates the durable write of an outbound message failed.
// The live publish step never produces a SendError; once the envelope is
// persisted the send has succeeded.
type SendError struct {
	RoomID string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to room %s failed: %v", e.RoomID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *SendError) Is(target error) bool {
	return target == ErrSendFailed
}

// SecureDMError implements the SecureDMError interface.
func (e *SendError) SecureDMError() {}

// TransportError indicates a live-channel failure. Transport errors are
// surfaced through the handler set with WithTransportErrorHandler and never
// affect durability.
type TransportError struct {
	Strategy string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Strategy, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// SecureDMError implements the SecureDMError interface.
func (e *TransportError) SecureDMError() {}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Errors)
}

// SecureDMError implements the SecureDMError interface.
func (e *ValidationError) SecureDMError() {}

// wrapError converts internal API errors to public errors.
// This ensures that errors.Is() checks work with public sentinel errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode:   apiErr.StatusCode,
			Message:      apiErr.Message,
			RequestID:    apiErr.RequestID,
			ResourceType: apiErr.ResourceType,
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	return err
}
