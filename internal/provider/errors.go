package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrOverloaded indicates the provider is temporarily unavailable
	// (overloaded or a 5xx backend failure).
	ErrOverloaded = errors.New("provider overloaded")

	// ErrAuth indicates the API key was rejected. Never retried.
	ErrAuth = errors.New("provider authentication failed")

	// ErrBadRequest indicates the provider rejected the request as
	// malformed. Never retried.
	ErrBadRequest = errors.New("provider rejected request")

	// ErrEmptyReply indicates the provider returned a response with no
	// usable text content.
	ErrEmptyReply = errors.New("provider returned empty reply")

	// ErrInvalidRole indicates a message carried a role outside the
	// accepted set.
	ErrInvalidRole = errors.New("invalid message role")
)

// IsRetryable reports whether the error is transient and the request can
// be retried after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrOverloaded)
}
