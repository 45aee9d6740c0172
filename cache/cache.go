package cache

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a string cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidConfig = errors.New("cache: invalid configuration")
	ErrClosed        = errors.New("cache: cache is closed")
	ErrProducerPanic = errors.New("cache: producer panicked")
	ErrNilProducer   = errors.New("cache: producer is nil")
	ErrInvalidKey    = errors.New("cache: key is invalid")
	ErrKeyTooLong    = errors.New("cache: key exceeds max length")
)

// Producer computes the value for a key.
//
// Contract:
//   - The cache never cancels a producer. The context it receives keeps the
//     caller's values but not its cancellation, since the result is shared.
//   - Errors are returned verbatim to every caller sharing the call.
//   - A panic is recovered and reported as an error wrapping ErrProducerPanic.
type Producer[V any] func(ctx context.Context) (V, error)

// ValidateKey checks if a string key is usable for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
