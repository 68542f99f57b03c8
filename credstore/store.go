package credstore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authmachine/state"
)

var (
	// ErrNotFound is returned by Retrieve when nothing is stored.
	ErrNotFound = errors.New("credentials not found")
	// ErrRedisUnavailable wraps transport failures of [RedisStore].
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrCorrupt reports a stored record that cannot be decoded.
	ErrCorrupt = errors.New("stored credentials corrupt")
)

// Store persists the credentials of one engine. Implementations serialize
// their own calls.
type Store interface {
	Save(ctx context.Context, creds state.Credentials) error
	// Retrieve returns ErrNotFound when the store is empty.
	Retrieve(ctx context.Context) (state.Credentials, error)
	// Delete is idempotent.
	Delete(ctx context.Context) error
}
