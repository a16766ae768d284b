package store

import (
	"context"

	"github.com/aussiebroadwan/medrec/pkg/identity"
)

// ErrNotFound is identity.ErrProfileNotFound so the SDK's error translation
// applies unchanged to rows read directly.
var ErrNotFound = identity.ErrProfileNotFound

// Profiles is a profile table the server reads directly instead of through
// the identity provider's REST API.
type Profiles interface {
	identity.ProfileTable

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases the underlying pool.
	Close()
}
