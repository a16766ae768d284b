package storage

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("storage: not found")

// Storage is the capability set {get, set, remove} over string values.
type Storage interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

var sensitiveMarkers = []string{"token", "auth"}

// IsSensitiveKey reports whether key names sensitive material. A key is
// sensitive when it contains "token" or "auth", case-insensitively.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, m := range sensitiveMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}
