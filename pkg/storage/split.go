package storage

import "context"

// Split routes keys for which IsSensitiveKey is true to secure and all other
// keys to general.
type Split struct {
	secure  Storage
	general Storage
}

func NewSplit(secure, general Storage) *Split {
	return &Split{secure: secure, general: general}
}

func (s *Split) route(key string) Storage {
	if IsSensitiveKey(key) {
		return s.secure
	}
	return s.general
}

func (s *Split) Get(ctx context.Context, key string) (string, error) {
	return s.route(key).Get(ctx, key)
}

func (s *Split) Set(ctx context.Context, key, value string) error {
	return s.route(key).Set(ctx, key, value)
}

func (s *Split) Remove(ctx context.Context, key string) error {
	return s.route(key).Remove(ctx, key)
}
