// Package storage persists the few values the client keeps between runs:
// the auth token and the onboarding-seen flag.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrisdamba/chowrider/internal/models"
)

var ErrNotFound = errors.New("storage: key not found")

// Store is a small key-value abstraction. The file backend plays the role of
// platform secure storage, the memory backend that of browser local storage.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// New builds the backend named by cfg.Backend.
func New(ctx context.Context, cfg models.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN, cfg.Table)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// GetOptional returns "" instead of ErrNotFound.
func GetOptional(ctx context.Context, s Store, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
