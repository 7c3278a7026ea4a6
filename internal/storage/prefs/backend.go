// internal/storage/prefs/backend.go
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by a backend when nothing is stored under a key.
var ErrNotFound = errors.New("preference not found")

// Backend stores opaque preference documents by key.
type Backend interface {
	// Read returns the document at key, or ErrNotFound
	Read(ctx context.Context, key string) ([]byte, error)

	// Write replaces the document at key
	Write(ctx context.Context, key string, data []byte) error
}

// Config selects and configures a backend.
type Config struct {
	Type string // memory, localfs, s3
	Path string
	S3   S3Config
}

// NewBackend builds the backend named by cfg.Type. An empty type means memory.
func NewBackend(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown preferences backend %q", cfg.Type)
	}
}

// Memory keeps documents in process memory.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), data...)
	return nil
}
