// Package vectorstore provides the narrow contract toward the external
// similarity-search service, with memory, pgvector and qdrant backends
// selected by configuration.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Point is one stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// Hit is one similarity-search result. Score is cosine similarity.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]string
}

type Store interface {
	Upsert(ctx context.Context, collection string, points []Point) error
	Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Hit, error)
	Count(ctx context.Context, collection string, filter map[string]string) (int64, error)
	Delete(ctx context.Context, collection string, filter map[string]string) error
	Close() error
}

// Config selects and configures a backend; Data is decoded by the factory.
type Config struct {
	Type      string      `json:"type"`
	Dimension int         `json:"dimension"`
	Data      interface{} `json:"data"`
}

type Factory func(cfg Config) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg Config) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(cfg)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("vector store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}

func matchesFilter(payload map[string]string, filter map[string]string) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}
