package embed

import (
	"context"
	"math"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/ai"
)

const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

type Config struct {
	Dimension  int
	Normalize  bool
	MaxRetries int
	Degraded   bool
}

// Embedder turns text into fixed-dimension vectors. Backend failures never
// propagate: after the retry budget is exhausted the zero vector is
// returned, so an embedding outage degrades a pipeline instead of aborting
// it.
type Embedder struct {
	backend ai.IEmbedder
	cfg     Config
}

func New(backend ai.IEmbedder, cfg Config) *Embedder {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 256
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Embedder{backend: backend, cfg: cfg}
}

func (e *Embedder) Dimension() int {
	return e.cfg.Dimension
}

// Degraded reports whether the embedder runs on the deterministic fallback
// backend instead of a real model.
func (e *Embedder) Degraded() bool {
	return e.cfg.Degraded
}

func (e *Embedder) ModelName() string {
	if e.backend == nil {
		return ""
	}
	return e.backend.ModelName()
}

// Embed returns a vector of exactly Dimension() entries for any input.
// Empty or whitespace-only text short-circuits to the zero vector without
// touching the backend.
func (e *Embedder) Embed(ctx context.Context, text string, taskType string) []float32 {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.cfg.Dimension)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("task_type", taskType))
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		values, err := e.backend.Embed(ctx, text, taskType)
		if err == nil && len(values) != e.cfg.Dimension {
			logger.Warn("embedding dimension mismatch",
				zap.Int("want", e.cfg.Dimension), zap.Int("got", len(values)))
			lastErr = ai.ErrUnavailable
			continue
		}
		if err == nil {
			if e.cfg.Normalize {
				normalize(values)
			}
			return values
		}
		lastErr = err
		logger.Warn("embed attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	logger.Error("embedding degraded to zero vector", zap.Error(lastErr))
	return make([]float32, e.cfg.Dimension)
}

func normalize(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// IsZero reports whether a vector carries no signal.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
