package ai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

type hashEmbedConfig struct {
	Dimension int `json:"dimension"`
}

// hashEmbedProvider produces a deterministic pseudo-embedding from a hash of
// the input text. It stands in when no real embedding backend is configured:
// same text always maps to the same vector, so caches and tests stay stable.
// Vectors carry no semantic signal and the provider is flagged as degraded.
type hashEmbedProvider struct {
	dimension int
}

func (p *hashEmbedProvider) Name() string {
	return "hash"
}

func (p *hashEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	dim := p.dimension
	if dim <= 0 {
		dim = 256
	}
	seed := sha256.Sum256([]byte(text))
	out := make([]float32, dim)
	block := seed[:]
	for i := 0; i < dim; i++ {
		if i%8 == 0 && i > 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		bits := binary.BigEndian.Uint32(block[(i%8)*4 : (i%8)*4+4])
		// map to [-1, 1)
		out[i] = float32(int64(bits)-math.MaxInt32) / float32(math.MaxInt32)
	}
	return out, nil
}

func createHashEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &hashEmbedConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	return &hashEmbedProvider{dimension: cfg.Dimension}, nil
}

func init() {
	RegisterEmbed("hash", createHashEmbedFactory)
}
