// Package retriever fuses vector similarity with lexical relevance into a
// ranked, deduplicated, quality-graded context set.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/embed"
	"github.com/seralt/askdoc/internal/graphstore"
	"github.com/seralt/askdoc/internal/lexical"
	"github.com/seralt/askdoc/internal/model"
	appErr "github.com/seralt/askdoc/internal/pkg/errors"
	"github.com/seralt/askdoc/internal/vectorstore"
)

const (
	SearchMethodHybrid = "hybrid"
	SearchMethodVector = "vector"
)

// ChunkResolver looks up stored chunks by id.
type ChunkResolver interface {
	GetByIDs(ctx context.Context, chunkIDs []string) (map[string]model.Chunk, error)
}

type Config struct {
	Collection     string
	TopK           int
	Overfetch      int // over-fetch factor M, headroom for re-ranking
	VectorWeight   float64
	SemanticWeight float64
}

type Hybrid struct {
	embedder *embed.Embedder
	store    vectorstore.Store
	lexical  *lexical.Index
	chunks   ChunkResolver
	graph    graphstore.Store
	cfg      Config
}

// Result is the outcome of one retrieval call.
type Result struct {
	Contexts     []model.RetrievalCandidate `json:"contexts"`
	Quality      model.ContextQuality       `json:"quality"`
	SearchMethod string                     `json:"search_method"`
}

func NewHybrid(
	embedder *embed.Embedder,
	store vectorstore.Store,
	lexIdx *lexical.Index,
	chunks ChunkResolver,
	graph graphstore.Store,
	cfg Config,
) *Hybrid {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Overfetch < 2 {
		cfg.Overfetch = 3
	}
	return &Hybrid{
		embedder: embedder,
		store:    store,
		lexical:  lexIdx,
		chunks:   chunks,
		graph:    graph,
		cfg:      cfg,
	}
}

// Retrieve embeds the query, over-fetches chunk and question candidates
// from the vector store, resolves question hits to their source chunks,
// fuses vector and lexical scores, and returns the deduplicated top-k.
// A vector store failure is a hard error: an empty result must never mask
// an infrastructure outage.
func (h *Hybrid) Retrieve(ctx context.Context, query string, topK int, filters map[string]string) (*Result, error) {
	if topK <= 0 {
		topK = h.cfg.TopK
	}
	method := SearchMethodHybrid
	if h.cfg.SemanticWeight == 0 {
		method = SearchMethodVector
	}
	logger := logutil.GetLogger(ctx).With(zap.String("method", method), zap.Int("top_k", topK))

	queryVec := h.embedder.Embed(ctx, query, embed.TaskTypeQuery)
	hits, err := h.store.Query(ctx, h.cfg.Collection, queryVec, topK*h.cfg.Overfetch, filters)
	if err != nil {
		logger.Error("vector store query failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrRetrievalUnavailable, err)
	}

	// Resolve every hit to its source chunk, keeping the best vector score
	// per chunk and the order each chunk was first discovered in.
	type agg struct {
		vectorScore float64
		order       int
	}
	byChunk := make(map[string]*agg)
	chunkIDs := make([]string, 0, len(hits))
	for _, hit := range hits {
		chunkID := hit.Payload[vectorstore.PayloadChunkID]
		if chunkID == "" {
			continue
		}
		a, ok := byChunk[chunkID]
		if !ok {
			a = &agg{order: len(chunkIDs)}
			byChunk[chunkID] = a
			chunkIDs = append(chunkIDs, chunkID)
		}
		if hit.Score > a.vectorScore {
			a.vectorScore = hit.Score
		}
	}

	lexScores := map[string]float64{}
	if h.cfg.SemanticWeight != 0 && len(chunkIDs) > 0 {
		lexScores, err = h.lexical.Score(ctx, query, chunkIDs)
		if err != nil {
			// lexical scoring is local and best-effort; vector results stand alone
			logger.Warn("lexical scoring failed", zap.Error(err))
			lexScores = map[string]float64{}
		}
	}

	resolved, err := h.chunks.GetByIDs(ctx, chunkIDs)
	if err != nil {
		logger.Error("chunk resolution failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrRetrievalUnavailable, err)
	}

	candidates := make([]model.RetrievalCandidate, 0, len(chunkIDs))
	for _, chunkID := range chunkIDs {
		chunk, ok := resolved[chunkID]
		if !ok {
			logger.Warn("dangling vector point", zap.String("chunk_id", chunkID))
			continue
		}
		a := byChunk[chunkID]
		lex := lexScores[chunkID]
		candidates = append(candidates, model.RetrievalCandidate{
			ChunkID:      chunkID,
			Text:         chunk.Text,
			Metadata:     chunk.Metadata,
			VectorScore:  a.vectorScore,
			LexicalScore: lex,
			FusedScore:   h.cfg.VectorWeight*a.vectorScore + h.cfg.SemanticWeight*lex,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FusedScore > candidates[j].FusedScore
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	h.attachRelated(ctx, candidates)

	quality := model.GradeQuality(candidates)
	logger.Debug("retrieval complete",
		zap.Int("candidates", len(candidates)),
		zap.String("quality", string(quality)))
	return &Result{
		Contexts:     candidates,
		Quality:      quality,
		SearchMethod: method,
	}, nil
}

func (h *Hybrid) attachRelated(ctx context.Context, candidates []model.RetrievalCandidate) {
	if h.graph == nil {
		return
	}
	for i := range candidates {
		related, err := h.graph.QueryRelated(ctx, candidates[i].ChunkID)
		if err != nil {
			logutil.GetLogger(ctx).Warn("graph lookup failed",
				zap.String("chunk_id", candidates[i].ChunkID), zap.Error(err))
			continue
		}
		candidates[i].Related = related
	}
}
