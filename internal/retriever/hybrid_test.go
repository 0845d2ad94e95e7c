package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seralt/askdoc/internal/embed"
	"github.com/seralt/askdoc/internal/lexical"
	"github.com/seralt/askdoc/internal/model"
	appErr "github.com/seralt/askdoc/internal/pkg/errors"
	"github.com/seralt/askdoc/internal/vectorstore"
)

type staticEmbedBackend struct{}

func (staticEmbedBackend) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (staticEmbedBackend) ModelName() string { return "static" }

type fakeStore struct {
	hits []vectorstore.Hit
	err  error
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	return nil
}

func (f *fakeStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]vectorstore.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topK > 0 && len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func (f *fakeStore) Count(ctx context.Context, collection string, filter map[string]string) (int64, error) {
	return int64(len(f.hits)), nil
}

func (f *fakeStore) Delete(ctx context.Context, collection string, filter map[string]string) error {
	return nil
}

func (f *fakeStore) Close() error { return nil }

type fakeResolver struct {
	chunks map[string]model.Chunk
	err    error
}

func (f *fakeResolver) GetByIDs(ctx context.Context, chunkIDs []string) (map[string]model.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]model.Chunk, len(chunkIDs))
	for _, id := range chunkIDs {
		if c, ok := f.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func chunkHit(pointID, chunkID string, score float64) vectorstore.Hit {
	return vectorstore.Hit{
		ID:    pointID,
		Score: score,
		Payload: map[string]string{
			vectorstore.PayloadKind:    vectorstore.KindChunk,
			vectorstore.PayloadChunkID: chunkID,
		},
	}
}

func questionHit(pointID, chunkID string, score float64) vectorstore.Hit {
	h := chunkHit(pointID, chunkID, score)
	h.Payload[vectorstore.PayloadKind] = vectorstore.KindQuestion
	return h
}

func emptyLexical() *lexical.Index {
	return lexical.NewIndex(func(ctx context.Context) ([]lexical.Document, error) {
		return nil, nil
	})
}

func newTestHybrid(store vectorstore.Store, resolver ChunkResolver, lexIdx *lexical.Index, cfg Config) *Hybrid {
	embedder := embed.New(staticEmbedBackend{}, embed.Config{Dimension: 3})
	if cfg.Collection == "" {
		cfg.Collection = "test"
	}
	return NewHybrid(embedder, store, lexIdx, resolver, nil, cfg)
}

func TestRetrieve_DedupesQuestionHitsToSourceChunk(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.Hit{
		questionHit("q1", "c1", 0.95),
		chunkHit("p1", "c1", 0.80),
		questionHit("q2", "c1", 0.70),
		chunkHit("p2", "c2", 0.60),
	}}
	resolver := &fakeResolver{chunks: map[string]model.Chunk{
		"c1": {ChunkID: "c1", Text: "first chunk"},
		"c2": {ChunkID: "c2", Text: "second chunk"},
	}}
	h := newTestHybrid(store, resolver, emptyLexical(), Config{TopK: 5, VectorWeight: 1})

	res, err := h.Retrieve(context.Background(), "query", 0, nil)
	require.NoError(t, err)
	require.Len(t, res.Contexts, 2)
	require.Equal(t, "c1", res.Contexts[0].ChunkID)
	require.InDelta(t, 0.95, res.Contexts[0].VectorScore, 1e-9, "best score across duplicates wins")
	require.Equal(t, "c2", res.Contexts[1].ChunkID)
}

func TestRetrieve_FusedScoreWeighting(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.Hit{
		chunkHit("p1", "c1", 0.9),
		chunkHit("p2", "c2", 0.5),
	}}
	resolver := &fakeResolver{chunks: map[string]model.Chunk{
		"c1": {ChunkID: "c1", Text: "alpha beta"},
		"c2": {ChunkID: "c2", Text: "gamma delta gamma"},
	}}
	lexIdx := lexical.NewIndex(func(ctx context.Context) ([]lexical.Document, error) {
		return []lexical.Document{
			{ID: "c1", Text: "alpha beta"},
			{ID: "c2", Text: "gamma delta gamma"},
		}, nil
	})
	h := newTestHybrid(store, resolver, lexIdx, Config{TopK: 5, VectorWeight: 0.7, SemanticWeight: 0.3})

	res, err := h.Retrieve(context.Background(), "gamma", 0, nil)
	require.NoError(t, err)
	require.Len(t, res.Contexts, 2)
	require.Equal(t, SearchMethodHybrid, res.SearchMethod)

	byID := map[string]model.RetrievalCandidate{}
	for _, c := range res.Contexts {
		byID[c.ChunkID] = c
	}
	// c2 is the only lexical match, so it carries the normalized max of 1.
	require.InDelta(t, 0.7*0.5+0.3*1.0, byID["c2"].FusedScore, 1e-9)
	require.InDelta(t, 0.7*0.9, byID["c1"].FusedScore, 1e-9)
	require.Equal(t, "c2", res.Contexts[0].ChunkID, "lexical boost reorders")
}

func TestRetrieve_VectorOnlyWhenSemanticWeightZero(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.Hit{chunkHit("p1", "c1", 0.9)}}
	resolver := &fakeResolver{chunks: map[string]model.Chunk{
		"c1": {ChunkID: "c1", Text: "alpha"},
	}}
	lexIdx := lexical.NewIndex(func(ctx context.Context) ([]lexical.Document, error) {
		return nil, errors.New("must not be called")
	})
	h := newTestHybrid(store, resolver, lexIdx, Config{TopK: 5, VectorWeight: 1})

	res, err := h.Retrieve(context.Background(), "alpha", 0, nil)
	require.NoError(t, err)
	require.Equal(t, SearchMethodVector, res.SearchMethod)
	require.Len(t, res.Contexts, 1)
	require.Zero(t, res.Contexts[0].LexicalScore)
}

func TestRetrieve_StoreFailureIsRetrievalUnavailable(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	h := newTestHybrid(store, &fakeResolver{}, emptyLexical(), Config{VectorWeight: 1})

	_, err := h.Retrieve(context.Background(), "query", 0, nil)
	require.ErrorIs(t, err, appErr.ErrRetrievalUnavailable)
}

func TestRetrieve_ResolverFailureIsRetrievalUnavailable(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.Hit{chunkHit("p1", "c1", 0.9)}}
	resolver := &fakeResolver{err: errors.New("db locked")}
	h := newTestHybrid(store, resolver, emptyLexical(), Config{VectorWeight: 1})

	_, err := h.Retrieve(context.Background(), "query", 0, nil)
	require.ErrorIs(t, err, appErr.ErrRetrievalUnavailable)
}

func TestRetrieve_DanglingPointsDropped(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.Hit{
		chunkHit("p1", "c1", 0.9),
		chunkHit("p2", "gone", 0.8),
	}}
	resolver := &fakeResolver{chunks: map[string]model.Chunk{
		"c1": {ChunkID: "c1", Text: "alpha"},
	}}
	h := newTestHybrid(store, resolver, emptyLexical(), Config{TopK: 5, VectorWeight: 1})

	res, err := h.Retrieve(context.Background(), "query", 0, nil)
	require.NoError(t, err)
	require.Len(t, res.Contexts, 1)
	require.Equal(t, "c1", res.Contexts[0].ChunkID)
}

func TestRetrieve_TruncatesToTopK(t *testing.T) {
	hits := make([]vectorstore.Hit, 0, 8)
	chunks := map[string]model.Chunk{}
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		hits = append(hits, chunkHit("p"+id, id, 0.9-float64(i)*0.05))
		chunks[id] = model.Chunk{ChunkID: id, Text: "chunk " + id}
	}
	store := &fakeStore{hits: hits}
	h := newTestHybrid(store, &fakeResolver{chunks: chunks}, emptyLexical(), Config{TopK: 3, VectorWeight: 1})

	res, err := h.Retrieve(context.Background(), "query", 0, nil)
	require.NoError(t, err)
	require.Len(t, res.Contexts, 3)
	require.Equal(t, "a", res.Contexts[0].ChunkID)
}

// Raising the vector weight must never demote the candidate with the
// higher vector score when lexical scores are equal.
func TestRetrieve_VectorWeightMonotonicity(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.Hit{
		chunkHit("p1", "high", 0.9),
		chunkHit("p2", "low", 0.4),
	}}
	resolver := &fakeResolver{chunks: map[string]model.Chunk{
		"high": {ChunkID: "high", Text: "identical words here"},
		"low":  {ChunkID: "low", Text: "identical words here"},
	}}
	for _, vw := range []float64{0.3, 0.7, 1.0, 2.0} {
		h := newTestHybrid(store, resolver, emptyLexical(), Config{
			TopK:           5,
			VectorWeight:   vw,
			SemanticWeight: 0.3,
		})
		res, err := h.Retrieve(context.Background(), "query", 0, nil)
		require.NoError(t, err)
		require.Len(t, res.Contexts, 2)
		require.Equal(t, "high", res.Contexts[0].ChunkID, "vector_weight %v", vw)
	}
}

func TestRetrieve_EmptyStoreGradesNone(t *testing.T) {
	h := newTestHybrid(&fakeStore{}, &fakeResolver{}, emptyLexical(), Config{VectorWeight: 1})
	res, err := h.Retrieve(context.Background(), "query", 0, nil)
	require.NoError(t, err)
	require.Empty(t, res.Contexts)
	require.Equal(t, model.QualityNone, res.Quality)
}
