package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seralt/askdoc/internal/ai"
	"github.com/seralt/askdoc/internal/embed"
	"github.com/seralt/askdoc/internal/expand"
	"github.com/seralt/askdoc/internal/lexical"
	appErr "github.com/seralt/askdoc/internal/pkg/errors"
	"github.com/seralt/askdoc/internal/repo"
	"github.com/seralt/askdoc/internal/retriever"
	"github.com/seralt/askdoc/internal/vectorstore"
)

// questionGenerator answers every expansion prompt with a fixed question
// list, mimicking HyPE output.
type questionGenerator struct {
	questions []string
}

func (g *questionGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	data, err := json.Marshal(g.questions)
	return string(data), err
}

func (g *questionGenerator) StreamGenerate(ctx context.Context, prompt string) (<-chan ai.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

type testEnv struct {
	index  *IndexService
	hybrid *retriever.Hybrid
	store  *vectorstore.MemoryStore
	db     *sql.DB
}

func newTestEnv(t *testing.T, questions []string) *testEnv {
	t.Helper()
	db, err := repo.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repo.ApplyMigrations(db))

	chunkRepo := repo.NewChunkRepo(db)
	questionRepo := repo.NewQuestionRepo(db)
	store := vectorstore.NewMemoryStore()

	provider, err := ai.NewEmbedProvider("hash", map[string]interface{}{"dimension": 64})
	require.NoError(t, err)
	embedder := embed.New(ai.NewEmbedder(provider, "hash"), embed.Config{Dimension: 64, Degraded: true})

	lexIdx := lexical.NewIndex(func(ctx context.Context) ([]lexical.Document, error) {
		chunks, err := chunkRepo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		docs := make([]lexical.Document, 0, len(chunks))
		for _, c := range chunks {
			docs = append(docs, lexical.Document{ID: c.ChunkID, Text: c.Text})
		}
		return docs, nil
	})

	var expander *expand.Expander
	if len(questions) > 0 {
		expander = expand.New(&questionGenerator{questions: questions}, 0)
	} else {
		expander = expand.New(nil, 0)
	}

	index := NewIndexService(embedder, expander, store, chunkRepo, questionRepo, lexIdx, nil, "test", 3)
	hybrid := retriever.NewHybrid(embedder, store, lexIdx, chunkRepo, nil, retriever.Config{
		Collection:     "test",
		TopK:           1,
		Overfetch:      3,
		VectorWeight:   0.7,
		SemanticWeight: 0.3,
	})
	return &testEnv{index: index, hybrid: hybrid, store: store, db: db}
}

func TestIndexDocument_CountsAndCatalog(t *testing.T) {
	env := newTestEnv(t, []string{"Q one?", "Q two?", "Q three?"})
	ctx := context.Background()

	result, err := env.index.IndexDocument(ctx, "d1", []ChunkInput{
		{Text: "GDPR requires data breach notification within 72 hours."},
		{Text: "The office closes at 18:00 on Fridays."},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.ChunkCount)
	require.Equal(t, 6, result.QuestionCount)
	require.Equal(t, 8, result.VectorCount)

	stats, err := env.index.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.ChunkCount)
	require.EqualValues(t, 6, stats.QuestionCount)
	require.EqualValues(t, 8, stats.VectorCount)
	require.True(t, stats.Degraded)
}

func TestIndexDocument_InvalidInputs(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.index.IndexDocument(ctx, "", []ChunkInput{{Text: "x"}})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = env.index.IndexDocument(ctx, "d1", nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = env.index.IndexDocument(ctx, "d1", []ChunkInput{{Text: "   "}})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestIndexDocument_ExpansionDegradesGracefully(t *testing.T) {
	env := newTestEnv(t, nil) // no generator: expansion yields nothing
	ctx := context.Background()

	result, err := env.index.IndexDocument(ctx, "d1", []ChunkInput{{Text: "some text"}})
	require.NoError(t, err)
	require.Equal(t, 1, result.ChunkCount)
	require.Zero(t, result.QuestionCount)
	require.Equal(t, 1, result.VectorCount)
}

func TestDeleteDocument_RemovesEverything(t *testing.T) {
	env := newTestEnv(t, []string{"Q?"})
	ctx := context.Background()

	_, err := env.index.IndexDocument(ctx, "d1", []ChunkInput{{Text: "first doc text"}})
	require.NoError(t, err)
	_, err = env.index.IndexDocument(ctx, "d2", []ChunkInput{{Text: "second doc text"}})
	require.NoError(t, err)

	require.NoError(t, env.index.DeleteDocument(ctx, "d1"))

	stats, err := env.index.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.ChunkCount)
	require.EqualValues(t, 1, stats.QuestionCount)
	require.EqualValues(t, 2, stats.VectorCount)
}

func TestDeleteDocument_UnknownDoc(t *testing.T) {
	env := newTestEnv(t, nil)
	err := env.index.DeleteDocument(context.Background(), "never-indexed")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

// The HyPE loop end to end: a hypothetical question generated at indexing
// time matches the user query verbatim, so the deterministic embedding
// backend scores it at cosine 1 and the hit resolves to the source chunk.
func TestHypotheticalQuestionBridgesQueryToChunk(t *testing.T) {
	query := "How fast must a breach be reported under GDPR?"
	env := newTestEnv(t, []string{query})
	ctx := context.Background()

	_, err := env.index.IndexDocument(ctx, "policy", []ChunkInput{
		{ChunkID: "gdpr-72", Text: "GDPR requires data breach notification within 72 hours."},
	})
	require.NoError(t, err)
	_, err = env.index.IndexDocument(ctx, "misc", []ChunkInput{
		{ChunkID: "office", Text: "The office closes at 18:00 on Fridays."},
	})
	require.NoError(t, err)

	querySvc := NewQueryService(env.hybrid, nil)
	res, err := querySvc.Retrieve(ctx, query, 1, nil)
	require.NoError(t, err)
	require.Len(t, res.Contexts, 1)
	require.Equal(t, "gdpr-72", res.Contexts[0].ChunkID)
	require.InDelta(t, 1.0, res.Contexts[0].VectorScore, 1e-6)
	require.NotEqual(t, "none", string(res.Quality))
}

func TestRetrieve_EmptyQueryInvalid(t *testing.T) {
	env := newTestEnv(t, nil)
	querySvc := NewQueryService(env.hybrid, nil)
	_, err := querySvc.Retrieve(context.Background(), "   ", 1, nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
