package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/seralt/askdoc/internal/ai"
	"github.com/seralt/askdoc/internal/embed"
	"github.com/seralt/askdoc/internal/expand"
	"github.com/seralt/askdoc/internal/lexical"
	"github.com/seralt/askdoc/internal/repo"
	"github.com/seralt/askdoc/internal/retriever"
	"github.com/seralt/askdoc/internal/service"
	"github.com/seralt/askdoc/internal/synth"
	"github.com/seralt/askdoc/internal/vectorstore"
)

type scriptedGenerator struct {
	answer string
	tokens []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "question generation") {
		return `["How fast must a breach be reported under GDPR?"]`, nil
	}
	if g.answer == "" {
		return "", errors.New("no scripted answer")
	}
	return g.answer, nil
}

func (g *scriptedGenerator) StreamGenerate(ctx context.Context, prompt string) (<-chan ai.StreamChunk, error) {
	out := make(chan ai.StreamChunk)
	go func() {
		defer close(out)
		for _, tok := range g.tokens {
			out <- ai.StreamChunk{Content: tok}
		}
		out <- ai.StreamChunk{Done: true}
	}()
	return out, nil
}

func newTestRouter(t *testing.T, gen *scriptedGenerator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	expander := expand.New(gen, 0)
	synthesizer := synth.New(gen, synth.Config{})
	hybrid := retriever.NewHybrid(embedder, store, lexIdx, chunkRepo, nil, retriever.Config{
		Collection:     "test",
		TopK:           1,
		Overfetch:      3,
		VectorWeight:   0.7,
		SemanticWeight: 0.3,
	})
	indexSvc := service.NewIndexService(embedder, expander, store, chunkRepo, questionRepo, lexIdx, nil, "test", 3)
	querySvc := service.NewQueryService(hybrid, synthesizer)

	engine := gin.New()
	api := engine.Group("/api/v1")
	RegisterRoutes(api, RouterDeps{
		Index: NewIndexHandler(indexSvc),
		Query: NewQueryHandler(querySvc),
	})
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func indexGDPRDoc(t *testing.T, engine *gin.Engine) {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/documents/policy/index", gin.H{
		"chunks": []gin.H{
			{"chunk_id": "gdpr-72", "text": "GDPR requires data breach notification within 72 hours."},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIndexAndRetrieve(t *testing.T) {
	engine := newTestRouter(t, &scriptedGenerator{})
	indexGDPRDoc(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/retrieve", gin.H{
		"query": "How fast must a breach be reported under GDPR?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "gdpr-72")
	require.Contains(t, rec.Body.String(), "72 hours")
}

func TestRetrieve_EmptyQueryRejected(t *testing.T) {
	engine := newTestRouter(t, &scriptedGenerator{})
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/retrieve", gin.H{"query": "  "})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), `"contexts"`)
}

func TestAnswer_Batch(t *testing.T) {
	gen := &scriptedGenerator{answer: "Within 72 hours of becoming aware."}
	engine := newTestRouter(t, gen)
	indexGDPRDoc(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/answer", gin.H{
		"query": "How fast must a breach be reported under GDPR?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Within 72 hours of becoming aware.")
}

func TestAnswer_StreamNDJSON(t *testing.T) {
	gen := &scriptedGenerator{tokens: []string{"Within ", "Within 72 hours", "72 hours", "."}}
	engine := newTestRouter(t, gen)
	indexGDPRDoc(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/answer", gin.H{
		"query":  "How fast must a breach be reported under GDPR?",
		"stream": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var events []streamEvent
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev streamEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, synth.EventEnd, last.Type)
	require.Equal(t, "Within 72 hours.", last.Message)
	require.NotEmpty(t, last.Quality)

	var sb strings.Builder
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, synth.EventToken, ev.Type)
		sb.WriteString(ev.Content)
	}
	require.Equal(t, last.Message, sb.String())
}

func TestDeleteDocument_NotFound(t *testing.T) {
	engine := newTestRouter(t, &scriptedGenerator{})
	rec := doJSON(t, engine, http.MethodDelete, "/api/v1/documents/ghost", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStats(t *testing.T) {
	engine := newTestRouter(t, &scriptedGenerator{})
	indexGDPRDoc(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"chunk_count"`)
	require.Contains(t, rec.Body.String(), `"degraded":true`)
}
