package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/embed"
	"github.com/seralt/askdoc/internal/expand"
	"github.com/seralt/askdoc/internal/graphstore"
	"github.com/seralt/askdoc/internal/lexical"
	"github.com/seralt/askdoc/internal/model"
	appErr "github.com/seralt/askdoc/internal/pkg/errors"
	"github.com/seralt/askdoc/internal/repo"
	"github.com/seralt/askdoc/internal/vectorstore"
)

// ChunkInput is one pre-chunked unit of document text submitted for
// indexing. Parsing and chunking happen upstream.
type ChunkInput struct {
	ChunkID     string            `json:"chunk_id"`
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata"`
	PageNum     int               `json:"page_num"`
	ElementType string            `json:"element_type"`
}

type IndexResult struct {
	ChunkCount    int `json:"chunk_count"`
	QuestionCount int `json:"question_count"`
	VectorCount   int `json:"vector_count"`
}

type IndexStats struct {
	ChunkCount    int64 `json:"chunk_count"`
	QuestionCount int64 `json:"question_count"`
	VectorCount   int64 `json:"vector_count"`
	Degraded      bool  `json:"degraded"`
}

type IndexService struct {
	embedder          *embed.Embedder
	expander          *expand.Expander
	store             vectorstore.Store
	chunks            *repo.ChunkRepo
	questions         *repo.QuestionRepo
	lexIdx            *lexical.Index
	graph             graphstore.Store
	collection        string
	questionsPerChunk int
}

func NewIndexService(
	embedder *embed.Embedder,
	expander *expand.Expander,
	store vectorstore.Store,
	chunks *repo.ChunkRepo,
	questions *repo.QuestionRepo,
	lexIdx *lexical.Index,
	graph graphstore.Store,
	collection string,
	questionsPerChunk int,
) *IndexService {
	if questionsPerChunk <= 0 {
		questionsPerChunk = 3
	}
	return &IndexService{
		embedder:          embedder,
		expander:          expander,
		store:             store,
		chunks:            chunks,
		questions:         questions,
		lexIdx:            lexIdx,
		graph:             graph,
		collection:        collection,
		questionsPerChunk: questionsPerChunk,
	}
}

// IndexDocument expands, embeds and stores the given chunks. Question
// expansion and embedding degrade silently; vector store or catalog
// failures abort the call.
func (s *IndexService) IndexDocument(ctx context.Context, docID string, inputs []ChunkInput) (*IndexResult, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" || len(inputs) == 0 {
		return nil, appErr.ErrInvalid
	}
	for _, in := range inputs {
		if strings.TrimSpace(in.Text) == "" {
			return nil, appErr.ErrInvalid
		}
	}
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID), zap.Int("chunks", len(inputs)))

	now := time.Now().Unix()
	chunks := make([]model.Chunk, 0, len(inputs))
	points := make([]vectorstore.Point, 0, len(inputs)*(1+s.questionsPerChunk))
	var questionRecords []repo.QuestionRecord

	for _, in := range inputs {
		chunkID := strings.TrimSpace(in.ChunkID)
		if chunkID == "" {
			chunkID = uuid.NewString()
		}
		chunk := model.Chunk{
			ChunkID:     chunkID,
			DocID:       docID,
			Text:        in.Text,
			Metadata:    in.Metadata,
			PageNum:     in.PageNum,
			ElementType: in.ElementType,
			Ctime:       now,
		}
		chunks = append(chunks, chunk)

		points = append(points, vectorstore.Point{
			ID:      chunkID,
			Vector:  s.embedder.Embed(ctx, chunk.Text, embed.TaskTypeDocument),
			Payload: buildPayload(vectorstore.KindChunk, chunk, chunkID),
		})

		for idx, question := range s.expander.Expand(ctx, chunk.Text, s.questionsPerChunk) {
			pointID := uuid.NewString()
			points = append(points, vectorstore.Point{
				ID:      pointID,
				Vector:  s.embedder.Embed(ctx, question, embed.TaskTypeQuery),
				Payload: buildQuestionPayload(chunk, question),
			})
			questionRecords = append(questionRecords, repo.QuestionRecord{
				PointID: pointID,
				DocID:   docID,
				Question: model.HypotheticalQuestion{
					QuestionText:  question,
					SourceChunkID: chunkID,
					QuestionIndex: idx,
				},
			})
		}
	}

	if err := s.store.Upsert(ctx, s.collection, points); err != nil {
		logger.Error("vector upsert failed", zap.Error(err))
		return nil, err
	}
	if err := s.chunks.Save(ctx, chunks); err != nil {
		logger.Error("chunk catalog save failed", zap.Error(err))
		return nil, err
	}
	if err := s.questions.Save(ctx, questionRecords); err != nil {
		logger.Error("question catalog save failed", zap.Error(err))
		return nil, err
	}
	s.lexIdx.Invalidate()
	s.recordGraph(ctx, docID, chunks)

	logger.Info("document indexed",
		zap.Int("questions", len(questionRecords)),
		zap.Int("vectors", len(points)))
	return &IndexResult{
		ChunkCount:    len(chunks),
		QuestionCount: len(questionRecords),
		VectorCount:   len(points),
	}, nil
}

// DeleteDocument removes a document's chunks and questions from the vector
// store and the catalog. Re-indexing a document is delete followed by index.
func (s *IndexService) DeleteDocument(ctx context.Context, docID string) error {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return appErr.ErrInvalid
	}
	filter := map[string]string{vectorstore.PayloadDocID: docID}
	if err := s.store.Delete(ctx, s.collection, filter); err != nil {
		return err
	}
	removed, err := s.chunks.DeleteByDoc(ctx, docID)
	if err != nil {
		return err
	}
	if _, err := s.questions.DeleteByDoc(ctx, docID); err != nil {
		return err
	}
	if removed == 0 {
		return appErr.ErrNotFound
	}
	s.lexIdx.Invalidate()
	logutil.GetLogger(ctx).Info("document removed", zap.String("doc_id", docID), zap.Int64("chunks", removed))
	return nil
}

func (s *IndexService) Stats(ctx context.Context) (*IndexStats, error) {
	chunkCount, err := s.chunks.Count(ctx)
	if err != nil {
		return nil, err
	}
	questionCount, err := s.questions.Count(ctx)
	if err != nil {
		return nil, err
	}
	vectorCount, err := s.store.Count(ctx, s.collection, nil)
	if err != nil {
		return nil, err
	}
	return &IndexStats{
		ChunkCount:    chunkCount,
		QuestionCount: questionCount,
		VectorCount:   vectorCount,
		Degraded:      s.embedder.Degraded(),
	}, nil
}

// RebuildLexical forces a lexical index rebuild; used by the cron job.
func (s *IndexService) RebuildLexical(ctx context.Context) error {
	return s.lexIdx.Rebuild(ctx)
}

func (s *IndexService) recordGraph(ctx context.Context, docID string, chunks []model.Chunk) {
	if s.graph == nil {
		return
	}
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	if err := s.graph.CreateNode(ctx, graphstore.LabelDocument, docID, nil); err != nil {
		logger.Warn("graph document node failed", zap.Error(err))
		return
	}
	var prev string
	for _, chunk := range chunks {
		if err := s.graph.CreateNode(ctx, graphstore.LabelChunk, chunk.ChunkID, map[string]string{
			"doc_id": docID,
		}); err != nil {
			logger.Warn("graph chunk node failed", zap.Error(err))
			continue
		}
		if err := s.graph.CreateRelationship(ctx, chunk.ChunkID, docID, graphstore.RelBelongsTo); err != nil {
			logger.Warn("graph relationship failed", zap.Error(err))
		}
		if prev != "" {
			if err := s.graph.CreateRelationship(ctx, prev, chunk.ChunkID, graphstore.RelNext); err != nil {
				logger.Warn("graph relationship failed", zap.Error(err))
			}
		}
		prev = chunk.ChunkID
	}
}

func buildPayload(kind string, chunk model.Chunk, chunkID string) map[string]string {
	payload := map[string]string{
		vectorstore.PayloadKind:    kind,
		vectorstore.PayloadChunkID: chunkID,
		vectorstore.PayloadDocID:   chunk.DocID,
		vectorstore.PayloadText:    chunk.Text,
	}
	for k, v := range chunk.Metadata {
		if _, reserved := payload[k]; reserved {
			continue
		}
		payload[k] = v
	}
	return payload
}

func buildQuestionPayload(chunk model.Chunk, question string) map[string]string {
	payload := buildPayload(vectorstore.KindQuestion, chunk, chunk.ChunkID)
	payload[vectorstore.PayloadText] = question
	return payload
}
