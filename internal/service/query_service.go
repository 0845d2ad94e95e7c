package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/model"
	appErr "github.com/seralt/askdoc/internal/pkg/errors"
	"github.com/seralt/askdoc/internal/retriever"
	"github.com/seralt/askdoc/internal/synth"
)

type AnswerResult struct {
	Answer   string                     `json:"answer"`
	Quality  model.ContextQuality       `json:"quality"`
	Contexts []model.RetrievalCandidate `json:"contexts"`
}

type QueryService struct {
	retriever   *retriever.Hybrid
	synthesizer *synth.Synthesizer
}

func NewQueryService(r *retriever.Hybrid, s *synth.Synthesizer) *QueryService {
	return &QueryService{retriever: r, synthesizer: s}
}

func (s *QueryService) Retrieve(ctx context.Context, query string, topK int, filters map[string]string) (*retriever.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErr.ErrInvalid
	}
	return s.retriever.Retrieve(ctx, query, topK, filters)
}

// Answer retrieves context then synthesizes a batch answer. Retrieval
// always completes before generation starts: the answer is grounded in a
// fully-ranked context set.
func (s *QueryService) Answer(ctx context.Context, query string, topK int, filters map[string]string) (*AnswerResult, error) {
	result, err := s.Retrieve(ctx, query, topK, filters)
	if err != nil {
		return nil, err
	}
	answer, err := s.synthesizer.Synthesize(ctx, query, result.Contexts)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{
		Answer:   answer,
		Quality:  result.Quality,
		Contexts: result.Contexts,
	}, nil
}

// AnswerStream retrieves context then opens an event stream. Errors before
// the first event are returned directly so the caller can fail the request
// instead of starting a stream.
func (s *QueryService) AnswerStream(ctx context.Context, query string, topK int, filters map[string]string) (<-chan synth.Event, *retriever.Result, error) {
	result, err := s.Retrieve(ctx, query, topK, filters)
	if err != nil {
		return nil, nil, err
	}
	logutil.GetLogger(ctx).Debug("starting answer stream",
		zap.String("quality", string(result.Quality)),
		zap.Int("contexts", len(result.Contexts)))
	events, err := s.synthesizer.SynthesizeStream(ctx, query, result.Contexts)
	if err != nil {
		return nil, nil, err
	}
	return events, result, nil
}
