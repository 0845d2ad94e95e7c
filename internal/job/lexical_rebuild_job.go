package job

import (
	"context"

	"github.com/seralt/askdoc/internal/service"
)

// LexicalRebuildJob rebuilds the BM25 index on a schedule so the term
// statistics stay fresh even when no query has forced a rebuild since the
// last write.
type LexicalRebuildJob struct {
	indexer *service.IndexService
}

func NewLexicalRebuildJob(indexer *service.IndexService) *LexicalRebuildJob {
	return &LexicalRebuildJob{indexer: indexer}
}

func (j *LexicalRebuildJob) Name() string {
	return "lexical_rebuild"
}

func (j *LexicalRebuildJob) Run(ctx context.Context) error {
	if j.indexer == nil {
		return nil
	}
	return j.indexer.RebuildLexical(ctx)
}
