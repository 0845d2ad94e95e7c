package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/service"
)

// StatsLogJob periodically logs corpus counts. Useful for spotting drift
// between the vector store and the chunk catalog.
type StatsLogJob struct {
	indexer *service.IndexService
}

func NewStatsLogJob(indexer *service.IndexService) *StatsLogJob {
	return &StatsLogJob{indexer: indexer}
}

func (j *StatsLogJob) Name() string {
	return "stats_log"
}

func (j *StatsLogJob) Run(ctx context.Context) error {
	if j.indexer == nil {
		return nil
	}
	stats, err := j.indexer.Stats(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("corpus stats",
		zap.Int64("chunks", stats.ChunkCount),
		zap.Int64("questions", stats.QuestionCount),
		zap.Int64("vectors", stats.VectorCount),
		zap.Bool("degraded", stats.Degraded),
	)
	return nil
}
