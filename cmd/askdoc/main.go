package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/ai"
	"github.com/seralt/askdoc/internal/config"
	"github.com/seralt/askdoc/internal/embed"
	"github.com/seralt/askdoc/internal/embedcache"
	"github.com/seralt/askdoc/internal/expand"
	"github.com/seralt/askdoc/internal/graphstore"
	"github.com/seralt/askdoc/internal/handler"
	"github.com/seralt/askdoc/internal/job"
	"github.com/seralt/askdoc/internal/lexical"
	"github.com/seralt/askdoc/internal/middleware"
	"github.com/seralt/askdoc/internal/repo"
	"github.com/seralt/askdoc/internal/retriever"
	"github.com/seralt/askdoc/internal/schedule"
	"github.com/seralt/askdoc/internal/service"
	"github.com/seralt/askdoc/internal/synth"
	"github.com/seralt/askdoc/internal/vectorstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "askdoc",
		Short: "askdoc retrieval and answer server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run askdoc server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

// buildEmbedder falls back to the deterministic hash backend when the
// configured embedding provider cannot be constructed, so the server still
// comes up with degraded retrieval instead of refusing to start.
func buildEmbedder(cfg *config.Config) (*embed.Embedder, error) {
	degraded := false
	provider, err := ai.NewEmbedProvider(cfg.AI.Embed.Provider, cfg.AI.Embed.Data)
	if err != nil {
		logutil.GetLogger(context.Background()).Warn("embed provider unavailable, using hash fallback",
			zap.String("provider", cfg.AI.Embed.Provider),
			zap.Error(err))
		provider, err = ai.NewEmbedProvider("hash", map[string]interface{}{
			"dimension": cfg.VectorDB.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("init hash embed provider: %w", err)
		}
		degraded = true
	}
	if cfg.AI.Embed.Provider == "hash" {
		degraded = true
	}
	backend := ai.NewEmbedder(provider, cfg.AI.Embed.Model)
	backend = embedcache.WrapLruCacheToEmbedder(
		backend,
		cfg.EmbedCache.Size,
		time.Duration(cfg.EmbedCache.TTLSeconds)*time.Second,
	)
	return embed.New(backend, embed.Config{
		Dimension:  cfg.VectorDB.Dimension,
		Normalize:  cfg.AI.Normalize,
		MaxRetries: cfg.AI.MaxRetries,
		Degraded:   degraded,
	}), nil
}

func runServer(cfg *config.Config, db *sql.DB) error {
	ctx := context.Background()
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("vector_db", cfg.VectorDB.Type),
		zap.String("collection", cfg.Collection),
	)

	chunkRepo := repo.NewChunkRepo(db)
	questionRepo := repo.NewQuestionRepo(db)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	store, err := vectorstore.New(vectorstore.Config{
		Type:      cfg.VectorDB.Type,
		Dimension: cfg.VectorDB.Dimension,
		Data:      cfg.VectorDB.Data,
	})
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	defer store.Close()

	var graph graphstore.Store
	if cfg.GraphDB.Enable {
		graph, err = graphstore.NewNeo4jStore(ctx, graphstore.Neo4jConfig{
			URI:      cfg.GraphDB.URI,
			User:     cfg.GraphDB.User,
			Password: cfg.GraphDB.Password,
		})
		if err != nil {
			return fmt.Errorf("init graph store: %w", err)
		}
		defer graph.Close(ctx)
	}

	lexIdx := lexical.NewIndex(func(ctx context.Context) ([]lexical.Document, error) {
		chunks, err := chunkRepo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		docs := make([]lexical.Document, 0, len(chunks))
		for _, chunk := range chunks {
			docs = append(docs, lexical.Document{ID: chunk.ChunkID, Text: chunk.Text})
		}
		return docs, nil
	})

	var generator ai.IGenerator
	if cfg.AI.Chat.Provider != "" {
		chatProvider, err := ai.NewChatProvider(cfg.AI.Chat.Provider, cfg.AI.Chat.Data)
		if err != nil {
			return fmt.Errorf("init chat provider: %w", err)
		}
		generator = ai.NewGenerator(chatProvider, cfg.AI.Chat.Model)
	}

	aiTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	expander := expand.New(generator, aiTimeout)
	synthesizer := synth.New(generator, synth.Config{
		ContextCharBudget: cfg.Synthesis.ContextCharBudget,
		Timeout:           time.Duration(cfg.Synthesis.TimeoutSeconds) * time.Second,
	})

	hybrid := retriever.NewHybrid(embedder, store, lexIdx, chunkRepo, graph, retriever.Config{
		Collection:     cfg.Collection,
		TopK:           cfg.Retrieval.TopK,
		Overfetch:      cfg.Retrieval.Overfetch,
		VectorWeight:   cfg.Retrieval.VectorWeight,
		SemanticWeight: cfg.Retrieval.SemanticWeight,
	})

	indexService := service.NewIndexService(
		embedder, expander, store, chunkRepo, questionRepo,
		lexIdx, graph, cfg.Collection, cfg.Retrieval.QuestionsPerChunk,
	)
	queryService := service.NewQueryService(hybrid, synthesizer)

	deps := handler.RouterDeps{
		Index:           handler.NewIndexHandler(indexService),
		Query:           handler.NewQueryHandler(queryService),
		RateLimitWindow: time.Duration(cfg.HTTP.RateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.HTTP.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewLexicalRebuildJob(indexService), cfg.Cron.LexicalRebuild); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewStatsLogJob(indexService), cfg.Cron.StatsLog); err != nil {
		return err
	}
	scheduler.Start(sigCtx)
	defer scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(ctx).Error("server error", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	logutil.GetLogger(ctx).Info("server stopping...")
	return nil
}
