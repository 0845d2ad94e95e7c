package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	DBPath     string           `json:"db_path"`
	Port       int              `json:"port"`
	Collection string           `json:"collection"`
	LogConfig  logger.LogConfig `json:"log_config"`
	AI         AIConfig         `json:"ai"`
	VectorDB   VectorDBConfig   `json:"vector_db"`
	GraphDB    GraphDBConfig    `json:"graph_db"`
	Retrieval  RetrievalConfig  `json:"retrieval"`
	Synthesis  SynthesisConfig  `json:"synthesis"`
	EmbedCache EmbedCacheConfig `json:"embed_cache"`
	Cron       CronConfig       `json:"cron"`
	HTTP       HTTPConfig       `json:"http"`
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Chat           ProviderConfig `json:"chat"`
	Embed          ProviderConfig `json:"embed"`
	MaxRetries     int            `json:"max_retries"`
	Normalize      bool           `json:"normalize"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

type VectorDBConfig struct {
	Type      string      `json:"type"`
	Dimension int         `json:"dimension"`
	Data      interface{} `json:"data"`
}

type GraphDBConfig struct {
	Enable   bool   `json:"enable"`
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RetrievalConfig struct {
	TopK              int     `json:"top_k"`
	Overfetch         int     `json:"overfetch"`
	VectorWeight      float64 `json:"vector_weight"`
	SemanticWeight    float64 `json:"semantic_weight"`
	QuestionsPerChunk int     `json:"questions_per_chunk"`
}

type SynthesisConfig struct {
	ContextCharBudget int `json:"context_char_budget"`
	TimeoutSeconds    int `json:"timeout_seconds"`
}

type EmbedCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type CronConfig struct {
	LexicalRebuild string `json:"lexical_rebuild"`
	StatsLog       string `json:"stats_log"`
}

type HTTPConfig struct {
	CORSAllowlist    []string `json:"cors_allowlist"`
	RateLimitSeconds int      `json:"rate_limit_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "askdoc"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Embed.Provider == "" {
		cfg.AI.Embed.Provider = "hash"
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.VectorDB.Type == "" {
		cfg.VectorDB.Type = "memory"
	}
	if cfg.VectorDB.Dimension == 0 {
		cfg.VectorDB.Dimension = 256
	}
	if cfg.GraphDB.Enable && cfg.GraphDB.URI == "" {
		return nil, fmt.Errorf("graph_db.uri is required when graph_db is enabled")
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.Overfetch == 0 {
		cfg.Retrieval.Overfetch = 3
	}
	if cfg.Retrieval.VectorWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.VectorWeight = 0.7
		cfg.Retrieval.SemanticWeight = 0.3
	}
	if cfg.Retrieval.QuestionsPerChunk == 0 {
		cfg.Retrieval.QuestionsPerChunk = 3
	}
	if cfg.Synthesis.ContextCharBudget == 0 {
		cfg.Synthesis.ContextCharBudget = 24000
	}
	if cfg.EmbedCache.Size == 0 {
		cfg.EmbedCache.Size = 4096
	}
	if cfg.EmbedCache.TTLSeconds == 0 {
		cfg.EmbedCache.TTLSeconds = 3600
	}
	if cfg.Cron.LexicalRebuild == "" {
		cfg.Cron.LexicalRebuild = "*/30 * * * *"
	}
	if cfg.Cron.StatsLog == "" {
		cfg.Cron.StatsLog = "0 * * * *"
	}
	if cfg.HTTP.RateLimitSeconds == 0 {
		cfg.HTTP.RateLimitSeconds = 1
	}
	return &cfg, nil
}
