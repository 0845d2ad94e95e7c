package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
)

type pgConfig struct {
	DSN string `json:"dsn"`
}

// PgVectorStore keeps all collections in one table, scored with the cosine
// distance operator.
type PgVectorStore struct {
	db        *sql.DB
	dimension int
}

func NewPgVectorStore(dsn string, dimension int) (*PgVectorStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	store := &PgVectorStore{db: db, dimension: dimension}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PgVectorStore) migrate() error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS points (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding vector(%d),
			payload JSONB DEFAULT '{}',
			PRIMARY KEY (collection, id)
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_points_embedding ON points USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_points_payload ON points USING gin (payload)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, collection string, points []Point) error {
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO points (collection, id, embedding, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (collection, id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				payload = EXCLUDED.payload
		`, collection, p.ID, pgvector.NewVector(p.Vector), payload)
		if err != nil {
			return fmt.Errorf("upsert point: %w", err)
		}
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Hit, error) {
	filterJSON, err := json.Marshal(filterOrEmpty(filter))
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload, 1 - (embedding <=> $1) AS score
		FROM points
		WHERE collection = $2 AND payload @> $3
		ORDER BY embedding <=> $1
		LIMIT $4
	`, pgvector.NewVector(vector), collection, filterJSON, topK)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var hit Hit
		var payload []byte
		if err := rows.Scan(&hit.ID, &payload, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &hit.Payload); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *PgVectorStore) Count(ctx context.Context, collection string, filter map[string]string) (int64, error) {
	filterJSON, err := json.Marshal(filterOrEmpty(filter))
	if err != nil {
		return 0, fmt.Errorf("marshal filter: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM points WHERE collection = $1 AND payload @> $2`,
		collection, filterJSON)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PgVectorStore) Delete(ctx context.Context, collection string, filter map[string]string) error {
	filterJSON, err := json.Marshal(filterOrEmpty(filter))
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM points WHERE collection = $1 AND payload @> $2`,
		collection, filterJSON)
	return err
}

func (s *PgVectorStore) Close() error {
	return s.db.Close()
}

func filterOrEmpty(filter map[string]string) map[string]string {
	if filter == nil {
		return map[string]string{}
	}
	return filter
}

func init() {
	Register("pgvector", func(cfg Config) (Store, error) {
		args := &pgConfig{}
		if err := decodeConfig(cfg.Data, args); err != nil {
			return nil, err
		}
		if args.DSN == "" {
			return nil, fmt.Errorf("vector_store.data.dsn is required for pgvector")
		}
		return NewPgVectorStore(args.DSN, cfg.Dimension)
	})
}
