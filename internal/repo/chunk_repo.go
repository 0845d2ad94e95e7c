package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/seralt/askdoc/internal/model"
	appErr "github.com/seralt/askdoc/internal/pkg/errors"
)

var chunkFields = []string{"chunk_id", "doc_id", "text", "metadata", "page_num", "element_type", "ctime"}

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) Save(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return err
		}
		rows = append(rows, map[string]interface{}{
			"chunk_id":     chunk.ChunkID,
			"doc_id":       chunk.DocID,
			"text":         chunk.Text,
			"metadata":     string(meta),
			"page_num":     chunk.PageNum,
			"element_type": chunk.ElementType,
			"ctime":        chunk.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", rows)
	if err != nil {
		return err
	}
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChunkRepo) Get(ctx context.Context, chunkID string) (*model.Chunk, error) {
	where := map[string]interface{}{"chunk_id": chunkID}
	sqlStr, args, err := builder.BuildSelect("chunks", where, chunkFields)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	chunk, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (r *ChunkRepo) GetByIDs(ctx context.Context, chunkIDs []string) (map[string]model.Chunk, error) {
	if len(chunkIDs) == 0 {
		return map[string]model.Chunk{}, nil
	}
	where := map[string]interface{}{"chunk_id in": chunkIDs}
	sqlStr, args, err := builder.BuildSelect("chunks", where, chunkFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]model.Chunk, len(chunkIDs))
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[chunk.ChunkID] = *chunk
	}
	return out, rows.Err()
}

func (r *ChunkRepo) ListAll(ctx context.Context) ([]model.Chunk, error) {
	sqlStr, args, err := builder.BuildSelect("chunks", nil, chunkFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *chunk)
	}
	return out, rows.Err()
}

func (r *ChunkRepo) DeleteByDoc(ctx context.Context, docID string) (int64, error) {
	where := map[string]interface{}{"doc_id": docID}
	sqlStr, args, err := builder.BuildDelete("chunks", where)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ChunkRepo) Count(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanChunk(scan func(dest ...interface{}) error) (*model.Chunk, error) {
	var chunk model.Chunk
	var meta string
	if err := scan(&chunk.ChunkID, &chunk.DocID, &chunk.Text, &meta, &chunk.PageNum, &chunk.ElementType, &chunk.Ctime); err != nil {
		return nil, err
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
			return nil, err
		}
	}
	return &chunk, nil
}
