package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/seralt/askdoc/internal/model"
)

// QuestionRecord ties a stored hypothetical question to the vector point
// that carries its embedding.
type QuestionRecord struct {
	PointID  string
	DocID    string
	Question model.HypotheticalQuestion
}

type QuestionRepo struct {
	db *sql.DB
}

func NewQuestionRepo(db *sql.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

func (r *QuestionRepo) Save(ctx context.Context, records []QuestionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]interface{}{
			"point_id":        rec.PointID,
			"doc_id":          rec.DocID,
			"source_chunk_id": rec.Question.SourceChunkID,
			"question_index":  rec.Question.QuestionIndex,
			"question_text":   rec.Question.QuestionText,
		})
	}
	sqlStr, args, err := builder.BuildInsert("hypothetical_questions", rows)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *QuestionRepo) ListByChunk(ctx context.Context, chunkID string) ([]QuestionRecord, error) {
	where := map[string]interface{}{
		"source_chunk_id": chunkID,
		"_orderby":        "question_index asc",
	}
	sqlStr, args, err := builder.BuildSelect("hypothetical_questions", where,
		[]string{"point_id", "doc_id", "source_chunk_id", "question_index", "question_text"})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuestionRecord
	for rows.Next() {
		var rec QuestionRecord
		if err := rows.Scan(&rec.PointID, &rec.DocID, &rec.Question.SourceChunkID,
			&rec.Question.QuestionIndex, &rec.Question.QuestionText); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *QuestionRepo) DeleteByDoc(ctx context.Context, docID string) (int64, error) {
	where := map[string]interface{}{"doc_id": docID}
	sqlStr, args, err := builder.BuildDelete("hypothetical_questions", where)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *QuestionRepo) Count(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hypothetical_questions`)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
