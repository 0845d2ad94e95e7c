package repo

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		text TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		page_num INTEGER NOT NULL DEFAULT 0,
		element_type TEXT NOT NULL DEFAULT '',
		ctime INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id)`,
	`CREATE TABLE IF NOT EXISTS hypothetical_questions (
		point_id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		source_chunk_id TEXT NOT NULL,
		question_index INTEGER NOT NULL,
		question_text TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_chunk ON hypothetical_questions(source_chunk_id)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_doc ON hypothetical_questions(doc_id)`,
}

func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func ApplyMigrations(db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
