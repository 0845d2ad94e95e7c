package model

// Chunk is a unit of source text stored for retrieval. Immutable after
// indexing except for metadata corrections.
type Chunk struct {
	ChunkID     string            `json:"chunk_id"`
	DocID       string            `json:"doc_id"`
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	PageNum     int               `json:"page_num,omitempty"`
	ElementType string            `json:"element_type,omitempty"`
	Ctime       int64             `json:"ctime"`
}

// HypotheticalQuestion is a synthetic question generated from a chunk at
// index time. It is indexed alongside the chunk so question-shaped queries
// match better; it never surfaces as retrieved content on its own.
type HypotheticalQuestion struct {
	QuestionText  string `json:"question_text"`
	SourceChunkID string `json:"source_chunk_id"`
	QuestionIndex int    `json:"question_index"`
}
