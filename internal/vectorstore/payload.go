package vectorstore

// Payload keys shared by the indexing and query paths. Question points
// carry the chunk id they were generated from, so a question hit can be
// resolved back to its source chunk.
const (
	PayloadKind    = "kind"
	PayloadChunkID = "chunk_id"
	PayloadDocID   = "doc_id"
	PayloadText    = "text"

	KindChunk    = "chunk"
	KindQuestion = "question"
)
