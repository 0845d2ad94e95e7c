// Package graphstore records document/chunk relationships for optional
// context enrichment. Core retrieval never depends on it; a nil Store is a
// valid configuration.
package graphstore

import "context"

const (
	LabelDocument = "Document"
	LabelChunk    = "Chunk"

	RelBelongsTo = "BELONGS_TO"
	RelNext      = "NEXT"
)

type Store interface {
	CreateNode(ctx context.Context, label string, id string, props map[string]string) error
	CreateRelationship(ctx context.Context, fromID, toID, relType string) error
	QueryRelated(ctx context.Context, chunkID string) ([]string, error)
	Close(ctx context.Context) error
}
