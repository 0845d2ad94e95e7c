package model

// ContextQuality grades how well a retrieved context set matches a query.
type ContextQuality string

const (
	QualityHigh   ContextQuality = "high"
	QualityMedium ContextQuality = "medium"
	QualityLow    ContextQuality = "low"
	QualityNone   ContextQuality = "none"
)

// RetrievalCandidate is produced per query and never persisted.
type RetrievalCandidate struct {
	ChunkID      string            `json:"chunk_id"`
	Text         string            `json:"text"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	VectorScore  float64           `json:"vector_score"`
	LexicalScore float64           `json:"lexical_score"`
	FusedScore   float64           `json:"fused_score"`
	Related      []string          `json:"related,omitempty"`
}

// GradeQuality maps the mean fused score of a returned candidate set to a
// coarse quality grade. Thresholds are strict: a mean of exactly 0.7 grades
// medium, exactly 0.4 grades low.
func GradeQuality(candidates []RetrievalCandidate) ContextQuality {
	if len(candidates) == 0 {
		return QualityNone
	}
	var sum float64
	for _, c := range candidates {
		sum += c.FusedScore
	}
	mean := sum / float64(len(candidates))
	switch {
	case mean > 0.7:
		return QualityHigh
	case mean > 0.4:
		return QualityMedium
	default:
		return QualityLow
	}
}
