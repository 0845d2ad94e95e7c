package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

type qdrantConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	APIKey string `json:"api_key"`
	UseTLS bool   `json:"use_tls"`
}

// QdrantStore talks to a qdrant cluster over gRPC. Collections are created
// on first upsert with cosine distance.
type QdrantStore struct {
	client    *qdrant.Client
	dimension int

	mu      sync.Mutex
	ensured map[string]bool
}

func NewQdrantStore(cfg qdrantConfig, dimension int) (*QdrantStore, error) {
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	return &QdrantStore{
		client:    client,
		dimension: dimension,
		ensured:   make(map[string]bool),
	}, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[collection] {
		return nil
	}
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	s.ensured[collection] = true
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = v
		}
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Hit, error) {
	limit := uint64(topK)
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          &limit,
		Filter:         buildQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	hits := make([]Hit, 0, len(res))
	for _, point := range res {
		payload := make(map[string]string, len(point.Payload))
		for k, v := range point.Payload {
			payload[k] = v.GetStringValue()
		}
		hits = append(hits, Hit{
			ID:      point.Id.GetUuid(),
			Score:   float64(point.Score),
			Payload: payload,
		})
	}
	return hits, nil
}

func (s *QdrantStore) Count(ctx context.Context, collection string, filter map[string]string) (int64, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         buildQdrantFilter(filter),
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int64(n), nil
}

func (s *QdrantStore) Delete(ctx context.Context, collection string, filter map[string]string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(buildQdrantFilter(filter)),
	})
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func buildQdrantFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		must = append(must, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: must}
}

func init() {
	Register("qdrant", func(cfg Config) (Store, error) {
		args := &qdrantConfig{}
		if err := decodeConfig(cfg.Data, args); err != nil {
			return nil, err
		}
		if args.Host == "" {
			return nil, fmt.Errorf("vector_store.data.host is required for qdrant")
		}
		return NewQdrantStore(*args, cfg.Dimension)
	})
}
