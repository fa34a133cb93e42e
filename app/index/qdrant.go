package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore keeps the corpus in a single fixed qdrant collection.
// Replace drops and recreates the collection, so the store never mixes
// entries from two corpora.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

func NewQdrantStore(host string, port int, collection string) (*QdrantStore, error) {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 6334
	}
	if collection == "" {
		collection = "corpus"
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, err
	}
	return &QdrantStore{
		client:     client,
		collection: collection,
	}, nil
}

func (s *QdrantStore) Replace(ctx context.Context, docs []Doc) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		if err = s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("drop collection: %w", err)
		}
	}
	if len(docs) == 0 {
		return nil
	}

	if err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(len(docs[0].Vector)),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	pts := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(d.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":   d.Text,
				"source": d.Source,
				"seq":    int64(d.Seq),
			}),
		}
	}

	if _, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         pts,
	}); err != nil {
		return fmt.Errorf("upsert corpus: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, nil
	}

	limit := uint64(k)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Limit:          &limit,
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query corpus: %w", err)
	}

	var out []Result
	for _, r := range resp {
		d := Doc{ID: pointID(r.Id)}
		if v, ok := r.Payload["text"]; ok {
			d.Text = v.GetStringValue()
		}
		if v, ok := r.Payload["source"]; ok {
			d.Source = v.GetStringValue()
		}
		if v, ok := r.Payload["seq"]; ok {
			d.Seq = int(v.GetIntegerValue())
		}
		out = append(out, Result{Doc: d, Score: NormalizeScore(float64(r.Score))})
	}
	return out, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch x := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return x.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", x.Num)
	}
	return ""
}
