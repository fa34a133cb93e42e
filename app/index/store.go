package index

import (
	"context"
	"fmt"
	"math"
)

// Doc is one indexed entry: an embedded chunk plus its provenance.
type Doc struct {
	ID     string
	Text   string
	Source string
	Seq    int
	Vector []float32
}

// Result pairs an indexed entry with a similarity score in [0,1],
// higher is more relevant.
type Result struct {
	Doc   Doc
	Score float64
}

// Store holds the single active corpus. Replace drops every existing
// entry and inserts the new corpus as one all-or-nothing operation; a
// failed Replace must leave the previous corpus intact. Search against
// an empty store returns no results, not an error.
type Store interface {
	Replace(ctx context.Context, docs []Doc) error
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
	Close() error
}

type Config struct {
	Backend    string
	Path       string
	QdrantHost string
	QdrantPort int
	Collection string
}

func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "qdrant":
		return NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.Collection)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// in [-1,1]. Mismatched or zero-length inputs score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeScore clamps a cosine similarity into the [0,1] relevance
// range callers compare against the guardrail threshold.
func NormalizeScore(cos float64) float64 {
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
