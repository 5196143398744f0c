package collaborators

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/coastline/webextract/pkg/models"
)

// VectorStore is a minimal in-process cosine-similarity vector store. The
// example pack has no dedicated vector-database client; this adapter keeps
// the EmbeddingProvider's output queryable without inventing a fabricated
// dependency (see the grounding ledger for why this one component stays on
// a hand-rolled implementation).
type VectorStore struct {
	mu   sync.RWMutex
	vecs map[string][]float32
	meta map[string]map[string]interface{}
}

// NewVectorStore builds an empty store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		vecs: make(map[string][]float32),
		meta: make(map[string]map[string]interface{}),
	}
}

func (s *VectorStore) Upsert(_ context.Context, id string, vector []float32, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vecs[id] = vector
	s.meta[id] = metadata
	return nil
}

type scored struct {
	id    string
	score float64
}

func (s *VectorStore) Query(_ context.Context, vector []float32, topK int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make([]scored, 0, len(s.vecs))
	for id, v := range s.vecs {
		scores = append(scores, scored{id: id, score: cosineSimilarity(vector, v)})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]string, topK)
	for i := 0; i < topK; i++ {
		out[i] = scores[i].id
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

var _ models.VectorStore = (*VectorStore)(nil)
