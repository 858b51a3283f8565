package feedback

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemStore is an in-process Store backed by chromem-go, used for local
// development and tests where standing up a Qdrant instance is overkill.
// Vectors are supplied by the caller, so the collection's embedding
// function is never invoked for writes or reads.
type ChromemStore struct {
	mu          sync.Mutex
	db          *chromem.DB
	collections map[string]*chromem.Collection
}

// NewChromemStore returns an empty in-memory Store.
func NewChromemStore() *ChromemStore {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

func noopEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("feedback: chromem store requires precomputed vectors")
}

func (s *ChromemStore) collectionFor(agentName string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := collectionName(agentName)
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := s.db.CreateCollection(name, nil, noopEmbeddingFunc)
	if err != nil {
		return nil, &UpstreamError{Op: "create_collection", Err: err}
	}
	s.collections[name] = c
	return c, nil
}

func (s *ChromemStore) EnsureCollection(_ context.Context, agentName string, _ int) error {
	_, err := s.collectionFor(agentName)
	return err
}

func (s *ChromemStore) Upsert(ctx context.Context, agentName string, item Item, vector []float32) error {
	c, err := s.collectionFor(agentName)
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:        item.ID,
		Embedding: vector,
		Content:   item.ActionContent,
		Metadata: map[string]string{
			"observation_name":    item.ObservationName,
			"observation_content": item.ObservationContent,
			"action_name":         item.ActionName,
			"action_content":      item.ActionContent,
			"state_name":          item.StateName,
		},
	}
	if err := c.AddDocument(ctx, doc); err != nil {
		return &UpstreamError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *ChromemStore) QueryByVector(ctx context.Context, agentName string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	c, err := s.collectionFor(agentName)
	if err != nil {
		return nil, err
	}
	limit := topK
	if limit > c.Count() {
		limit = c.Count()
	}
	if limit == 0 {
		return nil, nil
	}
	results, err := c.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, &UpstreamError{Op: "query", Err: err}
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Item:  metadataToItem(r.ID, r.Metadata),
			Score: r.Similarity,
		})
	}
	return matches, nil
}

func metadataToItem(id string, meta map[string]string) Item {
	return Item{
		ID:                  id,
		ObservationName:     meta["observation_name"],
		ObservationContent:  meta["observation_content"],
		ActionName:          meta["action_name"],
		ActionContent:       meta["action_content"],
		StateName:           meta["state_name"],
	}
}

func (s *ChromemStore) List(_ context.Context, agentName string, offset, limit int) ([]Item, error) {
	c, err := s.collectionFor(agentName)
	if err != nil {
		return nil, err
	}
	docs := c.Documents()
	items := make([]Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, metadataToItem(d.ID, d.Metadata))
	}
	if offset >= len(items) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}

func (s *ChromemStore) DeleteCollection(_ context.Context, agentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := collectionName(agentName)
	delete(s.collections, name)
	return s.db.DeleteCollection(name)
}
