package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures a QdrantStore connection.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// SetDefaults fills Host/Port when unset, matching the provider's
// zero-config local-dev posture.
func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

// QdrantStore adapts Qdrant's gRPC client to the Store contract, one
// collection per agent name, cosine distance throughout.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore dials Qdrant per cfg.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	cfg.SetDefaults()
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, &UpstreamError{Op: "connect", Err: err}
	}
	return &QdrantStore{client: client}, nil
}

func collectionName(agentName string) string {
	return "feedback_" + agentName
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, agentName string, dim int) error {
	collection := collectionName(agentName)
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return &UpstreamError{Op: "collection_exists", Err: err}
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return &UpstreamError{Op: "create_collection", Err: err}
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, agentName string, item Item, vector []float32) error {
	collection := collectionName(agentName)
	if err := s.EnsureCollection(ctx, agentName, len(vector)); err != nil {
		return err
	}

	payload, err := itemPayload(item)
	if err != nil {
		return &UpstreamError{Op: "upsert", Err: err}
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(item.ID),
		Vectors: qdrant.NewVectors(vector...),
		Payload: payload,
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return &UpstreamError{Op: "upsert", Err: err}
	}
	return nil
}

func itemPayload(item Item) (map[string]*qdrant.Value, error) {
	payload := map[string]*qdrant.Value{}
	set := func(key, value string) error {
		v, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("converting %q: %w", key, err)
		}
		payload[key] = v
		return nil
	}
	fields := map[string]string{
		"observation_name":    item.ObservationName,
		"observation_content": item.ObservationContent,
		"action_name":         item.ActionName,
		"action_content":      item.ActionContent,
		"state_name":          item.StateName,
	}
	for key, value := range fields {
		if err := set(key, value); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (s *QdrantStore) QueryByVector(ctx context.Context, agentName string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	collection := collectionName(agentName)
	pointsClient := s.client.GetPointsClient()
	resp, err := pointsClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &UpstreamError{Op: "search", Err: err}
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, point := range resp.Result {
		matches = append(matches, Match{Item: scoredPointToItem(point), Score: point.Score})
	}
	return matches, nil
}

func scoredPointToItem(point *qdrant.ScoredPoint) Item {
	item := Item{}
	if point.Id != nil {
		switch idType := point.Id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			item.ID = idType.Uuid
		case *qdrant.PointId_Num:
			item.ID = fmt.Sprintf("%d", idType.Num)
		}
	}
	applyPayload(&item, point.Payload)
	return item
}

func applyPayload(item *Item, payload map[string]*qdrant.Value) {
	for key, value := range payload {
		sv, ok := value.Kind.(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		switch key {
		case "observation_name":
			item.ObservationName = sv.StringValue
		case "observation_content":
			item.ObservationContent = sv.StringValue
		case "action_name":
			item.ActionName = sv.StringValue
		case "action_content":
			item.ActionContent = sv.StringValue
		case "state_name":
			item.StateName = sv.StringValue
		}
	}
}

func (s *QdrantStore) List(ctx context.Context, agentName string, offset, limit int) ([]Item, error) {
	collection := collectionName(agentName)
	scrollLimit := uint32(offset + limit)
	if scrollLimit == 0 {
		scrollLimit = 1000
	}
	resp, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &scrollLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &UpstreamError{Op: "scroll", Err: err}
	}

	items := make([]Item, 0, len(resp))
	for _, point := range resp {
		item := Item{}
		if point.Id != nil {
			switch idType := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				item.ID = idType.Uuid
			case *qdrant.PointId_Num:
				item.ID = fmt.Sprintf("%d", idType.Num)
			}
		}
		applyPayload(&item, point.Payload)
		items = append(items, item)
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

func (s *QdrantStore) DeleteCollection(ctx context.Context, agentName string) error {
	if err := s.client.DeleteCollection(ctx, collectionName(agentName)); err != nil {
		return &UpstreamError{Op: "delete_collection", Err: err}
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
