package feedback

import (
	"context"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentstep/embedder"
)

// Learn ingests a batch of feedback items for agentName: it ensures the
// agent's collection exists, embeds each item's tags, and upserts the
// vectors. Items without an ID are assigned one. This is the logic behind
// the external facade's learn endpoint.
func Learn(ctx context.Context, store Store, embed embedder.Client, agentName string, items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if err := store.EnsureCollection(ctx, agentName, embed.Dimension()); err != nil {
		return nil, err
	}

	tags := make([]string, len(items))
	for i, item := range items {
		tags[i] = embedder.Sanitize(item.Tags())
	}
	vectors, err := embed.EmbedTexts(ctx, tags, true)
	if err != nil {
		return nil, err
	}

	out := make([]Item, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if err := store.Upsert(ctx, agentName, item, vectors[i]); err != nil {
			return out, err
		}
		out[i] = item
	}
	return out, nil
}
