// Package feedback implements the vector-indexed memory an agent consults
// before selecting actions: past (observation, action, state) exemplars
// retrievable by embedding similarity, grounded on the pack's Qdrant
// database provider.
package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Item is one stored Feedback tuple, matching the data model's Feedback
// type: an observation paired with the action taken in response and the
// state the agent was in when it acted.
type Item struct {
	ID                 string
	ObservationName    string
	ObservationContent string
	ActionName         string
	ActionContent      string
	StateName          string
}

// Tags derives the stable string embedded as the Item's index vector:
// observation plus state, the two fields that describe the situation the
// feedback applies to. It must be pure: re-tagging the same Item twice
// yields the same string, so re-embedding it twice yields the same vector.
func (i Item) Tags() string {
	return fmt.Sprintf("%s|%s", i.ObservationName, i.StateName)
}

// DedupKey identifies duplicate recalls: unlike Tags it includes the
// action, so two different responses to the same situation both survive
// deduplication.
func (i Item) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s", i.ObservationName, i.ActionName, i.StateName)
}

// TagsHash is a convenience fingerprint of Tags(), handy when callers do
// not want to keep the full string around.
func (i Item) TagsHash() string {
	sum := sha256.Sum256([]byte(i.Tags()))
	return hex.EncodeToString(sum[:])
}

// Match is a retrieved Item plus its similarity score.
type Match struct {
	Item  Item
	Score float32
}

// Store is the vector-backed feedback memory contract. One collection per
// agent name isolates feedback across agents sharing a cluster.
type Store interface {
	EnsureCollection(ctx context.Context, agentName string, dim int) error
	Upsert(ctx context.Context, agentName string, item Item, vector []float32) error
	QueryByVector(ctx context.Context, agentName string, vector []float32, topK int) ([]Match, error)
	List(ctx context.Context, agentName string, offset, limit int) ([]Item, error)
	DeleteCollection(ctx context.Context, agentName string) error
}

// UpstreamError wraps a Store backend failure (network, auth, malformed
// payload) that the caller should treat as a transient infrastructure fault.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("feedback: %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Dedup removes Matches that share the same (observation, action, state)
// key, keeping the highest-scoring occurrence of each, per the Feedback
// Store's recall-policy deduplication rule.
func Dedup(matches []Match) []Match {
	best := map[string]Match{}
	order := []string{}
	for _, m := range matches {
		key := m.Item.DedupKey()
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = m
			continue
		}
		if m.Score > existing.Score {
			best[key] = m
		}
	}
	out := make([]Match, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}
