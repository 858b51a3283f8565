package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsZeroWidthAndControlChars(t *testing.T) {
	in := "hello​world\x01\nfoo\r\tbar"
	got := Sanitize(in)
	require.Equal(t, "helloworld foo \tbar", got)
}

func TestNewOpenAIClientAppliesDefaults(t *testing.T) {
	client, err := NewOpenAIClient(Config{APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, 1536, client.Dimension())
}

func TestNewOpenAIClientRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{})
	require.Error(t, err)
}

func TestEmbedTextsPreservesInputOrderWhenConcurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{}
		for i, text := range req.Input {
			vec := []float32{float32(len(text))}
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: vec, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL, BatchSize: 2})
	require.NoError(t, err)

	texts := []string{"a", "bb", "ccc", "dddd", "e"}
	vectors, err := client.EmbedTexts(context.Background(), texts, true)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		require.Equal(t, float32(len(text)), vectors[i][0])
	}
}
