package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFamily(t *testing.T) {
	e, err := ForFamily("local:hashed-bow-384", Settings{})
	require.NoError(t, err)
	assert.Equal(t, 384, e.Dimensions())
	assert.Equal(t, "local:hashed-bow-384", e.Family())

	e, err = ForFamily("ollama:nomic-embed-text", Settings{OllamaDimensions: 768})
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", e.Family())
	assert.Equal(t, 768, e.Dimensions())

	e, err = ForFamily("openai:text-embedding-3-small", Settings{OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimensions())

	_, err = ForFamily("openai:text-embedding-3-small", Settings{})
	assert.Error(t, err)

	for _, bad := range []string{"", "hf:all-MiniLM-L6-v2", "local:tfidf", "local:hashed-bow-0", "openai:"} {
		_, err := ForFamily(bad, Settings{})
		assert.ErrorIs(t, err, ErrUnknownFamily, bad)
	}
}

func TestHashed_DeterministicAndNormalized(t *testing.T) {
	h := NewHashed(64)
	vecs, err := h.Embed(context.Background(), []string{"binary heap insert", "binary heap insert", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[0], vecs[1])

	for _, v := range vecs {
		assert.Len(t, v, 64)
		var norm float64
		for _, f := range v {
			norm += float64(f) * float64(f)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	}
}

func TestHashed_SimilarTextsCloser(t *testing.T) {
	h := NewHashed(384)
	vecs, _ := h.Embed(context.Background(), []string{
		"dijkstra shortest path graph",
		"shortest path in a weighted graph",
		"combinatorial counting permutations",
	})
	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestOpenAI_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		type item struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float64{float64(i), 0.5}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)
	vecs, err := o.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i), 0.5}, v)
	}
}

func TestOpenAI_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input"}}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = o.Embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "status 400")
	assert.Equal(t, 1, calls)
}

func TestOpenAI_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"embedding": []float64{0.1, 0.2, 0.3}, "index": 0},
		}})
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = o.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorContains(t, err, "returned 3 dimensions, expected 1536")
}

func TestOllama_DimensionMismatch(t *testing.T) {
	o := &Ollama{
		fn: func(context.Context, string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
		model: "nomic-embed-text",
		dims:  768,
	}
	_, err := o.Embed(context.Background(), []string{"heap"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	o.dims = 3
	vecs, err := o.Embed(context.Background(), []string{"heap", "stack"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

func TestOpenAI_SplitsByTokenBudget(t *testing.T) {
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sizes = append(sizes, len(req.Input))
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": []float64{1}, "index": i}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, MaxBatchTokens: 30, Dimensions: 1})
	require.NoError(t, err)
	text := strings.Repeat("word ", 10)
	vecs, err := o.Embed(context.Background(), []string{text, text, text, text, text})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("x"))
	assert.Equal(t, 13, EstimateTokens(strings.Repeat("w ", 10)))
}

func TestQuery(t *testing.T) {
	v, err := Query(context.Background(), NewHashed(8), "heap")
	require.NoError(t, err)
	assert.Len(t, v, 8)
}
