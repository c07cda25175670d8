package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, stats *Stats) *Client {
	t.Helper()
	c, err := NewClient(Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: url,
		Stats:   stats,
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"content":[{"type":"text","text":"Heaps are "},{"type":"text","text":"trees."}]}`)
	}))
	defer srv.Close()

	stats := NewStats(time.Hour)
	c := newTestClient(t, srv.URL, stats)
	text, err := c.Complete(context.Background(), "ask", "be brief", "what is a heap?")
	require.NoError(t, err)
	assert.Equal(t, "Heaps are trees.", text)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 4096, got.MaxTokens)
	assert.Equal(t, "be brief", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "what is a heap?", got.Messages[0].Content)

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.ByOp["ask"].Count)
	assert.Equal(t, 0, snap.Failures)
}

func TestComplete_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	stats := NewStats(time.Hour)
	_, err := newTestClient(t, srv.URL, stats).Complete(context.Background(), "quiz", "", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, stats.Snapshot().Failures)
}

func TestComplete_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"content":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, nil).Complete(context.Background(), "ask", "", "x")
	assert.ErrorContains(t, err, "empty response")
}
