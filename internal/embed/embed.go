package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Embedder turns texts into fixed-dimension vectors. The dimension is part
// of the family identity and must match the index it is used with.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Family() string
}

var (
	// ErrUnknownFamily is returned for an unrecognized family identifier.
	ErrUnknownFamily = errors.New("unknown embedding family")

	// ErrDimensionMismatch is returned when vectors do not have the
	// dimension of the family that produced or consumes them.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Settings carry the credentials and endpoints the families need.
type Settings struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OllamaURL        string
	OllamaDimensions int
	Log              *slog.Logger
}

// ForFamily resolves a family identifier such as
// "openai:text-embedding-3-small", "ollama:nomic-embed-text" or
// "local:hashed-bow-384" into an Embedder.
func ForFamily(family string, s Settings) (Embedder, error) {
	kind, model, ok := strings.Cut(family, ":")
	if !ok || model == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	switch kind {
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:  s.OpenAIAPIKey,
			BaseURL: s.OpenAIBaseURL,
			Model:   model,
			Log:     s.Log,
		})
	case "ollama":
		return NewOllama(model, s.OllamaURL, s.OllamaDimensions), nil
	case "local":
		dims, err := hashedDimensions(model)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
		}
		return NewHashed(dims), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
}

func hashedDimensions(model string) (int, error) {
	rest, ok := strings.CutPrefix(model, "hashed-bow-")
	if !ok {
		return 0, fmt.Errorf("not a hashed family: %s", model)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad dimension %q", rest)
	}
	return n, nil
}

// Query embeds a single query string.
func Query(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	return vecs[0], nil
}
