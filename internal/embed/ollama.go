package embed

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// Ollama embeds through a local Ollama server using chromem's client.
type Ollama struct {
	fn    chromem.EmbeddingFunc
	model string
	dims  int
}

// NewOllama returns an Ollama embedder. dims is the model's declared
// output size and is checked on every response.
func NewOllama(model, baseURL string, dims int) *Ollama {
	if dims <= 0 {
		dims = 768
	}
	return &Ollama{
		fn:    chromem.NewEmbeddingFuncOllama(model, baseURL),
		model: model,
		dims:  dims,
	}
}

func (o *Ollama) Dimensions() int { return o.dims }
func (o *Ollama) Family() string  { return "ollama:" + o.model }

func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, t := range texts {
		v, err := o.fn(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("ollama embed %d: %w", i, err)
		}
		if len(v) != o.dims {
			return nil, fmt.Errorf("%w: ollama model %s returned %d dimensions, configured %d",
				ErrDimensionMismatch, o.model, len(v), o.dims)
		}
		out = append(out, v)
	}
	return out, nil
}
