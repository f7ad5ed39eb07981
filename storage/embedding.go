package storage

import (
	"context"
	"math"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns texts into vectors. The result has one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint (OpenAI, Volcengine Ark).
type OpenAIEmbedder struct {
	cli       *openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an embedder. Vectors longer than dimension are truncated and
// L2-normalised; dimension <= 0 keeps the model's size.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimension int) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		cli:       openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:          openai.EmbeddingModel(e.model),
		Input:          texts,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, errors.Wrap(err, "embedding API failed")
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.Errorf("embedding API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, errors.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		vec := d.Embedding
		if e.dimension > 0 && len(vec) > e.dimension {
			vec = slicedNormL2(vec, e.dimension)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, errors.Errorf("embedding API returned no vector for input %d", i)
		}
	}
	return out, nil
}

// slicedNormL2 keeps the first dim components and L2-normalises them.
// Volcengine doubao embeddings support this reduction to 512, 1024 and 2048.
func slicedNormL2(vec []float32, dim int) []float32 {
	if dim > len(vec) {
		dim = len(vec)
	}

	sliced := make([]float32, dim)
	copy(sliced, vec[:dim])

	var norm float64
	for _, v := range sliced {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	if norm > 0 {
		for i := range sliced {
			sliced[i] = float32(float64(sliced[i]) / norm)
		}
	}
	return sliced
}

// IsVolcengineModel reports whether model is a Volcengine doubao embedding model.
func IsVolcengineModel(model string) bool {
	return model == "doubao-embedding-text-240715" || model == "doubao-embedding-text-240515"
}
