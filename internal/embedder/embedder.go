// Package embedder provides interfaces and implementations for embedding
// listing descriptions and appraisal queries into dense vectors.
package embedder

import "context"

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// knownDimensions maps embedding model names to their output dimensions.
// Used to pick a dimension when the configuration leaves it unset.
var knownDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// DimensionFor returns the embedding dimension for a model, or a
// conservative default for unknown models.
func DimensionFor(modelName string) int {
	if d, ok := knownDimensions[modelName]; ok {
		return d
	}
	return 768
}
