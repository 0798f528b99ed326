package port

import (
	"context"

	"hybridrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding of text for the given mode.
	Embed(ctx context.Context, text string, mode domain.EmbedMode) ([]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}
