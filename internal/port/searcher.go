package port

import (
	"context"

	"hybridrag/internal/domain"
)

// Searcher ranks the current corpus against a query and returns the top-k documents.
type Searcher interface {
	Search(ctx context.Context, query string, k int) (domain.Result, error)
}
