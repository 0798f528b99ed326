package domain

import "errors"

var (
	// ErrEmbeddingUnavailable signals that no dense signal could be produced for the query.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrAlignmentViolation signals that sparse and dense scores do not cover the same documents.
	ErrAlignmentViolation = errors.New("score alignment violation")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrDimensionMismatch signals a vector dimension mismatch.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDuplicateDocument signals a repeated document id in one corpus.
	ErrDuplicateDocument = errors.New("duplicate document id")
	// ErrInvalidConfig signals a configuration value outside its allowed range.
	ErrInvalidConfig = errors.New("invalid config")
)
