package domain

import "errors"

var (
	// ErrNoExtractableContent indicates a file produced no units after loading and chunking.
	ErrNoExtractableContent = errors.New("no extractable content")

	// ErrDependencyUnavailable indicates an embedding, index or generation backend failed to start.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDimension indicates a vector store was initialised with a non-positive dimension.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrNotInitialized indicates a vector store was used before Init.
	ErrNotInitialized = errors.New("vector store not initialised")

	// ErrDimensionMismatch indicates a vector does not match the store dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
