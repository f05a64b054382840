// Package embedder defines the Embedder capability boundary spec.md §6
// expects from the external collaborator that owns the actual model.
package embedder

import "context"

// Embedder turns text into fixed-dimension, unit-normalized dense
// vectors. Loading and tokenization are opaque to the core; the core only
// consumes this interface.
type Embedder interface {
	// Encode returns one unit-normalized vector per input text, in the
	// same order as texts.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// Dim returns the vector dimension this embedder produces.
	Dim() int

	// IsReady reports whether the embedder is currently able to serve
	// Encode calls.
	IsReady() bool
}
