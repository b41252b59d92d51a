// Package embedding defines how text is turned into vectors for the index.
package embedding

import "context"

// Embedder converts free text into a fixed-size numeric vector.
// Dimension may be zero until the first successful Embed call for remote
// backends that learn it from the response.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IsZero reports whether v carries no signal, e.g. a query made only of stopwords.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
