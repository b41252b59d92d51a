// Package generation defines the model that writes answers from a prompt.
package generation

import "context"

// Generator produces a completion for a fully rendered prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
