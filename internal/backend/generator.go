// Package backend wraps the text-generation model behind a minimal
// interface. The engine treats it as a black box: one prompt in, one
// raw completion out, one call in flight at a time.
package backend

import (
	"context"
	"errors"
)

// Generator is the minimal capability the engine needs from a model.
// Implementations must be safe for sequential use; no concurrency
// guarantee is assumed beyond one call at a time.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ErrResourceExhausted reports that the backend refused or aborted a
// generation because the host is out of memory. The router converts
// this into a null result for the affected call and keeps going.
var ErrResourceExhausted = errors.New("backend: resource exhausted")

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}
