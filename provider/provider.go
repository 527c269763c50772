// Package provider defines small, generic contracts for external
// collaborators (classification services, speech backends) plus
// composable middleware for resilience and state.
package provider

import "context"

// Provider is the base interface all providers implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from configuration.
type Factory[T Provider] func(cfg map[string]any) (T, error)

// RequestResponse is a provider that takes one input and returns one
// output: an HTTP call, a chat completion, a SQL query.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Func adapts a bare function into a RequestResponse provider. It is
// always available.
func Func[I, O any](name string, fn func(ctx context.Context, input I) (O, error)) RequestResponse[I, O] {
	return &funcRR[I, O]{name: name, fn: fn}
}

type funcRR[I, O any] struct {
	name string
	fn   func(ctx context.Context, input I) (O, error)
}

func (f *funcRR[I, O]) Name() string                       { return f.name }
func (f *funcRR[I, O]) IsAvailable(context.Context) bool   { return true }
func (f *funcRR[I, O]) Execute(ctx context.Context, in I) (O, error) {
	return f.fn(ctx, in)
}
