package llm

import (
	"context"

	"github.com/Montinou/interview-companion-sub000/provider"
)

// Provider is the interface LLM backends must implement.
type Provider interface {
	provider.Provider // Name() and IsAvailable()

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStructured sends a completion request expecting structured
	// JSON output. The schema parameter hints at the desired shape.
	CompleteStructured(ctx context.Context, req CompletionRequest, schema any) (*CompletionResponse, error)
}

// AsRequestResponse adapts a Provider to the generic RequestResponse
// contract so it composes with WithResilience and other middleware.
func AsRequestResponse(p Provider) provider.RequestResponse[CompletionRequest, CompletionResponse] {
	return &rrAdapter{p: p}
}

type rrAdapter struct {
	p Provider
}

func (a *rrAdapter) Name() string                         { return a.p.Name() }
func (a *rrAdapter) IsAvailable(ctx context.Context) bool { return a.p.IsAvailable(ctx) }

func (a *rrAdapter) Execute(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := a.p.Complete(ctx, req)
	if err != nil {
		return CompletionResponse{}, err
	}
	return *resp, nil
}
