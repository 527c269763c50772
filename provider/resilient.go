package provider

import (
	"context"
	stderrors "errors"

	"github.com/Montinou/interview-companion-sub000/errors"
	"github.com/Montinou/interview-companion-sub000/resilience"
)

// ResilienceConfig selects which resilience layers wrap a provider.
// Nil fields are skipped.
type ResilienceConfig struct {
	Retry          *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreakerConfig
}

// IsEmpty reports whether no layer is configured.
func (c ResilienceConfig) IsEmpty() bool {
	return c.Retry == nil && c.CircuitBreaker == nil
}

// WithResilience wraps a RequestResponse provider with retry and circuit
// breaker middleware. Execution chain: CircuitBreaker -> Retry -> Execute.
func WithResilience[I, O any](p RequestResponse[I, O], cfg ResilienceConfig) RequestResponse[I, O] {
	if cfg.IsEmpty() {
		return p
	}
	r := &resilientRR[I, O]{inner: p, retryCfg: cfg.Retry}
	if cfg.CircuitBreaker != nil {
		r.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	return r
}

type resilientRR[I, O any] struct {
	inner    RequestResponse[I, O]
	retryCfg *resilience.RetryConfig
	cb       *resilience.CircuitBreaker
}

func (r *resilientRR[I, O]) Name() string                         { return r.inner.Name() }
func (r *resilientRR[I, O]) IsAvailable(ctx context.Context) bool { return r.inner.IsAvailable(ctx) }

func (r *resilientRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	call := func() (O, error) {
		return r.inner.Execute(ctx, input)
	}

	if r.retryCfg != nil {
		retryCfg := *r.retryCfg
		inner := call
		call = func() (O, error) {
			return resilience.Retry(ctx, retryCfg, inner)
		}
	}

	if r.cb != nil {
		var result O
		var resultErr error
		cbErr := r.cb.Execute(func() error {
			result, resultErr = call()
			return resultErr
		})
		if cbErr != nil && resultErr == nil {
			return result, wrapResilienceError(r.inner.Name(), cbErr)
		}
		return result, resultErr
	}

	return call()
}

// wrapResilienceError converts resilience sentinels to AppError so
// callers handle one error shape.
func wrapResilienceError(name string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, resilience.ErrCircuitOpen):
		return errors.ExternalServiceError(name, err)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Timeout(name).WithCause(err)
	default:
		return err
	}
}
