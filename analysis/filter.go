package analysis

import (
	"context"
	"time"

	"github.com/Montinou/interview-companion-sub000/llm"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/provider"
)

// Filter is the cheap tier-1 classifier. It gates the expensive analyzer
// and never persists anything itself.
type Filter struct {
	llm     provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse]
	timeout time.Duration
	log     *logger.Logger
}

// NewFilter creates a filter. A timeout of 0 defaults to 30 seconds.
func NewFilter(p provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse], timeout time.Duration, log *logger.Logger) *Filter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Filter{llm: p, timeout: timeout, log: log.WithComponent("filter")}
}

// Evaluate classifies one batch. It fails closed: any classifier error
// or unparseable output yields escalate=false, severity=none, so a
// broken classifier skips deep analysis instead of stalling the
// pipeline.
func (f *Filter) Evaluate(ctx context.Context, batch string, rc RecentContext) TierDecision {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var decision TierDecision
	err := llm.CompleteStructured(ctx, f.llm, filterSystemPrompt, buildFilterPrompt(batch, rc), &decision)
	if err != nil {
		f.log.Warn("escalation filter failed, not escalating", logger.Fields("error", err.Error()))
		return TierDecision{Escalate: false, Severity: SeverityNone, Reason: "filter error"}
	}
	if decision.Severity == "" {
		decision.Severity = SeverityNone
	}
	return decision
}
