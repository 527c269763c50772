package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/llm"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/provider"
	"github.com/Montinou/interview-companion-sub000/store"
)

// RoleResolver infers which diarized speaker is the interviewer and
// which is the candidate, once enough utterances exist, then backfills
// the mapping onto stored entries.
type RoleResolver struct {
	llm       provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse]
	store     store.Store
	threshold int
	timeout   time.Duration
	log       *logger.Logger
}

// NewRoleResolver creates a resolver. A threshold below 1 defaults to 5,
// a timeout of 0 to 30 seconds.
func NewRoleResolver(p provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse], s store.Store, threshold int, timeout time.Duration, log *logger.Logger) *RoleResolver {
	if threshold < 1 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RoleResolver{llm: p, store: s, threshold: threshold, timeout: timeout, log: log.WithComponent("roles")}
}

type roleResponse struct {
	Host       string  `json:"host"`
	Guest      string  `json:"guest"`
	Confidence float64 `json:"confidence"`
}

// MaybeResolve runs role resolution when the transcript has reached the
// threshold and roles are not assigned yet. It is safe to call on every
// batch: below the threshold or after assignment it is a cheap no-op.
// Classifier failures leave roles unassigned so a later call retries.
func (r *RoleResolver) MaybeResolve(ctx context.Context, interviewID uuid.UUID) error {
	iv, err := r.store.GetInterview(ctx, interviewID)
	if err != nil {
		return err
	}
	if iv.RolesAssigned {
		return nil
	}

	count, err := r.store.CountTranscript(ctx, interviewID)
	if err != nil {
		return err
	}
	if count < int64(r.threshold) {
		return nil
	}

	entries, err := r.store.EarliestTranscript(ctx, interviewID, r.threshold)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var resp roleResponse
	if err := llm.CompleteStructured(callCtx, r.llm, roleSystemPrompt, buildRolePrompt(entries), &resp); err != nil {
		r.log.Warn("role resolution failed, will retry at next threshold check",
			logger.Fields("error", err.Error()))
		return nil
	}
	if resp.Host == "" || resp.Guest == "" || resp.Host == resp.Guest {
		r.log.Warn("role resolution inconclusive, will retry",
			logger.Fields("host", resp.Host, "guest", resp.Guest))
		return nil
	}

	won, err := r.store.AssignRoles(ctx, interviewID, resp.Host, resp.Guest)
	if err != nil {
		return err
	}
	if !won {
		// A concurrent caller got there first.
		return nil
	}

	updated, err := r.store.BackfillRoles(ctx, interviewID, resp.Host, resp.Guest)
	if err != nil {
		return err
	}
	r.log.Info("speaker roles assigned", logger.Fields(
		"host", resp.Host, "guest", resp.Guest,
		"confidence", resp.Confidence, "backfilled", updated))
	return nil
}
