package store

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract for the pipeline. Every operation is
// scoped by interview id. Implementations must never leak data across
// interviews.
type Store interface {
	CreateInterview(ctx context.Context, iv *Interview) error
	GetInterview(ctx context.Context, id uuid.UUID) (*Interview, error)
	UpdateInterviewStatus(ctx context.Context, id uuid.UUID, status string) error

	// AssignRoles sets the speaker role map exactly once. It returns
	// false without modifying anything when roles are already assigned,
	// so concurrent callers race safely on the guard, not on the data.
	AssignRoles(ctx context.Context, id uuid.UUID, host, guest string) (bool, error)

	// BackfillRoles labels already-stored transcript entries with their
	// resolved role. Returns the number of entries updated.
	BackfillRoles(ctx context.Context, id uuid.UUID, host, guest string) (int64, error)

	AppendTranscript(ctx context.Context, entries ...*TranscriptEntry) error
	CountTranscript(ctx context.Context, interviewID uuid.UUID) (int64, error)

	// EarliestTranscript returns the first n entries in chronological order.
	EarliestTranscript(ctx context.Context, interviewID uuid.UUID, n int) ([]TranscriptEntry, error)
	ListTranscript(ctx context.Context, interviewID uuid.UUID) ([]TranscriptEntry, error)

	AppendInsight(ctx context.Context, in *Insight) error

	// LatestInsights returns up to n most recent insights, newest first.
	LatestInsights(ctx context.Context, interviewID uuid.UUID, n int) ([]Insight, error)
	ListInsights(ctx context.Context, interviewID uuid.UUID) ([]Insight, error)
	MarkInsightUsed(ctx context.Context, insightID uuid.UUID) error

	UpsertScorecard(ctx context.Context, sc *Scorecard) error
	GetScorecard(ctx context.Context, interviewID uuid.UUID) (*Scorecard, error)
}
