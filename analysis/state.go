package analysis

import (
	"context"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/store"
)

// StateTracker derives the differential analysis state for an interview.
// The production implementation reads the insight log; tests can supply
// a fake.
type StateTracker interface {
	// LoadLatest returns the state as of the most recent insights. Before
	// any insight exists it returns the initial sentinel state.
	LoadLatest(ctx context.Context, interviewID uuid.UUID) (State, error)

	// Append records a newly persisted insight so it becomes part of the
	// state seen by the next LoadLatest.
	Append(ctx context.Context, insight *store.Insight) error
}

// InsightLogTracker implements StateTracker on the insight log itself:
// state is whatever the latest rows say. Appending is just persisting
// the insight, which keeps state crash-safe with no separate store to
// fall out of sync.
type InsightLogTracker struct {
	store  store.Store
	window int
}

// NewInsightLogTracker creates a tracker reading the last window insights.
// A window below 1 is treated as 1.
func NewInsightLogTracker(s store.Store, window int) *InsightLogTracker {
	if window < 1 {
		window = 1
	}
	return &InsightLogTracker{store: s, window: window}
}

func (t *InsightLogTracker) LoadLatest(ctx context.Context, interviewID uuid.UUID) (State, error) {
	latest, err := t.store.LatestInsights(ctx, interviewID, t.window)
	if err != nil {
		return State{}, err
	}
	if len(latest) == 0 {
		return State{Initial: true}, nil
	}

	// latest[0] is the newest row; it carries sentiment and scores.
	st := State{LastContent: latest[0].Content}
	if latest[0].Sentiment != nil {
		st.Sentiment = *latest[0].Sentiment
	}
	if len(latest[0].RunningScores) > 0 {
		st.RunningScores = latest[0].RunningScores
	}

	seen := map[string]bool{}
	for _, in := range latest {
		if in.Topic != nil && *in.Topic != "" && !seen[*in.Topic] {
			seen[*in.Topic] = true
			st.Topics = append(st.Topics, *in.Topic)
		}
	}
	return st, nil
}

func (t *InsightLogTracker) Append(ctx context.Context, insight *store.Insight) error {
	return t.store.AppendInsight(ctx, insight)
}
