// Package analysis implements the two-tier escalation pipeline: a cheap
// filter decides per batch whether deep analysis is warranted, the deep
// analyzer produces evidence-backed insights using differential state,
// and terminal steps resolve speaker roles and synthesize the scorecard.
package analysis

import (
	"strings"

	"github.com/Montinou/interview-companion-sub000/store"
	"github.com/Montinou/interview-companion-sub000/transcript"
)

// Severity values the filter may hint. "none" means nothing noteworthy.
const SeverityNone = "none"

// TierDecision is the escalation filter's verdict for one batch.
type TierDecision struct {
	Escalate  bool   `json:"escalate"`
	Reason    string `json:"reason"`
	QuickNote string `json:"quick_note,omitempty"`
	Severity  string `json:"severity"`
	Topic     string `json:"topic,omitempty"`
}

// State is the differential context the deep analyzer consumes: what the
// most recent insights said, so it analyzes only what is new.
type State struct {
	// Initial is true before any insight exists for the interview.
	Initial bool
	// Sentiment is the most recent recorded sentiment.
	Sentiment string
	// Topics are the topics covered by the insights in the window.
	Topics []string
	// RunningScores are the most recent per-dimension running scores.
	RunningScores map[string]int
	// LastContent summarizes the most recent insight's content.
	LastContent string
}

// RecentContext is the rolling window of prior batch text plus counters
// the filter uses to judge a new batch.
type RecentContext struct {
	// Batches holds the text of the most recent flushed batches,
	// oldest first.
	Batches []string
	// ElapsedMinutes since capture started.
	ElapsedMinutes int
	// InsightCount emitted so far.
	InsightCount int
}

// Push appends batch text, keeping at most limit entries.
func (rc *RecentContext) Push(text string, limit int) {
	rc.Batches = append(rc.Batches, text)
	if len(rc.Batches) > limit {
		rc.Batches = rc.Batches[len(rc.Batches)-limit:]
	}
}

// renderBatch renders segments as speaker-labeled lines. Roles replace
// raw speaker ids once the interview's role map is assigned.
func renderBatch(segments []transcript.UtteranceSegment, iv *store.Interview) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(speakerLabel(seg.SpeakerID, iv))
		b.WriteString(": ")
		b.WriteString(seg.Text)
	}
	return b.String()
}

func speakerLabel(speakerID string, iv *store.Interview) string {
	if iv != nil && iv.RolesAssigned {
		switch {
		case iv.HostSpeakerID != nil && *iv.HostSpeakerID == speakerID:
			return "Interviewer"
		case iv.GuestSpeakerID != nil && *iv.GuestSpeakerID == speakerID:
			return "Candidate"
		}
	}
	return "Speaker " + speakerID
}
