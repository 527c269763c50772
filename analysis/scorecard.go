package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/errors"
	"github.com/Montinou/interview-companion-sub000/llm"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/provider"
	"github.com/Montinou/interview-companion-sub000/store"
)

// Synthesizer performs the terminal reduction of transcript plus insight
// log into one scorecard per interview.
type Synthesizer struct {
	llm     provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse]
	store   store.Store
	timeout time.Duration
	log     *logger.Logger
}

// NewSynthesizer creates a synthesizer. A timeout of 0 defaults to 60
// seconds, higher than the per-batch tiers since this call sees the
// whole transcript.
func NewSynthesizer(p provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse], s store.Store, timeout time.Duration, log *logger.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Synthesizer{llm: p, store: s, timeout: timeout, log: log.WithComponent("scorecard")}
}

type scorecardResponse struct {
	Scores         map[string]int  `json:"scores"`
	OverallScore   int             `json:"overall_score"`
	Recommendation string          `json:"recommendation"`
	Strengths      []store.Finding `json:"strengths"`
	Weaknesses     []store.Finding `json:"weaknesses"`
	Summary        string          `json:"summary"`
	Notes          string          `json:"notes"`
}

// Synthesize builds and upserts the scorecard. Re-running overwrites the
// existing row instead of duplicating it. A synthesis failure surfaces
// as an error; nothing partial is written.
func (s *Synthesizer) Synthesize(ctx context.Context, interviewID uuid.UUID) (*store.Scorecard, error) {
	entries, err := s.store.ListTranscript(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.InvalidInput("interview", "no transcript to synthesize")
	}
	insights, err := s.store.ListInsights(ctx, interviewID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp scorecardResponse
	err = llm.CompleteStructured(callCtx, s.llm, scorecardSystemPrompt,
		buildScorecardPrompt(renderTranscript(entries), insights), &resp)
	if err != nil {
		return nil, errors.UnparseableResponse("scorecard synthesis", err)
	}
	if len(resp.Scores) == 0 || resp.Recommendation == "" {
		return nil, errors.UnparseableResponse("scorecard synthesis", nil).
			WithDetail("reason", "missing scores or recommendation")
	}

	sc := &store.Scorecard{
		InterviewID:    interviewID,
		Scores:         clampScores(resp.Scores),
		OverallScore:   clampScore(resp.OverallScore),
		Recommendation: normalizeRecommendation(resp.Recommendation),
		Strengths:      resp.Strengths,
		Weaknesses:     resp.Weaknesses,
		Summary:        resp.Summary,
		Notes:          resp.Notes,
	}
	if err := s.store.UpsertScorecard(ctx, sc); err != nil {
		return nil, err
	}
	s.log.Info("scorecard synthesized", logger.Fields(
		"interview_id", interviewID.String(),
		"overall", sc.OverallScore, "recommendation", sc.Recommendation))
	return sc, nil
}

func renderTranscript(entries []store.TranscriptEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		label := "Speaker " + e.SpeakerID
		if e.SpeakerRole != nil {
			switch *e.SpeakerRole {
			case store.RoleHost:
				label = "Interviewer"
			case store.RoleGuest:
				label = "Candidate"
			}
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(e.Text)
	}
	return b.String()
}

func clampScores(scores map[string]int) map[string]int {
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		out[k] = clampScore(v)
	}
	return out
}

func clampScore(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func normalizeRecommendation(r string) string {
	switch r {
	case store.RecommendStrongHire, store.RecommendHire, store.RecommendNoHire, store.RecommendStrongNo:
		return r
	default:
		return store.RecommendNoHire
	}
}
