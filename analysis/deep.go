package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/llm"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/provider"
	"github.com/Montinou/interview-companion-sub000/store"
)

// Analyzer is the expensive tier-2 classifier. It is only invoked for
// batches the filter escalated.
type Analyzer struct {
	llm     provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse]
	timeout time.Duration
	log     *logger.Logger
}

// NewAnalyzer creates an analyzer. A timeout of 0 defaults to 30 seconds.
func NewAnalyzer(p provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse], timeout time.Duration, log *logger.Logger) *Analyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Analyzer{llm: p, timeout: timeout, log: log.WithComponent("analyzer")}
}

type deepInsight struct {
	Type            string  `json:"type"`
	Severity        string  `json:"severity"`
	Content         string  `json:"content"`
	Suggestion      *string `json:"suggestion"`
	Topic           *string `json:"topic"`
	Evidence        *string `json:"evidence"`
	ResponseQuality *int    `json:"response_quality"`
}

type deepResponse struct {
	Insights      []deepInsight  `json:"insights"`
	Sentiment     string         `json:"sentiment"`
	RunningScores map[string]int `json:"running_scores"`
}

// Analyze produces zero or more insights for an escalated batch. The
// caller supplies the differential state and the already-generated list
// so the model can avoid repeats. Evidence that is not a verbatim
// substring of the batch is dropped rather than passed through.
func (a *Analyzer) Analyze(ctx context.Context, interviewID uuid.UUID, batch, reason string, rc RecentContext, state State, prior []store.Insight) ([]*store.Insight, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var resp deepResponse
	err := llm.CompleteStructured(ctx, a.llm, deepSystemPrompt,
		buildDeepPrompt(batch, reason, rc, state, prior), &resp)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	insights := make([]*store.Insight, 0, len(resp.Insights))
	for i, di := range resp.Insights {
		in := &store.Insight{
			InterviewID:     interviewID,
			Type:            normalizeType(di.Type),
			Severity:        normalizeSeverity(di.Severity),
			Content:         strings.TrimSpace(di.Content),
			Suggestion:      di.Suggestion,
			Topic:           di.Topic,
			ResponseQuality: di.ResponseQuality,
			RunningScores:   resp.RunningScores,
			Timestamp:       now.Add(time.Duration(i) * time.Millisecond),
		}
		if in.Content == "" {
			continue
		}
		if resp.Sentiment != "" {
			s := resp.Sentiment
			in.Sentiment = &s
		}
		if di.Evidence != nil && *di.Evidence != "" {
			if strings.Contains(batch, *di.Evidence) {
				in.Evidence = di.Evidence
			} else {
				a.log.Debug("dropping fabricated evidence", logger.Fields("evidence", *di.Evidence))
			}
		}
		insights = append(insights, in)
	}
	return insights, nil
}

func normalizeType(t string) string {
	switch t {
	case store.InsightRedFlag, store.InsightGreenFlag, store.InsightSuggestion,
		store.InsightNote, store.InsightContradiction:
		return t
	default:
		return store.InsightNote
	}
}

func normalizeSeverity(s string) string {
	switch s {
	case store.SeverityCritical, store.SeverityWarning, store.SeverityInfo, store.SeveritySuccess:
		return s
	default:
		return store.SeverityInfo
	}
}

// FallbackNote builds the note insight persisted when deep analysis
// fails, so every escalated batch leaves a visible trace.
func FallbackNote(interviewID uuid.UUID, cause error) *store.Insight {
	return &store.Insight{
		InterviewID: interviewID,
		Type:        store.InsightNote,
		Severity:    store.SeverityInfo,
		Content:     fmt.Sprintf("deep analysis failed for this chunk: %v", cause),
		Timestamp:   time.Now(),
	}
}
