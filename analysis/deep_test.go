package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/store"
)

const sampleBatch = "Candidate: I sharded the user table by region and moved sessions to Redis"

func TestAnalyzeKeepsVerbatimEvidence(t *testing.T) {
	s := &scriptedLLM{responses: []string{
		`{"insights":[{"type":"green-flag","severity":"success",
		  "content":"Concrete scaling experience",
		  "evidence":"sharded the user table by region"}],
		  "sentiment":"positive","running_scores":{"technical":7}}`,
	}}
	a := NewAnalyzer(s.rr(), time.Second, testLogger())

	got, err := a.Analyze(context.Background(), uuid.New(), sampleBatch, "scaling claim", RecentContext{}, State{Initial: true}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d insights, want 1", len(got))
	}
	in := got[0]
	if in.Evidence == nil || !strings.Contains(sampleBatch, *in.Evidence) {
		t.Errorf("evidence %v not a substring of the batch", in.Evidence)
	}
	if in.Sentiment == nil || *in.Sentiment != "positive" {
		t.Errorf("sentiment = %v, want positive", in.Sentiment)
	}
	if in.RunningScores["technical"] != 7 {
		t.Errorf("running scores = %v, want technical 7", in.RunningScores)
	}
}

func TestAnalyzeDropsFabricatedEvidence(t *testing.T) {
	s := &scriptedLLM{responses: []string{
		`{"insights":[{"type":"red-flag","severity":"warning",
		  "content":"Vague answer",
		  "evidence":"this quote does not appear anywhere"}],
		  "sentiment":"neutral"}`,
	}}
	a := NewAnalyzer(s.rr(), time.Second, testLogger())

	got, err := a.Analyze(context.Background(), uuid.New(), sampleBatch, "r", RecentContext{}, State{Initial: true}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d insights, want 1", len(got))
	}
	if got[0].Evidence != nil {
		t.Errorf("fabricated evidence kept: %q", *got[0].Evidence)
	}
}

func TestAnalyzeNormalizesUnknownTypeAndSeverity(t *testing.T) {
	s := &scriptedLLM{responses: []string{
		`{"insights":[{"type":"observation","severity":"urgent","content":"something"}]}`,
	}}
	a := NewAnalyzer(s.rr(), time.Second, testLogger())

	got, err := a.Analyze(context.Background(), uuid.New(), sampleBatch, "r", RecentContext{}, State{Initial: true}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got[0].Type != store.InsightNote || got[0].Severity != store.SeverityInfo {
		t.Errorf("type/severity = %s/%s, want note/info", got[0].Type, got[0].Severity)
	}
}

func TestAnalyzeZeroInsightsIsValid(t *testing.T) {
	s := &scriptedLLM{responses: []string{`{"insights":[],"sentiment":"neutral"}`}}
	a := NewAnalyzer(s.rr(), time.Second, testLogger())

	got, err := a.Analyze(context.Background(), uuid.New(), sampleBatch, "r", RecentContext{}, State{Initial: true}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d insights, want 0", len(got))
	}
}

func TestAnalyzeReturnsErrorOnFailure(t *testing.T) {
	s := &scriptedLLM{responses: []string{""}, errs: []error{errors.New("timeout")}}
	a := NewAnalyzer(s.rr(), time.Second, testLogger())

	if _, err := a.Analyze(context.Background(), uuid.New(), sampleBatch, "r", RecentContext{}, State{Initial: true}, nil); err == nil {
		t.Error("want error from failing classifier")
	}
}

func TestFallbackNoteShape(t *testing.T) {
	id := uuid.New()
	in := FallbackNote(id, errors.New("deadline exceeded"))
	if in.Type != store.InsightNote || in.Severity != store.SeverityInfo {
		t.Errorf("type/severity = %s/%s, want note/info", in.Type, in.Severity)
	}
	if in.InterviewID != id {
		t.Errorf("interview id = %s, want %s", in.InterviewID, id)
	}
	if !strings.Contains(in.Content, "deadline exceeded") {
		t.Errorf("content %q does not carry the failure text", in.Content)
	}
}
