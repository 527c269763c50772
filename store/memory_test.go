package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newInterview(t *testing.T, m *Memory) uuid.UUID {
	t.Helper()
	iv := &Interview{Title: "backend screen", CandidateName: "Jordan"}
	if err := m.CreateInterview(context.Background(), iv); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	return iv.ID
}

func addEntry(t *testing.T, m *Memory, id uuid.UUID, speaker, text string, at time.Time) {
	t.Helper()
	err := m.AppendTranscript(context.Background(), &TranscriptEntry{
		InterviewID: id, Timestamp: at, Text: text, SpeakerID: speaker, Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("AppendTranscript: %v", err)
	}
}

func TestAssignRolesIdempotent(t *testing.T) {
	m := NewMemory()
	id := newInterview(t, m)
	ctx := context.Background()

	won, err := m.AssignRoles(ctx, id, "0", "1")
	if err != nil {
		t.Fatalf("AssignRoles: %v", err)
	}
	if !won {
		t.Fatal("first AssignRoles lost the guard")
	}

	won, err = m.AssignRoles(ctx, id, "1", "0")
	if err != nil {
		t.Fatalf("second AssignRoles: %v", err)
	}
	if won {
		t.Error("second AssignRoles won, want no-op")
	}

	iv, err := m.GetInterview(ctx, id)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if *iv.HostSpeakerID != "0" || *iv.GuestSpeakerID != "1" {
		t.Errorf("role map = host %s guest %s, want host 0 guest 1",
			*iv.HostSpeakerID, *iv.GuestSpeakerID)
	}
}

func TestBackfillRolesLabelsOnlyUnassigned(t *testing.T) {
	m := NewMemory()
	id := newInterview(t, m)
	ctx := context.Background()
	base := time.Now()

	addEntry(t, m, id, "0", "tell me about your last project", base)
	addEntry(t, m, id, "1", "I built a payment reconciliation service", base.Add(time.Second))
	addEntry(t, m, id, "0", "what was the hardest part", base.Add(2*time.Second))

	updated, err := m.BackfillRoles(ctx, id, "0", "1")
	if err != nil {
		t.Fatalf("BackfillRoles: %v", err)
	}
	if updated != 3 {
		t.Errorf("updated = %d, want 3", updated)
	}

	// A second backfill finds nothing unassigned.
	updated, err = m.BackfillRoles(ctx, id, "0", "1")
	if err != nil {
		t.Fatalf("second BackfillRoles: %v", err)
	}
	if updated != 0 {
		t.Errorf("second backfill updated = %d, want 0", updated)
	}

	entries, _ := m.ListTranscript(ctx, id)
	wantRoles := []string{RoleHost, RoleGuest, RoleHost}
	for i, e := range entries {
		if e.SpeakerRole == nil || *e.SpeakerRole != wantRoles[i] {
			t.Errorf("entry %d role = %v, want %s", i, e.SpeakerRole, wantRoles[i])
		}
	}
}

func TestLatestInsightsNewestFirst(t *testing.T) {
	m := NewMemory()
	id := newInterview(t, m)
	ctx := context.Background()
	base := time.Now()

	for i, content := range []string{"first", "second", "third"} {
		err := m.AppendInsight(ctx, &Insight{
			InterviewID: id, Type: InsightNote, Severity: SeverityInfo,
			Content: content, Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendInsight: %v", err)
		}
	}

	latest, err := m.LatestInsights(ctx, id, 1)
	if err != nil {
		t.Fatalf("LatestInsights: %v", err)
	}
	if len(latest) != 1 || latest[0].Content != "third" {
		t.Errorf("latest = %+v, want single insight %q", latest, "third")
	}

	all, _ := m.ListInsights(ctx, id)
	if len(all) != 3 || all[0].Content != "first" {
		t.Errorf("ListInsights order wrong: %+v", all)
	}
}

func TestUpsertScorecardSingleRow(t *testing.T) {
	m := NewMemory()
	id := newInterview(t, m)
	ctx := context.Background()

	first := &Scorecard{InterviewID: id, OverallScore: 6, Recommendation: RecommendHire}
	if err := m.UpsertScorecard(ctx, first); err != nil {
		t.Fatalf("UpsertScorecard: %v", err)
	}

	second := &Scorecard{InterviewID: id, OverallScore: 8, Recommendation: RecommendStrongHire}
	if err := m.UpsertScorecard(ctx, second); err != nil {
		t.Fatalf("second UpsertScorecard: %v", err)
	}

	got, err := m.GetScorecard(ctx, id)
	if err != nil {
		t.Fatalf("GetScorecard: %v", err)
	}
	if got.OverallScore != 8 || got.Recommendation != RecommendStrongHire {
		t.Errorf("got score %d rec %s, want 8 %s", got.OverallScore, got.Recommendation, RecommendStrongHire)
	}
	if got.ID != first.ID {
		t.Errorf("upsert created a new row: id %s != %s", got.ID, first.ID)
	}
}

func TestMarkInsightUsed(t *testing.T) {
	m := NewMemory()
	id := newInterview(t, m)
	ctx := context.Background()

	in := &Insight{InterviewID: id, Type: InsightSuggestion, Severity: SeverityInfo, Content: "ask about indexing"}
	if err := m.AppendInsight(ctx, in); err != nil {
		t.Fatalf("AppendInsight: %v", err)
	}
	if err := m.MarkInsightUsed(ctx, in.ID); err != nil {
		t.Fatalf("MarkInsightUsed: %v", err)
	}

	all, _ := m.ListInsights(ctx, id)
	if !all[0].Used {
		t.Error("insight not marked used")
	}

	if err := m.MarkInsightUsed(ctx, uuid.New()); err == nil {
		t.Error("MarkInsightUsed on unknown id returned nil error")
	}
}

func TestGetInterviewNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetInterview(context.Background(), uuid.New()); err == nil {
		t.Error("GetInterview on unknown id returned nil error")
	}
}
