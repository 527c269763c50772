package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/errors"
)

// Memory is an in-process Store for tests and local development. All
// methods are safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	interviews  map[uuid.UUID]*Interview
	transcripts map[uuid.UUID][]TranscriptEntry
	insights    map[uuid.UUID][]Insight
	scorecards  map[uuid.UUID]*Scorecard
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		interviews:  make(map[uuid.UUID]*Interview),
		transcripts: make(map[uuid.UUID][]TranscriptEntry),
		insights:    make(map[uuid.UUID][]Insight),
		scorecards:  make(map[uuid.UUID]*Scorecard),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) CreateInterview(_ context.Context, iv *Interview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	if iv.Status == "" {
		iv.Status = StatusCreated
	}
	cp := *iv
	m.interviews[iv.ID] = &cp
	return nil
}

func (m *Memory) GetInterview(_ context.Context, id uuid.UUID) (*Interview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	iv, ok := m.interviews[id]
	if !ok {
		return nil, errors.NotFound("interview", id.String())
	}
	cp := *iv
	return &cp, nil
}

func (m *Memory) UpdateInterviewStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interviews[id]
	if !ok {
		return errors.NotFound("interview", id.String())
	}
	iv.Status = status
	now := time.Now()
	switch status {
	case StatusCapturing:
		iv.StartedAt = &now
	case StatusCompleted, StatusFailed:
		iv.EndedAt = &now
	}
	return nil
}

func (m *Memory) AssignRoles(_ context.Context, id uuid.UUID, host, guest string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interviews[id]
	if !ok {
		return false, errors.NotFound("interview", id.String())
	}
	if iv.RolesAssigned {
		return false, nil
	}
	iv.RolesAssigned = true
	h, g := host, guest
	iv.HostSpeakerID = &h
	iv.GuestSpeakerID = &g
	return true, nil
}

func (m *Memory) BackfillRoles(_ context.Context, id uuid.UUID, host, guest string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	entries := m.transcripts[id]
	for i := range entries {
		if entries[i].SpeakerRole != nil {
			continue
		}
		switch entries[i].SpeakerID {
		case host:
			role := RoleHost
			entries[i].SpeakerRole = &role
			updated++
		case guest:
			role := RoleGuest
			entries[i].SpeakerRole = &role
			updated++
		}
	}
	return updated, nil
}

func (m *Memory) AppendTranscript(_ context.Context, entries ...*TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		m.transcripts[e.InterviewID] = append(m.transcripts[e.InterviewID], *e)
	}
	return nil
}

func (m *Memory) CountTranscript(_ context.Context, interviewID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.transcripts[interviewID])), nil
}

func (m *Memory) EarliestTranscript(_ context.Context, interviewID uuid.UUID, n int) ([]TranscriptEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := sortedByTime(m.transcripts[interviewID])
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}

func (m *Memory) ListTranscript(_ context.Context, interviewID uuid.UUID) ([]TranscriptEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByTime(m.transcripts[interviewID]), nil
}

func (m *Memory) AppendInsight(_ context.Context, in *Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	m.insights[in.InterviewID] = append(m.insights[in.InterviewID], *in)
	return nil
}

func (m *Memory) LatestInsights(_ context.Context, interviewID uuid.UUID, n int) ([]Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.insights[interviewID]
	out := make([]Insight, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if n < len(out) {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) ListInsights(_ context.Context, interviewID uuid.UUID) ([]Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.insights[interviewID]
	out := make([]Insight, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) MarkInsightUsed(_ context.Context, insightID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.insights {
		for i := range m.insights[id] {
			if m.insights[id][i].ID == insightID {
				m.insights[id][i].Used = true
				return nil
			}
		}
	}
	return errors.NotFound("insight", insightID.String())
}

func (m *Memory) UpsertScorecard(_ context.Context, sc *Scorecard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.scorecards[sc.InterviewID]; ok {
		sc.ID = existing.ID
	} else if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	cp := *sc
	m.scorecards[sc.InterviewID] = &cp
	return nil
}

func (m *Memory) GetScorecard(_ context.Context, interviewID uuid.UUID) (*Scorecard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scorecards[interviewID]
	if !ok {
		return nil, errors.NotFound("scorecard", interviewID.String())
	}
	cp := *sc
	return &cp, nil
}

func sortedByTime(entries []TranscriptEntry) []TranscriptEntry {
	out := make([]TranscriptEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
