// Package store persists interviews, transcript entries, insights, and
// scorecards, keyed by interview. It exposes one interface with a GORM
// backed implementation for production and an in-memory one for tests.
package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/database"
)

// Interview status lifecycle.
const (
	StatusCreated   = "created"
	StatusCapturing = "capturing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Speaker roles resolved from diarized speaker ids.
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

// Insight types.
const (
	InsightRedFlag       = "red-flag"
	InsightGreenFlag     = "green-flag"
	InsightSuggestion    = "suggestion"
	InsightNote          = "note"
	InsightContradiction = "contradiction"
)

// Insight severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
	SeveritySuccess  = "success"
)

// Scorecard recommendations.
const (
	RecommendStrongHire = "strong-hire"
	RecommendHire       = "hire"
	RecommendNoHire     = "no-hire"
	RecommendStrongNo   = "strong-no-hire"
)

// Interview is one interview session. HostSpeakerID and GuestSpeakerID
// are set exactly once by role resolution, guarded by RolesAssigned.
type Interview struct {
	database.BaseModel
	Title          string     `gorm:"size:255" json:"title"`
	CandidateName  string     `gorm:"size:255" json:"candidate_name"`
	Status         string     `gorm:"size:32;index;default:created" json:"status"`
	RolesAssigned  bool       `gorm:"default:false" json:"roles_assigned"`
	HostSpeakerID  *string    `gorm:"size:32" json:"host_speaker_id,omitempty"`
	GuestSpeakerID *string    `gorm:"size:32" json:"guest_speaker_id,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// TranscriptEntry is one persisted utterance. SpeakerRole stays nil until
// role resolution, then is backfilled once and never reassigned.
type TranscriptEntry struct {
	database.BaseModel
	InterviewID uuid.UUID `gorm:"type:uuid;index;not null" json:"interview_id"`
	Timestamp   time.Time `gorm:"index;not null" json:"timestamp"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	SpeakerID   string    `gorm:"size:32;not null" json:"speaker_id"`
	SpeakerRole *string   `gorm:"size:16" json:"speaker_role,omitempty"`
	Confidence  float64   `json:"confidence"`
}

// Insight is one analysis finding. Used is flipped by the human reviewer
// and is opaque to the pipeline.
type Insight struct {
	database.BaseModel
	InterviewID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"interview_id"`
	Type            string         `gorm:"size:32;not null" json:"type"`
	Severity        string         `gorm:"size:16;not null" json:"severity"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	Suggestion      *string        `gorm:"type:text" json:"suggestion,omitempty"`
	Topic           *string        `gorm:"size:255" json:"topic,omitempty"`
	Evidence        *string        `gorm:"type:text" json:"evidence,omitempty"`
	ResponseQuality *int           `json:"response_quality,omitempty"`
	Sentiment       *string        `gorm:"size:32" json:"sentiment,omitempty"`
	RunningScores   map[string]int `gorm:"serializer:json" json:"running_scores,omitempty"`
	Used            bool           `gorm:"default:false" json:"used"`
	Timestamp       time.Time      `gorm:"index;not null" json:"timestamp"`
}

// Finding is one evidence-backed strength or weakness on a scorecard.
type Finding struct {
	Point string `json:"point"`
	Quote string `json:"quote"`
}

// Scorecard is the terminal evaluation for one interview. One row per
// interview, upserted.
type Scorecard struct {
	database.BaseModel
	InterviewID    uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"interview_id"`
	Scores         map[string]int `gorm:"serializer:json" json:"scores"`
	OverallScore   int            `json:"overall_score"`
	Recommendation string         `gorm:"size:32" json:"recommendation"`
	Strengths      []Finding      `gorm:"serializer:json" json:"strengths"`
	Weaknesses     []Finding      `gorm:"serializer:json" json:"weaknesses"`
	Summary        string         `gorm:"type:text" json:"summary"`
	Notes          string         `gorm:"type:text" json:"notes"`
}

// Models returns every model for auto-migration, in dependency order.
func Models() []interface{} {
	return []interface{}{&Interview{}, &TranscriptEntry{}, &Insight{}, &Scorecard{}}
}
