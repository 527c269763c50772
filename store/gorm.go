package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Montinou/interview-companion-sub000/database"
	"github.com/Montinou/interview-companion-sub000/errors"
)

// gormStore implements Store on PostgreSQL through the database wrapper.
type gormStore struct {
	db *database.DB
}

// NewGorm creates a Store backed by the given database connection.
func NewGorm(db *database.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateInterview(ctx context.Context, iv *Interview) error {
	if iv.Status == "" {
		iv.Status = StatusCreated
	}
	if err := s.db.WithContext(ctx).Create(iv).Error; err != nil {
		return errors.DatabaseError(err)
	}
	return nil
}

func (s *gormStore) GetInterview(ctx context.Context, id uuid.UUID) (*Interview, error) {
	var iv Interview
	err := s.db.WithContext(ctx).First(&iv, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("interview", id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	return &iv, nil
}

func (s *gormStore) UpdateInterviewStatus(ctx context.Context, id uuid.UUID, status string) error {
	updates := map[string]interface{}{"status": status}
	switch status {
	case StatusCapturing:
		updates["started_at"] = time.Now()
	case StatusCompleted, StatusFailed:
		updates["ended_at"] = time.Now()
	}
	res := s.db.WithContext(ctx).Model(&Interview{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.DatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("interview", id.String())
	}
	return nil
}

// AssignRoles wins the check-then-act race with a conditional update:
// only the caller whose UPDATE matches roles_assigned=false gets to set
// the role map.
func (s *gormStore) AssignRoles(ctx context.Context, id uuid.UUID, host, guest string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Interview{}).
		Where("id = ? AND roles_assigned = ?", id, false).
		Updates(map[string]interface{}{
			"roles_assigned":   true,
			"host_speaker_id":  host,
			"guest_speaker_id": guest,
		})
	if res.Error != nil {
		return false, errors.DatabaseError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) BackfillRoles(ctx context.Context, id uuid.UUID, host, guest string) (int64, error) {
	var updated int64
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		for role, speaker := range map[string]string{RoleHost: host, RoleGuest: guest} {
			res := tx.Model(&TranscriptEntry{}).
				Where("interview_id = ? AND speaker_id = ? AND speaker_role IS NULL", id, speaker).
				Update("speaker_role", role)
			if res.Error != nil {
				return res.Error
			}
			updated += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, errors.DatabaseError(err)
	}
	return updated, nil
}

func (s *gormStore) AppendTranscript(ctx context.Context, entries ...*TranscriptEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(entries).Error; err != nil {
		return errors.DatabaseError(err)
	}
	return nil
}

func (s *gormStore) CountTranscript(ctx context.Context, interviewID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&TranscriptEntry{}).
		Where("interview_id = ?", interviewID).Count(&count).Error
	if err != nil {
		return 0, errors.DatabaseError(err)
	}
	return count, nil
}

func (s *gormStore) EarliestTranscript(ctx context.Context, interviewID uuid.UUID, n int) ([]TranscriptEntry, error) {
	var entries []TranscriptEntry
	err := s.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("timestamp ASC").Limit(n).
		Find(&entries).Error
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	return entries, nil
}

func (s *gormStore) ListTranscript(ctx context.Context, interviewID uuid.UUID) ([]TranscriptEntry, error) {
	var entries []TranscriptEntry
	err := s.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("timestamp ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	return entries, nil
}

func (s *gormStore) AppendInsight(ctx context.Context, in *Insight) error {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(in).Error; err != nil {
		return errors.DatabaseError(err)
	}
	return nil
}

func (s *gormStore) LatestInsights(ctx context.Context, interviewID uuid.UUID, n int) ([]Insight, error) {
	var insights []Insight
	err := s.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("timestamp DESC").Limit(n).
		Find(&insights).Error
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	return insights, nil
}

func (s *gormStore) ListInsights(ctx context.Context, interviewID uuid.UUID) ([]Insight, error) {
	var insights []Insight
	err := s.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("timestamp ASC").
		Find(&insights).Error
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	return insights, nil
}

func (s *gormStore) MarkInsightUsed(ctx context.Context, insightID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&Insight{}).
		Where("id = ?", insightID).Update("used", true)
	if res.Error != nil {
		return errors.DatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("insight", insightID.String())
	}
	return nil
}

// UpsertScorecard inserts or overwrites the single scorecard row per
// interview, keyed on the interview_id unique index.
func (s *gormStore) UpsertScorecard(ctx context.Context, sc *Scorecard) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "interview_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"scores", "overall_score", "recommendation",
			"strengths", "weaknesses", "summary", "notes", "updated_at",
		}),
	}).Create(sc).Error
	if err != nil {
		return errors.DatabaseError(err)
	}
	return nil
}

func (s *gormStore) GetScorecard(ctx context.Context, interviewID uuid.UUID) (*Scorecard, error) {
	var sc Scorecard
	err := s.db.WithContext(ctx).First(&sc, "interview_id = ?", interviewID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("scorecard", interviewID.String())
	}
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	return &sc, nil
}
