package voting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stackit/stackit/backend/internal/models"
)

// Ledger stores the current direction per (voter, kind, target).
type Ledger interface {
	// Upsert inserts the vote or overwrites the direction of the existing one.
	Upsert(ctx context.Context, voterID, targetID uuid.UUID, kind models.TargetKind, direction models.Direction) (*models.Vote, error)
	CountByDirection(ctx context.Context, targetID uuid.UUID, kind models.TargetKind, direction models.Direction) (int64, error)
	// CountByTargets counts votes per (target, direction) for all targetIDs
	// in one query. Targets without votes are absent from the result.
	CountByTargets(ctx context.Context, kind models.TargetKind, targetIDs []uuid.UUID) ([]DirectionCount, error)
	// VotesBy returns voterID's direction on each of targetIDs they voted on.
	VotesBy(ctx context.Context, voterID uuid.UUID, kind models.TargetKind, targetIDs []uuid.UUID) (map[uuid.UUID]models.Direction, error)
}

// DirectionCount is one row of a grouped vote count.
type DirectionCount struct {
	TargetID  uuid.UUID
	Direction models.Direction
	Count     int64
}

// Targets reports whether a vote target exists.
type Targets interface {
	Exists(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) (bool, error)
}

type GormLedger struct {
	db *gorm.DB
}

var _ Ledger = (*GormLedger)(nil)

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// Upsert is a single INSERT ... ON CONFLICT DO UPDATE against the
// idx_votes_voter_target unique index, returning the stored row.
func (l *GormLedger) Upsert(ctx context.Context, voterID, targetID uuid.UUID, kind models.TargetKind, direction models.Direction) (*models.Vote, error) {
	vote := models.Vote{
		VoterID:    voterID,
		TargetKind: kind,
		TargetID:   targetID,
		Direction:  direction,
	}

	err := l.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "voter_id"}, {Name: "target_kind"}, {Name: "target_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
			},
			clause.Returning{},
		).
		Create(&vote).Error
	if err != nil {
		return nil, fmt.Errorf("upsert vote: %w", err)
	}
	return &vote, nil
}

func (l *GormLedger) CountByDirection(ctx context.Context, targetID uuid.UUID, kind models.TargetKind, direction models.Direction) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("target_id = ? AND target_kind = ? AND direction = ?", targetID, kind, direction).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s votes: %w", direction, err)
	}
	return n, nil
}

func (l *GormLedger) CountByTargets(ctx context.Context, kind models.TargetKind, targetIDs []uuid.UUID) ([]DirectionCount, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	var rows []DirectionCount
	err := l.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("target_id, direction, COUNT(*) AS count").
		Where("target_kind = ? AND target_id IN ?", kind, targetIDs).
		Group("target_id, direction").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count %s votes: %w", kind, err)
	}
	return rows, nil
}

func (l *GormLedger) VotesBy(ctx context.Context, voterID uuid.UUID, kind models.TargetKind, targetIDs []uuid.UUID) (map[uuid.UUID]models.Direction, error) {
	out := make(map[uuid.UUID]models.Direction)
	if len(targetIDs) == 0 {
		return out, nil
	}
	var votes []models.Vote
	err := l.db.WithContext(ctx).
		Select("target_id", "direction").
		Where("voter_id = ? AND target_kind = ? AND target_id IN ?", voterID, kind, targetIDs).
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("load %s votes of voter: %w", kind, err)
	}
	for _, v := range votes {
		out[v.TargetID] = v.Direction
	}
	return out, nil
}

// DeleteForTargets removes every vote on the given targets. It is the
// cascade used when questions or answers are deleted and must run inside
// the caller's transaction.
func DeleteForTargets(tx *gorm.DB, kind models.TargetKind, targetIDs ...uuid.UUID) error {
	if len(targetIDs) == 0 {
		return nil
	}
	err := tx.Where("target_kind = ? AND target_id IN ?", kind, targetIDs).Delete(&models.Vote{}).Error
	if err != nil {
		return fmt.Errorf("delete %s votes: %w", kind, err)
	}
	return nil
}

type GormTargets struct {
	db *gorm.DB
}

var _ Targets = (*GormTargets)(nil)

func NewGormTargets(db *gorm.DB) *GormTargets {
	return &GormTargets{db: db}
}

func (t *GormTargets) Exists(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) (bool, error) {
	var model any
	switch kind {
	case models.TargetQuestion:
		model = &models.Question{}
	case models.TargetAnswer:
		model = &models.Answer{}
	default:
		return false, fmt.Errorf("unknown target kind %q", kind)
	}

	var n int64
	if err := t.db.WithContext(ctx).Model(model).Where("id = ?", targetID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("look up %s: %w", kind, err)
	}
	return n > 0, nil
}
