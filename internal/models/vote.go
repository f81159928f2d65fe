package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TargetKind names the kind of entity a vote applies to.
type TargetKind string

const (
	TargetQuestion TargetKind = "QUESTION"
	TargetAnswer   TargetKind = "ANSWER"
)

func (k TargetKind) Valid() bool {
	return k == TargetQuestion || k == TargetAnswer
}

// Direction is the polarity of a single vote. There is no neutral value:
// a vote is always UP or DOWN and re-voting overwrites it.
type Direction string

const (
	Up   Direction = "UP"
	Down Direction = "DOWN"
)

func (d Direction) Valid() bool {
	return d == Up || d == Down
}

func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("direction must be UP or DOWN, got %q", s)
	}
	return d, nil
}

// Vote is one voter's current direction on one target. The unique index
// keeps at most one row per (voter, kind, target).
type Vote struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	VoterID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_votes_voter_target,priority:1" json:"voterId"`
	Voter      User       `gorm:"foreignKey:VoterID;constraint:OnDelete:CASCADE" json:"-"`
	TargetKind TargetKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_votes_voter_target,priority:2;index:idx_votes_target,priority:1" json:"targetKind"`
	TargetID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_votes_voter_target,priority:3;index:idx_votes_target,priority:2" json:"targetId"`
	Direction  Direction  `gorm:"type:varchar(8);not null" json:"direction"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type VoteRequest struct {
	VoteType string `json:"voteType" binding:"required"`
}
