package voting

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/metrics"
	"github.com/stackit/stackit/backend/internal/models"
)

// Result is returned by CastVote: the target's fresh snapshot and the
// direction the caller now holds.
type Result struct {
	TargetID   uuid.UUID         `json:"targetId"`
	TargetKind models.TargetKind `json:"targetKind"`
	Snapshot
	UserVote models.Direction `json:"userVote"`
}

// Service is the only writer of the vote ledger.
type Service struct {
	ledger     Ledger
	targets    Targets
	aggregator *Aggregator
	log        *slog.Logger
}

func NewService(ledger Ledger, targets Targets, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		ledger:     ledger,
		targets:    targets,
		aggregator: NewAggregator(ledger),
		log:        log,
	}
}

// CastVote sets voterID's vote on the target to direction and returns the
// updated snapshot. Argument and existence checks happen before the single
// ledger write; nothing is retried.
func (s *Service) CastVote(ctx context.Context, voterID, targetID uuid.UUID, kind models.TargetKind, direction models.Direction) (*Result, error) {
	res, err := s.castVote(ctx, voterID, targetID, kind, direction)
	if err != nil {
		metrics.VoteErrorsTotal.WithLabelValues(string(apperrors.TypeOf(err))).Inc()
		return nil, err
	}
	metrics.VotesCastTotal.WithLabelValues(string(kind), string(direction)).Inc()
	return res, nil
}

func (s *Service) castVote(ctx context.Context, voterID, targetID uuid.UUID, kind models.TargetKind, direction models.Direction) (*Result, error) {
	if voterID == uuid.Nil {
		return nil, apperrors.Unauthenticated("Access denied. Authentication required.")
	}
	if !kind.Valid() {
		return nil, apperrors.InvalidArgument("targetKind must be QUESTION or ANSWER")
	}
	if !direction.Valid() {
		return nil, apperrors.InvalidArgument("voteType must be either 'UP' or 'DOWN'")
	}

	exists, err := s.targets.Exists(ctx, kind, targetID)
	if err != nil {
		return nil, apperrors.Storage("failed to look up vote target", err)
	}
	if !exists {
		return nil, apperrors.NotFound(notFoundMessage(kind))
	}

	vote, err := s.ledger.Upsert(ctx, voterID, targetID, kind, direction)
	if err != nil {
		return nil, apperrors.Storage("failed to record vote", err)
	}

	snapshot, err := s.aggregator.Aggregate(ctx, targetID, kind)
	if err != nil {
		return nil, apperrors.Storage("failed to count votes", err)
	}

	s.log.DebugContext(ctx, "vote recorded",
		"voter_id", voterID,
		"target_kind", kind,
		"target_id", targetID,
		"direction", vote.Direction,
		"upvotes", snapshot.Upvotes,
		"downvotes", snapshot.Downvotes,
	)

	return &Result{
		TargetID:   targetID,
		TargetKind: kind,
		Snapshot:   snapshot,
		UserVote:   vote.Direction,
	}, nil
}

// Snapshot returns the current score of a target without checking that it exists.
func (s *Service) Snapshot(ctx context.Context, targetID uuid.UUID, kind models.TargetKind) (Snapshot, error) {
	snapshot, err := s.aggregator.Aggregate(ctx, targetID, kind)
	if err != nil {
		return Snapshot{}, apperrors.Storage("failed to count votes", err)
	}
	return snapshot, nil
}

// Snapshots returns the current score of every target in targetIDs.
func (s *Service) Snapshots(ctx context.Context, kind models.TargetKind, targetIDs []uuid.UUID) (map[uuid.UUID]Snapshot, error) {
	snapshots, err := s.aggregator.AggregateMany(ctx, kind, targetIDs)
	if err != nil {
		return nil, apperrors.Storage("failed to count votes", err)
	}
	return snapshots, nil
}

// UserVotes returns voterID's current direction per target. An anonymous
// caller (uuid.Nil) has no votes.
func (s *Service) UserVotes(ctx context.Context, voterID uuid.UUID, kind models.TargetKind, targetIDs []uuid.UUID) (map[uuid.UUID]models.Direction, error) {
	if voterID == uuid.Nil {
		return map[uuid.UUID]models.Direction{}, nil
	}
	votes, err := s.ledger.VotesBy(ctx, voterID, kind, targetIDs)
	if err != nil {
		return nil, apperrors.Storage("failed to load votes", err)
	}
	return votes, nil
}

func notFoundMessage(kind models.TargetKind) string {
	if kind == models.TargetAnswer {
		return "Answer not found"
	}
	return "Question not found"
}
