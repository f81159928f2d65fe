package voting

import (
	"context"

	"github.com/google/uuid"

	"github.com/stackit/stackit/backend/internal/models"
)

// Snapshot is the derived score of one target at the time it was read.
type Snapshot struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	Net       int64 `json:"net"`
}

// Aggregator computes snapshots from ledger counts. The two counts are not
// read atomically; under concurrent voting a snapshot may briefly undercount.
type Aggregator struct {
	ledger Ledger
}

func NewAggregator(ledger Ledger) *Aggregator {
	return &Aggregator{ledger: ledger}
}

func (a *Aggregator) Aggregate(ctx context.Context, targetID uuid.UUID, kind models.TargetKind) (Snapshot, error) {
	up, err := a.ledger.CountByDirection(ctx, targetID, kind, models.Up)
	if err != nil {
		return Snapshot{}, err
	}
	down, err := a.ledger.CountByDirection(ctx, targetID, kind, models.Down)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Upvotes: up, Downvotes: down, Net: up - down}, nil
}

// AggregateMany computes snapshots for many targets of one kind with a
// single grouped count. Every requested id is present in the result.
func (a *Aggregator) AggregateMany(ctx context.Context, kind models.TargetKind, targetIDs []uuid.UUID) (map[uuid.UUID]Snapshot, error) {
	rows, err := a.ledger.CountByTargets(ctx, kind, targetIDs)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]Snapshot, len(targetIDs))
	for _, id := range targetIDs {
		out[id] = Snapshot{}
	}
	for _, row := range rows {
		snap := out[row.TargetID]
		switch row.Direction {
		case models.Up:
			snap.Upvotes += row.Count
		case models.Down:
			snap.Downvotes += row.Count
		}
		snap.Net = snap.Upvotes - snap.Downvotes
		out[row.TargetID] = snap
	}
	return out, nil
}
