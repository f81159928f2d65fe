// Package votingtest provides in-memory implementations of the voting
// ledger and target lookup for tests.
package votingtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackit/stackit/backend/internal/models"
	"github.com/stackit/stackit/backend/internal/voting"
)

type key struct {
	voter  uuid.UUID
	kind   models.TargetKind
	target uuid.UUID
}

// Ledger keeps votes in a map keyed like the votes table's unique index.
type Ledger struct {
	mu     sync.Mutex
	votes  map[key]*models.Vote
	writes int

	// Err, when set, is returned by every call.
	Err error
}

var _ voting.Ledger = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{votes: make(map[key]*models.Vote)}
}

func (l *Ledger) Upsert(_ context.Context, voterID, targetID uuid.UUID, kind models.TargetKind, direction models.Direction) (*models.Vote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}
	l.writes++

	now := time.Now().UTC()
	k := key{voter: voterID, kind: kind, target: targetID}
	if v, ok := l.votes[k]; ok {
		v.Direction = direction
		v.UpdatedAt = now
		stored := *v
		return &stored, nil
	}

	v := &models.Vote{
		ID:         uuid.New(),
		VoterID:    voterID,
		TargetKind: kind,
		TargetID:   targetID,
		Direction:  direction,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.votes[k] = v
	stored := *v
	return &stored, nil
}

func (l *Ledger) CountByDirection(_ context.Context, targetID uuid.UUID, kind models.TargetKind, direction models.Direction) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return 0, l.Err
	}
	var n int64
	for k, v := range l.votes {
		if k.target == targetID && k.kind == kind && v.Direction == direction {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) CountByTargets(_ context.Context, kind models.TargetKind, targetIDs []uuid.UUID) ([]voting.DirectionCount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}
	wanted := make(map[uuid.UUID]bool, len(targetIDs))
	for _, id := range targetIDs {
		wanted[id] = true
	}

	type group struct {
		target    uuid.UUID
		direction models.Direction
	}
	counts := make(map[group]int64)
	for k, v := range l.votes {
		if k.kind == kind && wanted[k.target] {
			counts[group{k.target, v.Direction}]++
		}
	}

	rows := make([]voting.DirectionCount, 0, len(counts))
	for g, n := range counts {
		rows = append(rows, voting.DirectionCount{TargetID: g.target, Direction: g.direction, Count: n})
	}
	return rows, nil
}

func (l *Ledger) VotesBy(_ context.Context, voterID uuid.UUID, kind models.TargetKind, targetIDs []uuid.UUID) (map[uuid.UUID]models.Direction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}
	out := make(map[uuid.UUID]models.Direction)
	for _, id := range targetIDs {
		if v, ok := l.votes[key{voter: voterID, kind: kind, target: id}]; ok {
			out[id] = v.Direction
		}
	}
	return out, nil
}

// Rows returns how many ledger entries exist for the target.
func (l *Ledger) Rows(targetID uuid.UUID, kind models.TargetKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k := range l.votes {
		if k.target == targetID && k.kind == kind {
			n++
		}
	}
	return n
}

// Direction returns the stored direction for a voter, if any.
func (l *Ledger) Direction(voterID, targetID uuid.UUID, kind models.TargetKind) (models.Direction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.votes[key{voter: voterID, kind: kind, target: targetID}]
	if !ok {
		return "", false
	}
	return v.Direction, true
}

// Writes counts Upsert calls that reached storage.
func (l *Ledger) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

// Targets is a set of existing targets.
type Targets struct {
	mu      sync.RWMutex
	targets map[models.TargetKind]map[uuid.UUID]struct{}

	Err error
}

var _ voting.Targets = (*Targets)(nil)

func NewTargets() *Targets {
	return &Targets{targets: make(map[models.TargetKind]map[uuid.UUID]struct{})}
}

// Add registers a target and returns its id.
func (t *Targets) Add(kind models.TargetKind) uuid.UUID {
	id := uuid.New()
	t.Put(kind, id)
	return id
}

func (t *Targets) Put(kind models.TargetKind, id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.targets[kind] == nil {
		t.targets[kind] = make(map[uuid.UUID]struct{})
	}
	t.targets[kind][id] = struct{}{}
}

func (t *Targets) Exists(_ context.Context, kind models.TargetKind, targetID uuid.UUID) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.Err != nil {
		return false, t.Err
	}
	_, ok := t.targets[kind][targetID]
	return ok, nil
}
