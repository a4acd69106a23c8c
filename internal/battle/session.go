package battle

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ErrSessionSettled is returned by Finish when another path (explicit request,
// timeout, cancellation) already settled the session. Callers racing the timer
// treat it as an observation of the decided outcome, not a failure.
var ErrSessionSettled = errors.New("session already settled")

// Snapshot is the combined live state of one battle as broadcast to observers.
type Snapshot struct {
	BattleID       uuid.UUID
	Reps           map[uuid.UUID]int
	ElapsedSeconds int
}

// Broadcaster pushes session state changes to connected observers. Delivery
// must be fire-and-forget per observer; a slow client never blocks the caller.
type Broadcaster interface {
	BroadcastRepUpdate(snapshot Snapshot)
	BroadcastLifecycle(battle *domain.Battle, snapshot *Snapshot)
}

// Session is the in-memory single-owner working state of one active battle.
// While the session lives it holds the authoritative rep counts; the store
// copy is refreshed only at session start and settlement.
//
// Locking discipline: rep submissions take the read lock, so the two
// participants submit in parallel (per-participant serialization comes from
// the tracker). Settlement takes the write lock, which guarantees the winner
// computation never observes a half-applied update and no update lands after
// the outcome is decided.
type Session struct {
	battle      domain.Battle
	tracker     *PerformanceTracker
	startedAt   time.Time
	timer       *time.Timer
	broadcaster Broadcaster
	settled     bool

	mu sync.RWMutex
}

func newSession(b *domain.Battle, broadcaster Broadcaster) *Session {
	startedAt := time.Now()
	if b.StartedAt != nil {
		startedAt = *b.StartedAt
	}
	return &Session{
		battle:      *b,
		tracker:     NewPerformanceTracker(b.CreatorID, b.OpponentID),
		startedAt:   startedAt,
		broadcaster: broadcaster,
	}
}

// SubmitReps applies a live rep update for a participant and broadcasts the
// resulting snapshot.
func (s *Session) SubmitReps(userID uuid.UUID, reps int) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settled {
		return Snapshot{}, domain.ErrBattleNotActive
	}

	if err := s.tracker.SetReps(userID, reps); err != nil {
		return Snapshot{}, err
	}

	snapshot := s.snapshotLocked()
	s.broadcaster.BroadcastRepUpdate(snapshot)
	return snapshot, nil
}

// Snapshot returns the current combined rep counts and elapsed time.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Battle returns the session's view of the battle record.
func (s *Session) Battle() domain.Battle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.battle
}

// Performances returns the live performance records for the battle.
func (s *Session) Performances() []*domain.BattlePerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker.Performances(s.battle.ID)
}

func (s *Session) snapshotLocked() Snapshot {
	elapsed := int(time.Since(s.startedAt).Seconds())
	if elapsed > s.battle.DurationSeconds {
		elapsed = s.battle.DurationSeconds
	}
	return Snapshot{
		BattleID:       s.battle.ID,
		Reps:           s.tracker.Reps(),
		ElapsedSeconds: elapsed,
	}
}

// Finish settles the session exactly once, moving the battle to `to`
// (completed or cancelled). The winner is decided only for completion:
// strictly greater reps wins, equal reps is a tie and leaves WinnerID nil.
// Cancellation writes back the last known counts for audit but never a winner.
//
// persist runs while the session lock is held; if it fails the session stays
// live and unsettled so the in-memory state never diverges from the store.
func (s *Session) Finish(to domain.BattleStatus, persist func(*domain.Battle, []*domain.BattlePerformance) error) (*domain.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settled {
		return nil, ErrSessionSettled
	}

	status, err := domain.Transition(s.battle.Status, to)
	if err != nil {
		return nil, err
	}

	settled := s.battle
	settled.Status = status
	now := time.Now()
	settled.EndedAt = &now

	reps := s.tracker.Reps()
	if status == domain.BattleStatusCompleted {
		settled.WinnerID = ComputeWinner(settled.CreatorID, settled.OpponentID, reps)
	}

	finalReps := make(map[string]int, len(reps))
	for id, n := range reps {
		finalReps[id.String()] = n
	}
	if data, err := json.Marshal(finalReps); err == nil {
		settled.FinalReps = datatypes.JSON(data)
	}

	perfs := s.tracker.Performances(settled.ID)

	if err := persist(&settled, perfs); err != nil {
		return nil, err
	}

	s.battle = settled
	s.settled = true
	if s.timer != nil {
		s.timer.Stop()
	}

	s.broadcaster.BroadcastLifecycle(&settled, &Snapshot{
		BattleID:       settled.ID,
		Reps:           reps,
		ElapsedSeconds: s.elapsedLocked(),
	})

	return &settled, nil
}

func (s *Session) elapsedLocked() int {
	elapsed := int(time.Since(s.startedAt).Seconds())
	if elapsed > s.battle.DurationSeconds {
		elapsed = s.battle.DurationSeconds
	}
	return elapsed
}

// ComputeWinner implements the completion policy: strictly greater total wins,
// equal totals is a tie (nil).
func ComputeWinner(creatorID, opponentID uuid.UUID, reps map[uuid.UUID]int) *uuid.UUID {
	creatorReps := reps[creatorID]
	opponentReps := reps[opponentID]

	switch {
	case creatorReps > opponentReps:
		return &creatorID
	case opponentReps > creatorReps:
		return &opponentID
	default:
		return nil
	}
}
