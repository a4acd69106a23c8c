package battle

import (
	"sync"
	"time"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
)

// trackerEntry holds one participant's live rep count. Each entry has its own
// mutex so submissions for different participants never block each other.
type trackerEntry struct {
	mu            sync.Mutex
	reps          int
	lastUpdatedAt time.Time
}

// PerformanceTracker accumulates rep counts for the participants of one
// active battle. The participant set is fixed at construction; counts are
// monotonically non-decreasing.
type PerformanceTracker struct {
	entries map[uuid.UUID]*trackerEntry
}

func NewPerformanceTracker(participantIDs ...uuid.UUID) *PerformanceTracker {
	entries := make(map[uuid.UUID]*trackerEntry, len(participantIDs))
	for _, id := range participantIDs {
		entries[id] = &trackerEntry{}
	}
	return &PerformanceTracker{entries: entries}
}

// SetReps records a new total rep count for a participant. The realtime
// channel may deliver updates out of order, so a value not strictly greater
// than the stored one is rejected with ErrStaleUpdate and the stored value is
// kept. The caller gets an explicit rejection rather than a silent no-op so it
// can reconcile against the last broadcast snapshot.
func (t *PerformanceTracker) SetReps(userID uuid.UUID, reps int) error {
	entry, ok := t.entries[userID]
	if !ok {
		return domain.ErrForbidden
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if reps <= entry.reps {
		return domain.ErrStaleUpdate
	}

	entry.reps = reps
	entry.lastUpdatedAt = time.Now()
	return nil
}

// Reps returns the current rep count per participant.
func (t *PerformanceTracker) Reps() map[uuid.UUID]int {
	reps := make(map[uuid.UUID]int, len(t.entries))
	for id, entry := range t.entries {
		entry.mu.Lock()
		reps[id] = entry.reps
		entry.mu.Unlock()
	}
	return reps
}

// Performances materializes the tracked counts as store records for the given
// battle.
func (t *PerformanceTracker) Performances(battleID uuid.UUID) []*domain.BattlePerformance {
	perfs := make([]*domain.BattlePerformance, 0, len(t.entries))
	for id, entry := range t.entries {
		entry.mu.Lock()
		perfs = append(perfs, &domain.BattlePerformance{
			BattleID:      battleID,
			UserID:        id,
			Reps:          entry.reps,
			LastUpdatedAt: entry.lastUpdatedAt,
		})
		entry.mu.Unlock()
	}
	return perfs
}
