package battle_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fitduel/fitduel-backend/internal/battle"
	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBroadcaster captures broadcasts for assertions.
type recordingBroadcaster struct {
	mu         sync.Mutex
	repUpdates []battle.Snapshot
	lifecycle  []domain.BattleStatus
}

func (b *recordingBroadcaster) BroadcastRepUpdate(snapshot battle.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.repUpdates = append(b.repUpdates, snapshot)
}

func (b *recordingBroadcaster) BroadcastLifecycle(battleRec *domain.Battle, _ *battle.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lifecycle = append(b.lifecycle, battleRec.Status)
}

func (b *recordingBroadcaster) repUpdateCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.repUpdates)
}

func noPersist(*domain.Battle, []*domain.BattlePerformance) error { return nil }

func activeBattle(durationSeconds int) *domain.Battle {
	now := time.Now()
	return &domain.Battle{
		ID:              uuid.New(),
		CreatorID:       uuid.New(),
		OpponentID:      uuid.New(),
		ExerciseType:    "pushups",
		DurationSeconds: durationSeconds,
		Status:          domain.BattleStatusActive,
		StartedAt:       &now,
	}
}

func startSession(t *testing.T, b *domain.Battle, broadcaster battle.Broadcaster) (*battle.Manager, *battle.Session) {
	t.Helper()

	manager := battle.NewManager(broadcaster)
	t.Cleanup(manager.Stop)

	session, err := manager.StartSession(b, func(uuid.UUID) {})
	require.NoError(t, err)
	return manager, session
}

func TestSession_SubmitReps(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	b := activeBattle(3600)
	_, session := startSession(t, b, broadcaster)

	snapshot, err := session.SubmitReps(b.CreatorID, 10)
	require.NoError(t, err)
	assert.Equal(t, b.ID, snapshot.BattleID)
	assert.Equal(t, 10, snapshot.Reps[b.CreatorID])
	assert.Equal(t, 0, snapshot.Reps[b.OpponentID])

	snapshot, err = session.SubmitReps(b.OpponentID, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, snapshot.Reps[b.CreatorID])
	assert.Equal(t, 7, snapshot.Reps[b.OpponentID])

	// Each accepted update triggered a broadcast of the combined snapshot.
	assert.Equal(t, 2, broadcaster.repUpdateCount())

	// A stale update is rejected and does not broadcast.
	_, err = session.SubmitReps(b.CreatorID, 5)
	assert.ErrorIs(t, err, domain.ErrStaleUpdate)
	assert.Equal(t, 2, broadcaster.repUpdateCount())
}

func TestSession_FinishComputesWinner(t *testing.T) {
	tests := []struct {
		name         string
		creatorReps  int
		opponentReps int
		wantWinner   string // "creator", "opponent" or ""
	}{
		{"creator wins", 10, 7, "creator"},
		{"opponent wins", 4, 9, "opponent"},
		{"tie leaves winner unset", 8, 8, ""},
		{"zero reps tie", 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broadcaster := &recordingBroadcaster{}
			b := activeBattle(3600)
			_, session := startSession(t, b, broadcaster)

			if tt.creatorReps > 0 {
				_, err := session.SubmitReps(b.CreatorID, tt.creatorReps)
				require.NoError(t, err)
			}
			if tt.opponentReps > 0 {
				_, err := session.SubmitReps(b.OpponentID, tt.opponentReps)
				require.NoError(t, err)
			}

			settled, err := session.Finish(domain.BattleStatusCompleted, noPersist)
			require.NoError(t, err)
			assert.Equal(t, domain.BattleStatusCompleted, settled.Status)
			require.NotNil(t, settled.EndedAt)
			assert.NotEmpty(t, settled.FinalReps)

			switch tt.wantWinner {
			case "creator":
				require.NotNil(t, settled.WinnerID)
				assert.Equal(t, b.CreatorID, *settled.WinnerID)
			case "opponent":
				require.NotNil(t, settled.WinnerID)
				assert.Equal(t, b.OpponentID, *settled.WinnerID)
			default:
				assert.Nil(t, settled.WinnerID)
			}
		})
	}
}

func TestSession_FinishExactlyOnce(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	b := activeBattle(3600)
	_, session := startSession(t, b, broadcaster)

	_, err := session.Finish(domain.BattleStatusCompleted, noPersist)
	require.NoError(t, err)

	// The loser of a complete-vs-complete race observes the settled session.
	_, err = session.Finish(domain.BattleStatusCompleted, noPersist)
	assert.ErrorIs(t, err, battle.ErrSessionSettled)

	// No rep update lands after the outcome is decided.
	_, err = session.SubmitReps(b.CreatorID, 5)
	assert.ErrorIs(t, err, domain.ErrBattleNotActive)
}

func TestSession_CancelDiscardsWinner(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	b := activeBattle(3600)
	_, session := startSession(t, b, broadcaster)

	_, err := session.SubmitReps(b.CreatorID, 20)
	require.NoError(t, err)

	var persisted []*domain.BattlePerformance
	settled, err := session.Finish(domain.BattleStatusCancelled, func(_ *domain.Battle, perfs []*domain.BattlePerformance) error {
		persisted = perfs
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BattleStatusCancelled, settled.Status)
	assert.Nil(t, settled.WinnerID)

	// Last known counts are still written back for audit.
	require.Len(t, persisted, 2)
	byUser := make(map[uuid.UUID]int)
	for _, p := range persisted {
		byUser[p.UserID] = p.Reps
	}
	assert.Equal(t, 20, byUser[b.CreatorID])
}

func TestSession_PersistFailureKeepsSessionLive(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	b := activeBattle(3600)
	_, session := startSession(t, b, broadcaster)

	storeErr := errors.New("store unavailable")
	_, err := session.Finish(domain.BattleStatusCompleted, func(*domain.Battle, []*domain.BattlePerformance) error {
		return storeErr
	})
	assert.ErrorIs(t, err, storeErr)

	// The session did not advance past the failed write: reps still flow and
	// a retried settlement succeeds.
	_, err = session.SubmitReps(b.CreatorID, 3)
	require.NoError(t, err)

	settled, err := session.Finish(domain.BattleStatusCompleted, noPersist)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleStatusCompleted, settled.Status)
}

func TestSession_ConcurrentSettlementRace(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	b := activeBattle(3600)
	_, session := startSession(t, b, broadcaster)

	// Two producers compete to settle; exactly one wins.
	var settledCount, raceLost int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := session.Finish(domain.BattleStatusCompleted, noPersist)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				settledCount++
			} else if errors.Is(err, battle.ErrSessionSettled) {
				raceLost++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, settledCount)
	assert.Equal(t, 1, raceLost)
}
