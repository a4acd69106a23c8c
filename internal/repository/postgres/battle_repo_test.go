package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/fitduel/fitduel-backend/internal/repository/postgres"
	"github.com/fitduel/fitduel-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattleRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	creator, _ := testutil.NewUserBuilder().WithDisplayName("creator").Build(t, testDB.DB)
	opponent, _ := testutil.NewUserBuilder().WithDisplayName("opponent").Build(t, testDB.DB)

	battle := &domain.Battle{
		ID:              uuid.New(),
		CreatorID:       creator.ID,
		OpponentID:      opponent.ID,
		ExerciseType:    "pushups",
		DurationSeconds: 60,
		Status:          domain.BattleStatusPending,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, repo.Create(ctx, battle))

	got, err := repo.GetByID(ctx, battle.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.ID, got.ID)
	assert.Equal(t, domain.BattleStatusPending, got.Status)
	assert.Equal(t, "pushups", got.ExerciseType)
	require.NotNil(t, got.Creator)
	assert.Equal(t, "creator", got.Creator.DisplayName)
	require.NotNil(t, got.Opponent)
	assert.Equal(t, "opponent", got.Opponent.DisplayName)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.Error(t, err)
}

func TestBattleRepository_Update(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	creator, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	opponent, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	battle := testutil.NewBattleBuilder(creator, opponent).Build(t, testDB.DB)

	now := time.Now()
	battle.Status = domain.BattleStatusCompleted
	battle.WinnerID = &creator.ID
	battle.EndedAt = &now
	require.NoError(t, repo.Update(ctx, battle))

	got, err := repo.GetByID(ctx, battle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleStatusCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, creator.ID, *got.WinnerID)
	assert.NotNil(t, got.EndedAt)
}

func TestBattleRepository_UpdateStatusFrom(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	creator, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	opponent, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	t.Run("applies when stored status matches", func(t *testing.T) {
		battle := testutil.NewBattleBuilder(creator, opponent).WithStatus(domain.BattleStatusActive).Build(t, testDB.DB)

		now := time.Now()
		battle.Status = domain.BattleStatusCompleted
		battle.WinnerID = &creator.ID
		battle.EndedAt = &now
		require.NoError(t, repo.UpdateStatusFrom(ctx, battle, domain.BattleStatusActive))

		got, err := repo.GetByID(ctx, battle.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BattleStatusCompleted, got.Status)
		require.NotNil(t, got.WinnerID)
		assert.Equal(t, creator.ID, *got.WinnerID)
		assert.NotNil(t, got.EndedAt)
	})

	t.Run("conflict leaves the row untouched", func(t *testing.T) {
		battle := testutil.NewBattleBuilder(creator, opponent).WithStatus(domain.BattleStatusCancelled).Build(t, testDB.DB)

		stale := *battle
		stale.Status = domain.BattleStatusAccepted
		err := repo.UpdateStatusFrom(ctx, &stale, domain.BattleStatusPending)
		assert.ErrorIs(t, err, domain.ErrStatusConflict)

		got, err := repo.GetByID(ctx, battle.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BattleStatusCancelled, got.Status)
	})
}

func TestBattleRepository_GetByUserID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	user1, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	user2, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	user3, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	// user1 created two battles, is the opponent in a third.
	testutil.NewBattleBuilder(user1, user2).Build(t, testDB.DB)
	testutil.NewBattleBuilder(user1, user3).WithStatus(domain.BattleStatusCompleted).Build(t, testDB.DB)
	testutil.NewBattleBuilder(user2, user1).Build(t, testDB.DB)

	battles, err := repo.GetByUserID(ctx, user1.ID, nil, 20, 0)
	require.NoError(t, err)
	assert.Len(t, battles, 3)

	completed := domain.BattleStatusCompleted
	battles, err = repo.GetByUserID(ctx, user1.ID, &completed, 20, 0)
	require.NoError(t, err)
	require.Len(t, battles, 1)
	assert.Equal(t, domain.BattleStatusCompleted, battles[0].Status)

	battles, err = repo.GetByUserID(ctx, user3.ID, nil, 20, 0)
	require.NoError(t, err)
	assert.Len(t, battles, 1)

	battles, err = repo.GetByUserID(ctx, uuid.New(), nil, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, battles)
}

func TestPerformanceRepository_Upsert(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPerformanceRepository(testDB.DB)
	ctx := context.Background()

	creator, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	opponent, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	battle := testutil.NewBattleBuilder(creator, opponent).WithStatus(domain.BattleStatusActive).Build(t, testDB.DB)

	perf := &domain.BattlePerformance{
		BattleID:      battle.ID,
		UserID:        creator.ID,
		Reps:          10,
		LastUpdatedAt: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, perf))

	// Upserting the same (battle, user) key updates in place.
	perf2 := &domain.BattlePerformance{
		BattleID:      battle.ID,
		UserID:        creator.ID,
		Reps:          25,
		LastUpdatedAt: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, perf2))

	perfs, err := repo.GetByBattleID(ctx, battle.ID)
	require.NoError(t, err)
	require.Len(t, perfs, 1)
	assert.Equal(t, 25, perfs[0].Reps)
}

func TestPerformanceRepository_UpsertMany(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPerformanceRepository(testDB.DB)
	ctx := context.Background()

	creator, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	opponent, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	battle := testutil.NewBattleBuilder(creator, opponent).WithStatus(domain.BattleStatusActive).Build(t, testDB.DB)

	perfs := []*domain.BattlePerformance{
		{BattleID: battle.ID, UserID: creator.ID, Reps: 10, LastUpdatedAt: time.Now()},
		{BattleID: battle.ID, UserID: opponent.ID, Reps: 7, LastUpdatedAt: time.Now()},
	}
	require.NoError(t, repo.UpsertMany(ctx, perfs))
	require.NoError(t, repo.UpsertMany(ctx, nil))

	got, err := repo.GetByBattleID(ctx, battle.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
