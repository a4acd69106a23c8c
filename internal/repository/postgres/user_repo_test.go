package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/fitduel/fitduel-backend/internal/repository/postgres"
	"github.com/fitduel/fitduel-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByDisplayName(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithDisplayName("findme").Build(t, testDB.DB)

	got, err := repo.GetByDisplayName(ctx, "findme")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByDisplayName(ctx, "nosuchuser")
	assert.Error(t, err)
}

func TestUserRepository_Update(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	user.LastActiveAt = time.Now().Add(time.Hour)
	require.NoError(t, repo.Update(ctx, user))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, user.LastActiveAt, got.LastActiveAt, time.Second)
}

func TestUserRepository_GetMostRecentlyActive(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	stale, _ := testutil.NewUserBuilder().WithLastActiveAt(time.Now().Add(-48 * time.Hour)).Build(t, testDB.DB)
	fresh, _ := testutil.NewUserBuilder().WithLastActiveAt(time.Now()).Build(t, testDB.DB)
	middle, _ := testutil.NewUserBuilder().WithLastActiveAt(time.Now().Add(-1 * time.Hour)).Build(t, testDB.DB)

	users, err := repo.GetMostRecentlyActive(ctx, uuid.New(), 10)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, fresh.ID, users[0].ID)
	assert.Equal(t, middle.ID, users[1].ID)
	assert.Equal(t, stale.ID, users[2].ID)

	// The requesting user is excluded from candidates.
	users, err = repo.GetMostRecentlyActive(ctx, fresh.ID, 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, middle.ID, users[0].ID)

	users, err = repo.GetMostRecentlyActive(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
