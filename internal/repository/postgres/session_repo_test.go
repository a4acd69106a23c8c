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

func TestSessionRepository_GetByUserID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSessionRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	expired := &domain.UserSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: "expired-hash",
		ExpiresAt:        time.Now().Add(-time.Hour),
		CreatedAt:        time.Now().Add(-8 * 24 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, expired))

	// An expired session does not count as a login.
	_, err := repo.GetByUserID(ctx, user.ID)
	assert.Error(t, err)

	current := &domain.UserSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: "current-hash",
		ExpiresAt:        time.Now().Add(time.Hour),
		CreatedAt:        time.Now(),
	}
	require.NoError(t, repo.Create(ctx, current))

	got, err := repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, current.ID, got.ID)

	require.NoError(t, repo.DeleteByUserID(ctx, user.ID))
	_, err = repo.GetByUserID(ctx, user.ID)
	assert.Error(t, err)
}
