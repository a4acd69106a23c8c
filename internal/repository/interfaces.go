package repository

import (
	"context"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	GetMostRecentlyActive(ctx context.Context, excludeID uuid.UUID, limit int) ([]*domain.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type BattleRepository interface {
	Create(ctx context.Context, battle *domain.Battle) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Battle, error)
	Update(ctx context.Context, battle *domain.Battle) error
	// UpdateStatusFrom writes a status transition only if the stored status
	// still equals from, returning domain.ErrStatusConflict when a concurrent
	// transition got there first.
	UpdateStatusFrom(ctx context.Context, battle *domain.Battle, from domain.BattleStatus) error
	GetByUserID(ctx context.Context, userID uuid.UUID, status *domain.BattleStatus, limit, offset int) ([]*domain.Battle, error)
}

type PerformanceRepository interface {
	Upsert(ctx context.Context, perf *domain.BattlePerformance) error
	UpsertMany(ctx context.Context, perfs []*domain.BattlePerformance) error
	GetByBattleID(ctx context.Context, battleID uuid.UUID) ([]*domain.BattlePerformance, error)
}

type Repositories struct {
	User        UserRepository
	Session     SessionRepository
	Battle      BattleRepository
	Performance PerformanceRepository
}
