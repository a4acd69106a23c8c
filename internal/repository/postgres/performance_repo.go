package postgres

import (
	"context"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type performanceRepository struct {
	db *gorm.DB
}

func NewPerformanceRepository(db *gorm.DB) *performanceRepository {
	return &performanceRepository{db: db}
}

func (r *performanceRepository) Upsert(ctx context.Context, perf *domain.BattlePerformance) error {
	if perf.ID == uuid.Nil {
		perf.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "battle_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reps", "last_updated_at"}),
	}).Create(perf).Error
}

func (r *performanceRepository) UpsertMany(ctx context.Context, perfs []*domain.BattlePerformance) error {
	if len(perfs) == 0 {
		return nil
	}
	for _, p := range perfs {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "battle_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reps", "last_updated_at"}),
	}).Create(perfs).Error
}

func (r *performanceRepository) GetByBattleID(ctx context.Context, battleID uuid.UUID) ([]*domain.BattlePerformance, error) {
	var perfs []*domain.BattlePerformance
	err := r.db.WithContext(ctx).
		Where("battle_id = ?", battleID).
		Order("user_id ASC").
		Find(&perfs).Error
	if err != nil {
		return nil, err
	}
	return perfs, nil
}
