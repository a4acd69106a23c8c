package postgres

import (
	"context"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type battleRepository struct {
	db *gorm.DB
}

func NewBattleRepository(db *gorm.DB) *battleRepository {
	return &battleRepository{db: db}
}

func (r *battleRepository) Create(ctx context.Context, battle *domain.Battle) error {
	return r.db.WithContext(ctx).Create(battle).Error
}

func (r *battleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Battle, error) {
	var battle domain.Battle
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Opponent").
		First(&battle, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &battle, nil
}

func (r *battleRepository) Update(ctx context.Context, battle *domain.Battle) error {
	return r.db.WithContext(ctx).Save(battle).Error
}

// UpdateStatusFrom guards the write with the expected current status so a
// concurrent transition is detected instead of overwritten. Zero rows affected
// means the guard did not match.
func (r *battleRepository) UpdateStatusFrom(ctx context.Context, battle *domain.Battle, from domain.BattleStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.Battle{}).
		Where("id = ? AND status = ?", battle.ID, from).
		Updates(map[string]interface{}{
			"status":     battle.Status,
			"winner_id":  battle.WinnerID,
			"final_reps": battle.FinalReps,
			"started_at": battle.StartedAt,
			"ended_at":   battle.EndedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

func (r *battleRepository) GetByUserID(ctx context.Context, userID uuid.UUID, status *domain.BattleStatus, limit, offset int) ([]*domain.Battle, error) {
	query := r.db.WithContext(ctx).
		Where("creator_id = ? OR opponent_id = ?", userID, userID)

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var battles []*domain.Battle
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&battles).Error
	if err != nil {
		return nil, err
	}
	return battles, nil
}
