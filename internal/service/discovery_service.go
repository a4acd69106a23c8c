package service

import (
	"context"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/fitduel/fitduel-backend/internal/repository"
	"github.com/google/uuid"
)

// DiscoveryService picks quick-challenge opponents. Selection is by recency of
// activity: the most recently active user other than the creator.
type DiscoveryService struct {
	userRepo repository.UserRepository
}

func NewDiscoveryService(userRepo repository.UserRepository) *DiscoveryService {
	return &DiscoveryService{userRepo: userRepo}
}

// FindOpponent returns a candidate opponent for the creator. The exercise type
// is accepted for future ranking signals but does not affect selection yet.
func (s *DiscoveryService) FindOpponent(ctx context.Context, creatorID uuid.UUID, exerciseType string) (uuid.UUID, error) {
	candidates, err := s.userRepo.GetMostRecentlyActive(ctx, creatorID, 1)
	if err != nil {
		return uuid.Nil, err
	}
	if len(candidates) == 0 {
		return uuid.Nil, domain.ErrNoOpponentFound
	}
	return candidates[0].ID, nil
}
