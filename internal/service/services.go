package service

import (
	"github.com/fitduel/fitduel-backend/internal/battle"
	"github.com/fitduel/fitduel-backend/internal/config"
	"github.com/fitduel/fitduel-backend/internal/repository"
)

type Services struct {
	Auth      *AuthService
	Battle    *BattleService
	Discovery *DiscoveryService
}

func NewServices(repos *repository.Repositories, sessions *battle.Manager, broadcaster battle.Broadcaster, cfg *config.Config) *Services {
	discovery := NewDiscoveryService(repos.User)
	return &Services{
		Auth:      NewAuthService(repos.User, repos.Session, cfg),
		Battle:    NewBattleService(repos.Battle, repos.Performance, sessions, broadcaster, discovery, cfg.MaxBattleDurationSeconds),
		Discovery: discovery,
	}
}
