package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type BattleStatus string

const (
	BattleStatusPending   BattleStatus = "pending"
	BattleStatusAccepted  BattleStatus = "accepted"
	BattleStatusDeclined  BattleStatus = "declined"
	BattleStatusActive    BattleStatus = "active"
	BattleStatusCompleted BattleStatus = "completed"
	BattleStatusCancelled BattleStatus = "cancelled"
)

type Battle struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatorID       uuid.UUID      `json:"creatorId" gorm:"type:uuid;index;not null"`
	OpponentID      uuid.UUID      `json:"opponentId" gorm:"type:uuid;index;not null"`
	ExerciseType    string         `json:"exerciseType" gorm:"not null"`
	DurationSeconds int            `json:"durationSeconds" gorm:"not null"`
	Status          BattleStatus   `json:"status" gorm:"not null;default:'pending'"`
	WinnerID        *uuid.UUID     `json:"winnerId" gorm:"type:uuid"`
	FinalReps       datatypes.JSON `json:"finalReps,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"createdAt"`
	StartedAt       *time.Time     `json:"startedAt"`
	EndedAt         *time.Time     `json:"endedAt"`

	// Relations
	Creator  *User `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Opponent *User `json:"opponent,omitempty" gorm:"foreignKey:OpponentID"`
}

// IsParticipant reports whether the given user is one of the two contestants.
func (b *Battle) IsParticipant(userID uuid.UUID) bool {
	return b.CreatorID == userID || b.OpponentID == userID
}

type BattlePerformance struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BattleID      uuid.UUID `json:"battleId" gorm:"type:uuid;uniqueIndex:idx_battle_user;not null"`
	UserID        uuid.UUID `json:"userId" gorm:"type:uuid;uniqueIndex:idx_battle_user;not null"`
	Reps          int       `json:"reps" gorm:"not null;default:0"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}
