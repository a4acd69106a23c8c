package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fitduel/fitduel-backend/internal/battle"
	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/fitduel/fitduel-backend/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OpponentFinder selects an opponent for a quick challenge.
type OpponentFinder interface {
	FindOpponent(ctx context.Context, creatorID uuid.UUID, exerciseType string) (uuid.UUID, error)
}

// BattleService is the facade for the battle lifecycle. It validates caller
// authorization, routes live-battle operations through the session manager and
// everything else through the store, and keeps the two consistent: the
// in-memory session never advances past a transition whose store write failed.
type BattleService struct {
	battleRepo  repository.BattleRepository
	perfRepo    repository.PerformanceRepository
	sessions    *battle.Manager
	broadcaster battle.Broadcaster
	finder      OpponentFinder
	maxDuration int
}

func NewBattleService(
	battleRepo repository.BattleRepository,
	perfRepo repository.PerformanceRepository,
	sessions *battle.Manager,
	broadcaster battle.Broadcaster,
	finder OpponentFinder,
	maxDurationSeconds int,
) *BattleService {
	return &BattleService{
		battleRepo:  battleRepo,
		perfRepo:    perfRepo,
		sessions:    sessions,
		broadcaster: broadcaster,
		finder:      finder,
		maxDuration: maxDurationSeconds,
	}
}

func (s *BattleService) validateChallenge(exerciseType string, durationSeconds int) error {
	if durationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	if s.maxDuration > 0 && durationSeconds > s.maxDuration {
		return fmt.Errorf("%w: duration exceeds %ds", domain.ErrInvalidInput, s.maxDuration)
	}
	if exerciseType == "" {
		return fmt.Errorf("%w: exercise type is required", domain.ErrInvalidInput)
	}
	return nil
}

type CreateBattleInput struct {
	CreatorID       uuid.UUID
	OpponentID      uuid.UUID
	ExerciseType    string
	DurationSeconds int
}

func (s *BattleService) CreateBattle(ctx context.Context, input CreateBattleInput) (*domain.Battle, error) {
	if err := s.validateChallenge(input.ExerciseType, input.DurationSeconds); err != nil {
		return nil, err
	}
	if input.CreatorID == input.OpponentID {
		return nil, fmt.Errorf("%w: cannot challenge yourself", domain.ErrInvalidInput)
	}

	b := &domain.Battle{
		ID:              uuid.New(),
		CreatorID:       input.CreatorID,
		OpponentID:      input.OpponentID,
		ExerciseType:    input.ExerciseType,
		DurationSeconds: input.DurationSeconds,
		Status:          domain.BattleStatusPending,
		CreatedAt:       time.Now(),
	}

	if err := s.battleRepo.Create(ctx, b); err != nil {
		return nil, err
	}

	log.Printf("Created battle %s: %s challenges %s (%s, %ds)",
		b.ID, b.CreatorID, b.OpponentID, b.ExerciseType, b.DurationSeconds)
	return b, nil
}

// CreateQuickChallenge creates a pending battle against an automatically
// selected opponent.
func (s *BattleService) CreateQuickChallenge(ctx context.Context, creatorID uuid.UUID, exerciseType string, durationSeconds int) (*domain.Battle, error) {
	if err := s.validateChallenge(exerciseType, durationSeconds); err != nil {
		return nil, err
	}

	opponentID, err := s.finder.FindOpponent(ctx, creatorID, exerciseType)
	if err != nil {
		return nil, err
	}

	return s.CreateBattle(ctx, CreateBattleInput{
		CreatorID:       creatorID,
		OpponentID:      opponentID,
		ExerciseType:    exerciseType,
		DurationSeconds: durationSeconds,
	})
}

// AcceptBattle moves a pending battle to accepted. Only the challenged
// opponent may act.
func (s *BattleService) AcceptBattle(ctx context.Context, battleID, callerID uuid.UUID) (*domain.Battle, error) {
	return s.answerChallenge(ctx, battleID, callerID, domain.BattleStatusAccepted)
}

// DeclineBattle moves a pending battle to declined. Only the challenged
// opponent may act.
func (s *BattleService) DeclineBattle(ctx context.Context, battleID, callerID uuid.UUID) (*domain.Battle, error) {
	return s.answerChallenge(ctx, battleID, callerID, domain.BattleStatusDeclined)
}

func (s *BattleService) answerChallenge(ctx context.Context, battleID, callerID uuid.UUID, to domain.BattleStatus) (*domain.Battle, error) {
	b, err := s.getBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if b.OpponentID != callerID {
		return nil, domain.ErrForbidden
	}

	from := b.Status
	b.Status, err = domain.Transition(from, to)
	if err != nil {
		return nil, err
	}

	b, err = s.persistTransition(ctx, b, from)
	if err != nil {
		return nil, err
	}

	if b.Status == to {
		s.broadcaster.BroadcastLifecycle(b, nil)
	}
	return b, nil
}

// StartBattle moves an accepted battle to active, persists the battle and
// zeroed performance rows, then brings up the live session with its
// auto-complete timer. The store write happens first so a live session always
// has a durable active record behind it.
func (s *BattleService) StartBattle(ctx context.Context, battleID uuid.UUID) (*domain.Battle, error) {
	b, err := s.getBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}

	from := b.Status
	b.Status, err = domain.Transition(from, domain.BattleStatusActive)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	b.StartedAt = &now

	b, err = s.persistTransition(ctx, b, from)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BattleStatusActive {
		// A concurrent transition won; report the decided outcome.
		return b, nil
	}

	perfs := []*domain.BattlePerformance{
		{BattleID: b.ID, UserID: b.CreatorID, LastUpdatedAt: now},
		{BattleID: b.ID, UserID: b.OpponentID, LastUpdatedAt: now},
	}
	if err := s.perfRepo.UpsertMany(ctx, perfs); err != nil {
		return nil, err
	}

	if _, err := s.sessions.StartSession(b, s.autoComplete); err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastLifecycle(b, nil)
	return b, nil
}

// autoComplete is the timer callback armed at session start. Losing the race
// against an explicit complete or cancel is the expected outcome half the
// time, so a settled session is not an error here.
func (s *BattleService) autoComplete(battleID uuid.UUID) {
	if _, err := s.CompleteBattle(context.Background(), battleID); err != nil {
		log.Printf("Auto-complete for battle %s failed: %v", battleID, err)
	}
}

// SubmitReps applies a live rep update. The submitted value is the
// participant's running total; a value not greater than the stored one is
// rejected as stale.
func (s *BattleService) SubmitReps(ctx context.Context, battleID, callerID uuid.UUID, reps int) (*domain.BattlePerformance, error) {
	if reps < 0 {
		return nil, fmt.Errorf("%w: reps cannot be negative", domain.ErrInvalidInput)
	}

	session, ok := s.sessions.Get(battleID)
	if !ok {
		// No live session: distinguish a missing battle and a non-participant
		// from a battle that simply is not active.
		b, err := s.getBattle(ctx, battleID)
		if err != nil {
			return nil, err
		}
		if !b.IsParticipant(callerID) {
			return nil, domain.ErrForbidden
		}
		return nil, domain.ErrBattleNotActive
	}

	snapshot, err := session.SubmitReps(callerID, reps)
	if err != nil {
		return nil, err
	}

	return &domain.BattlePerformance{
		BattleID:      battleID,
		UserID:        callerID,
		Reps:          snapshot.Reps[callerID],
		LastUpdatedAt: time.Now(),
	}, nil
}

// CompleteBattle settles an active battle, computing the winner and writing
// the final record. Both the expiry timer and explicit requests land here;
// whichever settles first wins and the loser observes the decided outcome.
func (s *BattleService) CompleteBattle(ctx context.Context, battleID uuid.UUID) (*domain.Battle, error) {
	session, ok := s.sessions.Get(battleID)
	if !ok {
		b, err := s.getBattle(ctx, battleID)
		if err != nil {
			return nil, err
		}
		if b.Status.IsTerminal() {
			// Already settled by a concurrent path.
			return b, nil
		}
		if b.Status == domain.BattleStatusActive {
			// Active in the store but no live session, e.g. after a restart.
			// Settle from the durable counts so the battle is not stuck.
			return s.completeFromStore(ctx, b)
		}
		return nil, domain.ErrInvalidTransition
	}

	settled, err := session.Finish(domain.BattleStatusCompleted, s.persistSettlement(ctx))
	if errors.Is(err, battle.ErrSessionSettled) {
		return s.getBattle(ctx, battleID)
	}
	if err != nil {
		return nil, err
	}

	s.sessions.Remove(battleID)
	log.Printf("Battle %s completed, winner=%v", battleID, settled.WinnerID)
	return settled, nil
}

// CancelBattle cancels a non-terminal battle. For an active battle the session
// is torn down; the last known rep counts are written back for audit but no
// winner is recorded.
func (s *BattleService) CancelBattle(ctx context.Context, battleID, callerID uuid.UUID) (*domain.Battle, error) {
	b, err := s.getBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if !b.IsParticipant(callerID) {
		return nil, domain.ErrForbidden
	}

	if session, ok := s.sessions.Get(battleID); ok {
		settled, err := session.Finish(domain.BattleStatusCancelled, s.persistSettlement(ctx))
		if errors.Is(err, battle.ErrSessionSettled) {
			return s.getBattle(ctx, battleID)
		}
		if err != nil {
			return nil, err
		}

		s.sessions.Remove(battleID)
		log.Printf("Battle %s cancelled by %s", battleID, callerID)
		return settled, nil
	}

	from := b.Status
	b.Status, err = domain.Transition(from, domain.BattleStatusCancelled)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	b.EndedAt = &now

	b, err = s.persistTransition(ctx, b, from)
	if err != nil {
		return nil, err
	}

	if b.Status == domain.BattleStatusCancelled {
		s.broadcaster.BroadcastLifecycle(b, nil)
	}
	return b, nil
}

// GetBattleByID returns the stored battle record.
func (s *BattleService) GetBattleByID(ctx context.Context, battleID uuid.UUID) (*domain.Battle, error) {
	return s.getBattle(ctx, battleID)
}

// GetUserBattles lists battles the user participates in, newest first,
// optionally filtered by status.
func (s *BattleService) GetUserBattles(ctx context.Context, userID uuid.UUID, status *domain.BattleStatus, limit, offset int) ([]*domain.Battle, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.battleRepo.GetByUserID(ctx, userID, status, limit, offset)
}

// GetBattlePerformances returns rep counts for a battle. Active battles are
// read from the live session so counts are never stale.
func (s *BattleService) GetBattlePerformances(ctx context.Context, battleID uuid.UUID) ([]*domain.BattlePerformance, error) {
	if session, ok := s.sessions.Get(battleID); ok {
		return session.Performances(), nil
	}

	if _, err := s.getBattle(ctx, battleID); err != nil {
		return nil, err
	}
	return s.perfRepo.GetByBattleID(ctx, battleID)
}

// completeFromStore settles an active battle that has no live session using
// the last persisted rep counts.
func (s *BattleService) completeFromStore(ctx context.Context, b *domain.Battle) (*domain.Battle, error) {
	perfs, err := s.perfRepo.GetByBattleID(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	reps := map[uuid.UUID]int{b.CreatorID: 0, b.OpponentID: 0}
	for _, p := range perfs {
		reps[p.UserID] = p.Reps
	}

	b.Status = domain.BattleStatusCompleted
	b.WinnerID = battle.ComputeWinner(b.CreatorID, b.OpponentID, reps)
	now := time.Now()
	b.EndedAt = &now

	finalReps := make(map[string]int, len(reps))
	for id, n := range reps {
		finalReps[id.String()] = n
	}
	if data, err := json.Marshal(finalReps); err == nil {
		b.FinalReps = datatypes.JSON(data)
	}

	b, err = s.persistTransition(ctx, b, domain.BattleStatusActive)
	if err != nil {
		return nil, err
	}

	if b.Status == domain.BattleStatusCompleted {
		s.broadcaster.BroadcastLifecycle(b, nil)
		log.Printf("Battle %s completed from stored counts, winner=%v", b.ID, b.WinnerID)
	}
	return b, nil
}

func (s *BattleService) getBattle(ctx context.Context, battleID uuid.UUID) (*domain.Battle, error) {
	b, err := s.battleRepo.GetByID(ctx, battleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBattleNotFound
		}
		return nil, err
	}
	return b, nil
}

// persistSettlement is the store write run inside session settlement, while
// the session lock is held. Settlement does not advance if this fails.
func (s *BattleService) persistSettlement(ctx context.Context) func(*domain.Battle, []*domain.BattlePerformance) error {
	return func(b *domain.Battle, perfs []*domain.BattlePerformance) error {
		if err := s.battleRepo.Update(ctx, b); err != nil {
			return err
		}
		return s.perfRepo.UpsertMany(ctx, perfs)
	}
}

// persistTransition writes a status change guarded by the status the caller
// read. A concurrent transition between the read and the write leaves the
// guard unmatched; the record is then re-read so a terminal status reached by
// the other path is reported as the decided outcome, never overwritten.
func (s *BattleService) persistTransition(ctx context.Context, b *domain.Battle, from domain.BattleStatus) (*domain.Battle, error) {
	err := s.battleRepo.UpdateStatusFrom(ctx, b, from)
	if err == nil {
		return b, nil
	}

	current, readErr := s.battleRepo.GetByID(ctx, b.ID)
	if readErr == nil && current.Status.IsTerminal() {
		return current, nil
	}
	if errors.Is(err, domain.ErrStatusConflict) {
		return nil, domain.ErrInvalidTransition
	}
	return nil, err
}
