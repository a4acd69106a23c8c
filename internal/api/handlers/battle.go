package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fitduel/fitduel-backend/internal/api/middleware"
	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/fitduel/fitduel-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type BattleHandler struct {
	battleService *service.BattleService
}

func NewBattleHandler(battleService *service.BattleService) *BattleHandler {
	return &BattleHandler{battleService: battleService}
}

type CreateBattleRequest struct {
	OpponentID      string `json:"opponentId"`
	ExerciseType    string `json:"exerciseType"`
	DurationSeconds int    `json:"durationSeconds"`
}

type QuickChallengeRequest struct {
	ExerciseType    string `json:"exerciseType"`
	DurationSeconds int    `json:"durationSeconds"`
}

type SubmitRepsRequest struct {
	Reps int `json:"reps"`
}

func (h *BattleHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opponentID, err := uuid.Parse(req.OpponentID)
	if err != nil {
		http.Error(w, "Invalid opponent id", http.StatusBadRequest)
		return
	}

	battle, err := h.battleService.CreateBattle(r.Context(), service.CreateBattleInput{
		CreatorID:       userID,
		OpponentID:      opponentID,
		ExerciseType:    req.ExerciseType,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) CreateQuick(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req QuickChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	battle, err := h.battleService.CreateQuickChallenge(r.Context(), userID, req.ExerciseType, req.DurationSeconds)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var status *domain.BattleStatus
	if s := r.URL.Query().Get("status"); s != "" {
		bs := domain.BattleStatus(s)
		status = &bs
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	battles, err := h.battleService.GetUserBattles(r.Context(), userID, status, limit, offset)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battles)
}

func (h *BattleHandler) Get(w http.ResponseWriter, r *http.Request) {
	battleID, ok := parseBattleID(w, r)
	if !ok {
		return
	}

	battle, err := h.battleService.GetBattleByID(r.Context(), battleID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) GetPerformances(w http.ResponseWriter, r *http.Request) {
	battleID, ok := parseBattleID(w, r)
	if !ok {
		return
	}

	perfs, err := h.battleService.GetBattlePerformances(r.Context(), battleID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, perfs)
}

func (h *BattleHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respondToChallenge(w, r, h.battleService.AcceptBattle)
}

func (h *BattleHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respondToChallenge(w, r, h.battleService.DeclineBattle)
}

func (h *BattleHandler) respondToChallenge(w http.ResponseWriter, r *http.Request, respond func(ctx context.Context, battleID, callerID uuid.UUID) (*domain.Battle, error)) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	battleID, ok := parseBattleID(w, r)
	if !ok {
		return
	}

	battle, err := respond(r.Context(), battleID, userID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) Start(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.requireParticipant(w, r)
	if !ok {
		return
	}

	battle, err := h.battleService.StartBattle(r.Context(), battleID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

// requireParticipant resolves the battle from the URL and rejects callers who
// are not one of its contestants. Start and complete run as the caller, so
// unlike the internal timer path they need this check.
func (h *BattleHandler) requireParticipant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}

	battleID, ok := parseBattleID(w, r)
	if !ok {
		return uuid.Nil, false
	}

	battle, err := h.battleService.GetBattleByID(r.Context(), battleID)
	if err != nil {
		writeBattleError(w, err)
		return uuid.Nil, false
	}
	if !battle.IsParticipant(userID) {
		writeBattleError(w, domain.ErrForbidden)
		return uuid.Nil, false
	}

	return battleID, true
}

func (h *BattleHandler) SubmitReps(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	battleID, ok := parseBattleID(w, r)
	if !ok {
		return
	}

	var req SubmitRepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	perf, err := h.battleService.SubmitReps(r.Context(), battleID, userID, req.Reps)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, perf)
}

func (h *BattleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.requireParticipant(w, r)
	if !ok {
		return
	}

	battle, err := h.battleService.CompleteBattle(r.Context(), battleID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	battleID, ok := parseBattleID(w, r)
	if !ok {
		return
	}

	battle, err := h.battleService.CancelBattle(r.Context(), battleID, userID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func parseBattleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	battleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return battleID, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeBattleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrBattleNotFound):
		http.Error(w, "Battle not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNoOpponentFound):
		http.Error(w, "No opponent available", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, "Invalid battle state transition", http.StatusConflict)
	case errors.Is(err, domain.ErrBattleNotActive):
		http.Error(w, "Battle is not active", http.StatusConflict)
	case errors.Is(err, domain.ErrStaleUpdate):
		http.Error(w, "Stale rep update", http.StatusConflict)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
