package domain

import "errors"

// Battle errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("caller is not allowed to act on this battle")
	ErrBattleNotFound    = errors.New("battle not found")
	ErrInvalidTransition = errors.New("invalid battle status transition")
	ErrStatusConflict    = errors.New("battle status changed concurrently")
	ErrBattleNotActive   = errors.New("battle has no active session")
	ErrStaleUpdate       = errors.New("rep count is not greater than the stored value")
	ErrNoOpponentFound   = errors.New("no opponent available")
)
