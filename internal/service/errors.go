package service

import (
	"context"
	"errors"

	"github.com/click-arena/click-arena-backend/internal/store"
)

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// Account service specific errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrPlayerNotFound     = errors.New("player not found")
)

// Presence / queue specific errors
var (
	ErrAlreadyEngaged = errors.New("player already queued, challenging or in a match")
	ErrNotSearching   = errors.New("player is not in the queue")
	ErrPlayerOffline  = errors.New("player is offline")
)

// Challenge specific errors
var (
	ErrTargetNotFound     = errors.New("target player not found")
	ErrTargetBusy         = errors.New("target player is not available")
	ErrSelfChallenge      = errors.New("cannot challenge yourself")
	ErrNoPendingChallenge = errors.New("no pending challenge")
)

// Match specific errors
var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchNotActive = errors.New("match is not active")
	ErrNotInMatch     = errors.New("player is not a participant of this match")
	ErrNotYourTurn    = errors.New("not your turn")
)

// maxTxRetries 충돌 시 자동 재시도 상한. 넘어서면 ErrConflict가 그대로 올라간다.
const maxTxRetries = 3

// transactWithRetry 충돌(ErrConflict)만 재시도하고 나머지는 그대로 반환
func transactWithRetry(ctx context.Context, st store.Store, fn func(tx store.Tx) error) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = st.Transact(ctx, fn)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return err
}
