package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"aakar-gateway/internal/model"
)

const DefaultBcryptCost = 12

// PasswordHasher wraps bcrypt and bounds how many hash operations run at once
// so that a burst of signups cannot occupy every CPU.
type PasswordHasher struct {
	cost      int
	slots     *semaphore.Weighted
	dummyHash []byte
}

func NewPasswordHasher(cost int, concurrency int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("aakar-timing-equalizer"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &PasswordHasher{
		cost:      cost,
		slots:     semaphore.NewWeighted(int64(concurrency)),
		dummyHash: dummy,
	}, nil
}

func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrHashing, err)
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrHashing, err)
	}

	return string(hash), nil
}

// Verify reports whether plaintext matches hash. An empty hash is compared
// against an internal dummy so the call costs the same as a real check and
// always reports false. The error is non-nil only when no hashing slot could
// be had; a mismatch or a malformed hash is just false.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext string, hash string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrHashing, err)
	}
	defer h.slots.Release(1)

	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(plaintext))
		return false, nil
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil, nil
}
