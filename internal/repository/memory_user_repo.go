package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"aakar-gateway/internal/model"
)

// MemoryUserRepository keeps users in process memory. The uniqueness check
// and the insert happen under one lock.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]model.User
	byUsername map[string]string
	byEmail    map[string]string
	now        func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       map[string]model.User{},
		byUsername: map[string]string{},
		byEmail:    map[string]string{},
		now:        time.Now,
	}
}

func (r *MemoryUserRepository) FindByEmailOrUsername(_ context.Context, identifier string) (model.User, error) {
	key := strings.ToLower(strings.TrimSpace(identifier))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byEmail[key]; ok {
		return r.byID[id], nil
	}
	if id, ok := r.byUsername[key]; ok {
		return r.byID[id], nil
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) (model.User, error) {
	usernameKey := strings.ToLower(u.Username)
	emailKey := strings.ToLower(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[emailKey]; exists {
		return model.User{}, &model.DuplicateKeyError{Field: "email"}
	}
	if _, exists := r.byUsername[usernameKey]; exists {
		return model.User{}, &model.DuplicateKeyError{Field: "username"}
	}

	u.ID = uuid.NewString()
	u.CreatedAt = r.now().UTC()

	r.byID[u.ID] = u
	r.byUsername[usernameKey] = u.ID
	r.byEmail[emailKey] = u.ID

	return u, nil
}

func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
