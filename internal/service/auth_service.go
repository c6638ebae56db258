package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"aakar-gateway/internal/event"
	"aakar-gateway/internal/model"
	"aakar-gateway/internal/util"
	"aakar-gateway/pkg/apierror"
)

const (
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

type userStore interface {
	FindByEmailOrUsername(ctx context.Context, identifier string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
}

type passwordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext string, hash string) (bool, error)
}

type tokenManager interface {
	Issue(claims model.AuthClaims) (string, error)
	Verify(token string) (*model.AuthClaims, error)
}

// AuthService owns signup, login and profile lookup. It takes no locks of
// its own: the store's atomic create settles signup races.
type AuthService struct {
	users  userStore
	hasher passwordHasher
	tokens tokenManager
	bus    event.Bus
}

func NewAuthService(users userStore, hasher passwordHasher, tokens tokenManager, bus event.Bus) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, bus: bus}
}

func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (model.AuthResult, error) {
	fullName := util.NormalizeFullName(req.FullName)
	username := util.NormalizeIdentifier(req.Username)
	email := util.NormalizeIdentifier(req.Email)
	password := req.Password

	if fullName == "" || username == "" || email == "" || password == "" {
		return model.AuthResult{}, validationError("All fields are required", "")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return model.AuthResult{}, validationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength), "password")
	}
	if len(password) > maxPasswordBytes {
		return model.AuthResult{}, validationError(fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes), "password")
	}
	if err := util.ValidateUsername(username); err != nil {
		return model.AuthResult{}, err
	}
	if err := util.ValidateEmail(email); err != nil {
		return model.AuthResult{}, err
	}

	if err := s.checkAvailable(ctx, email, username); err != nil {
		return model.AuthResult{}, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return model.AuthResult{}, err
	}

	// Once the hash is paid for, the create runs to completion even if the
	// caller goes away, so a committed account is never reported as failed
	// by a cancellation racing the insert.
	user, err := s.users.Create(context.WithoutCancel(ctx), model.User{
		FullName:     fullName,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		var dup *model.DuplicateKeyError
		if errors.As(err, &dup) {
			return model.AuthResult{}, duplicateError(dup.Field)
		}
		return model.AuthResult{}, err
	}

	result, err := s.issue(user)
	if err != nil {
		return model.AuthResult{}, err
	}

	s.publish(event.TypeUserSignedUp, user.ID, map[string]any{"username": user.Username})
	return result, nil
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error) {
	identifier := util.NormalizeIdentifier(req.EmailOrUsername)
	if identifier == "" || req.Password == "" {
		return model.AuthResult{}, validationError("Email/username and password are required", "")
	}

	user, err := s.users.FindByEmailOrUsername(ctx, identifier)
	if errors.Is(err, model.ErrUserNotFound) {
		// Spend one comparison anyway so unknown accounts answer as slowly
		// as known ones.
		if _, err := s.hasher.Verify(ctx, req.Password, ""); err != nil {
			return model.AuthResult{}, err
		}
		s.publish(event.TypeUserLoginFail, "", map[string]any{"identifier": identifier, "reason": "unknown_identifier"})
		return model.AuthResult{}, invalidCredentials()
	}
	if err != nil {
		return model.AuthResult{}, err
	}

	matched, err := s.hasher.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		return model.AuthResult{}, err
	}
	if !matched {
		s.publish(event.TypeUserLoginFail, user.ID, map[string]any{"identifier": identifier, "reason": "wrong_password"})
		return model.AuthResult{}, invalidCredentials()
	}

	result, err := s.issue(user)
	if err != nil {
		return model.AuthResult{}, err
	}

	s.publish(event.TypeUserLoggedIn, user.ID, map[string]any{"username": user.Username})
	return result, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (model.UserView, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserView{}, apierror.Wrap(model.ErrUserNotFound, "NOT_FOUND", "User not found", "", http.StatusNotFound)
	}
	if err != nil {
		return model.UserView{}, err
	}

	return user.View(), nil
}

// Authenticate verifies a bearer token and returns the identity it carries.
func (s *AuthService) Authenticate(_ context.Context, token string) (*model.AuthClaims, error) {
	claims, err := s.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		s.publish(event.TypeTokenRejected, "", nil)
		return nil, err
	}
	return claims, nil
}

// checkAvailable looks the email up first so that a request colliding on
// both fields is reported as a duplicate email.
func (s *AuthService) checkAvailable(ctx context.Context, email string, username string) error {
	for _, candidate := range []struct {
		field string
		value string
	}{{"email", email}, {"username", username}} {
		existing, err := s.users.FindByEmailOrUsername(ctx, candidate.value)
		if errors.Is(err, model.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if strings.EqualFold(existing.Email, email) {
			return duplicateError("email")
		}
		return duplicateError("username")
	}

	return nil
}

func (s *AuthService) issue(user model.User) (model.AuthResult, error) {
	token, err := s.tokens.Issue(model.AuthClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	return model.AuthResult{Token: token, User: user.View()}, nil
}

func (s *AuthService) publish(typ event.Type, actorID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{Type: typ, ActorID: actorID, Payload: payload})
	slog.Debug("auth event", "type", typ, "actor_id", actorID)
}

func validationError(message string, field string) error {
	return apierror.Wrap(model.ErrValidation, "VALIDATION_ERROR", message, field, http.StatusBadRequest)
}

func duplicateError(field string) error {
	if field == "email" {
		return apierror.Wrap(model.ErrDuplicateEmail, "DUPLICATE_EMAIL", "Email is already registered", "email", http.StatusBadRequest)
	}
	return apierror.Wrap(model.ErrDuplicateUsername, "DUPLICATE_USERNAME", "Username is already taken", "username", http.StatusBadRequest)
}

func invalidCredentials() error {
	return apierror.Wrap(model.ErrInvalidCredentials, "INVALID_CREDENTIALS", "Invalid credentials", "", http.StatusBadRequest)
}
