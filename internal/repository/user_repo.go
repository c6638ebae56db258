package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"aakar-gateway/internal/model"
)

const uniqueViolation = "23505"

const userColumns = `id, full_name, username, email, password_hash, created_at`

// UserRepository is the PostgreSQL credential store. Uniqueness of username
// and email is enforced by case-insensitive unique indexes, so concurrent
// creates race inside the database and exactly one wins.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmailOrUsername(ctx context.Context, identifier string) (model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE lower(email) = lower($1) OR lower(username) = lower($1)
		 LIMIT 1`, strings.TrimSpace(identifier))

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("%w: find user by email or username: %w", model.ErrStore, err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("%w: find user by id: %w", model.ErrStore, err)
	}
	return u, nil
}

// Create assigns the id, lets the database stamp created_at and returns the
// stored record.
func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	u.ID = uuid.NewString()

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, full_name, username, email, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		u.ID, u.FullName, u.Username, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.User{}, &model.DuplicateKeyError{Field: fieldFromConstraint(pgErr.ConstraintName)}
		}
		return model.User{}, fmt.Errorf("%w: create user: %w", model.ErrStore, err)
	}

	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func fieldFromConstraint(constraint string) string {
	if strings.Contains(constraint, "email") {
		return "email"
	}
	return "username"
}
