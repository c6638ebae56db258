package repository

import (
	"context"
	"database/sql"

	"aakar-gateway/internal/model"
)

// DBTX is the subset of database/sql used by the repositories. Both *sql.DB
// and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserStore is the credential store contract shared by the PostgreSQL and
// in-memory implementations.
type UserStore interface {
	FindByEmailOrUsername(ctx context.Context, identifier string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
}

var (
	_ UserStore = (*UserRepository)(nil)
	_ UserStore = (*MemoryUserRepository)(nil)
)
