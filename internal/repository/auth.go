// Package repository provides persistence implementations for authentication services.
package repository

import (
	"context"
	"database/sql"
	"time"
)

// PostgresAuthRepository implements user and token persistence using a
// PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the
// given database connection.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// UserExists checks whether a user with the specified login exists.
func (r *PostgresAuthRepository) UserExists(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE login = $1)`,
		login,
	).Scan(&exists)
	return exists, err
}

// CreateUser inserts a new user record with the given password hash.
func (r *PostgresAuthRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2)`,
		login, passwordHash,
	)
	return err
}

// PasswordHash returns the stored password hash for login.
func (r *PostgresAuthRepository) PasswordHash(ctx context.Context, login string) ([]byte, error) {
	var hash []byte
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT password_hash FROM users WHERE login = $1`,
		login,
	).Scan(&hash)
	return hash, err
}

// UpdatePassword replaces the stored password hash for login.
func (r *PostgresAuthRepository) UpdatePassword(ctx context.Context, login string, passwordHash []byte) error {
	_, err := r.DB.ExecContext(
		ctx,
		`UPDATE users SET password_hash = $2 WHERE login = $1`,
		login, passwordHash,
	)
	return err
}

// Profile loads the user record for login.
func (r *PostgresAuthRepository) Profile(ctx context.Context, login string) (map[string]any, error) {
	var (
		displayName string
		createdAt   time.Time
	)
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT display_name, created_at FROM users WHERE login = $1`,
		login,
	).Scan(&displayName, &createdAt)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"login":        login,
		"display_name": displayName,
		"created_at":   createdAt.UTC().Format(time.RFC3339),
	}, nil
}

// UpdateDisplayName sets the user's display name.
func (r *PostgresAuthRepository) UpdateDisplayName(ctx context.Context, login, displayName string) error {
	_, err := r.DB.ExecContext(
		ctx,
		`UPDATE users SET display_name = $2 WHERE login = $1`,
		login, displayName,
	)
	return err
}

// SaveToken stores a token of the given kind ("access" or "refresh").
func (r *PostgresAuthRepository) SaveToken(ctx context.Context, token, login, kind string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO tokens (token, login, kind, expires_at) VALUES ($1, $2, $3, $4)`,
		token, login, kind, expiresAt,
	)
	return err
}

// LoginForToken resolves an unexpired token of the given kind to its
// owning login. Returns sql.ErrNoRows for unknown or expired tokens.
func (r *PostgresAuthRepository) LoginForToken(ctx context.Context, token, kind string) (string, error) {
	var login string
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT login FROM tokens WHERE token = $1 AND kind = $2 AND expires_at > now()`,
		token, kind,
	).Scan(&login)
	return login, err
}

// DeleteTokens removes every token owned by login.
func (r *PostgresAuthRepository) DeleteTokens(ctx context.Context, login string) error {
	_, err := r.DB.ExecContext(
		ctx,
		`DELETE FROM tokens WHERE login = $1`,
		login,
	)
	return err
}
