// Package service provides authentication business logic,
// delegating persistence to an AuthRepository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/authflow/internal/models"
)

// Sentinel errors handlers translate into HTTP statuses.
var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthRepository defines the persistence operations required by the
// authentication service.
type AuthRepository interface {
	UserExists(ctx context.Context, login string) (bool, error)
	CreateUser(ctx context.Context, login string, passwordHash []byte) error
	PasswordHash(ctx context.Context, login string) ([]byte, error)
	UpdatePassword(ctx context.Context, login string, passwordHash []byte) error
	Profile(ctx context.Context, login string) (map[string]any, error)
	UpdateDisplayName(ctx context.Context, login, displayName string) error
	SaveToken(ctx context.Context, token, login, kind string, expiresAt time.Time) error
	LoginForToken(ctx context.Context, token, kind string) (string, error)
	DeleteTokens(ctx context.Context, login string) error
}

// Service implements authentication operations: account registration,
// credential verification, and opaque token pair issuance/rotation.
type Service struct {
	repo       AuthRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService constructs a Service using the provided repository.
func NewAuthService(repo AuthRepository) *Service {
	return &Service{
		repo:       repo,
		accessTTL:  15 * time.Minute,
		refreshTTL: 30 * 24 * time.Hour,
	}
}

// Register creates the account and issues its first token pair.
// Returns ErrUserExists for a duplicate login.
func (s *Service) Register(ctx context.Context, login, password string) (*models.TokenPair, error) {
	exists, err := s.repo.UserExists(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.CreateUser(ctx, login, hash); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issueTokens(ctx, login)
}

// Login verifies credentials and issues a fresh token pair.
// Returns ErrInvalidCredentials for an unknown login or wrong password.
func (s *Service) Login(ctx context.Context, login, password string) (*models.TokenPair, error) {
	hash, err := s.repo.PasswordHash(ctx, login)
	if err != nil {
		// Unknown users and db errors look identical to the caller.
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(ctx, login)
}

// Logout revokes every token owned by login.
func (s *Service) Logout(ctx context.Context, login string) error {
	return s.repo.DeleteTokens(ctx, login)
}

// ValidateAccessToken resolves an access token to its owning login.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (string, error) {
	login, err := s.repo.LoginForToken(ctx, token, "access")
	if err != nil {
		return "", ErrInvalidToken
	}
	return login, nil
}

// Refresh exchanges a valid refresh token for a rotated pair. The old
// pair is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	login, err := s.repo.LoginForToken(ctx, refreshToken, "refresh")
	if err != nil {
		return nil, ErrInvalidToken
	}
	if err := s.repo.DeleteTokens(ctx, login); err != nil {
		return nil, fmt.Errorf("revoke tokens: %w", err)
	}
	return s.issueTokens(ctx, login)
}

// Profile loads the user record.
func (s *Service) Profile(ctx context.Context, login string) (map[string]any, error) {
	return s.repo.Profile(ctx, login)
}

// UpdateProfile applies the updatable profile fields and returns the
// fresh record.
func (s *Service) UpdateProfile(ctx context.Context, login string, updates map[string]any) (map[string]any, error) {
	if name, ok := updates["display_name"].(string); ok {
		if err := s.repo.UpdateDisplayName(ctx, login, name); err != nil {
			return nil, fmt.Errorf("update display name: %w", err)
		}
	}
	return s.repo.Profile(ctx, login)
}

// UpdatePassword verifies the current password and stores the new hash.
func (s *Service) UpdatePassword(ctx context.Context, login, current, updated string) error {
	hash, err := s.repo.PasswordHash(ctx, login)
	if err != nil {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(updated), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, login, newHash)
}

// OAuthLogin stands in for a real provider round trip in the reference
// backend: it provisions (or reuses) a provider-scoped account and
// issues a token pair for it.
func (s *Service) OAuthLogin(ctx context.Context, provider string) (*models.TokenPair, error) {
	login := provider + "-user"
	exists, err := s.repo.UserExists(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		// OAuth accounts have no local password.
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.repo.CreateUser(ctx, login, hash); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	}
	return s.issueTokens(ctx, login)
}

func (s *Service) issueTokens(ctx context.Context, login string) (*models.TokenPair, error) {
	now := time.Now()
	pair := &models.TokenPair{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
	}
	if err := s.repo.SaveToken(ctx, pair.AccessToken, login, "access", now.Add(s.accessTTL)); err != nil {
		return nil, fmt.Errorf("save access token: %w", err)
	}
	if err := s.repo.SaveToken(ctx, pair.RefreshToken, login, "refresh", now.Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	return pair, nil
}
