package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type mockAuthRepo struct {
	UserExistsFunc        func(ctx context.Context, login string) (bool, error)
	CreateUserFunc        func(ctx context.Context, login string, passwordHash []byte) error
	PasswordHashFunc      func(ctx context.Context, login string) ([]byte, error)
	UpdatePasswordFunc    func(ctx context.Context, login string, passwordHash []byte) error
	ProfileFunc           func(ctx context.Context, login string) (map[string]any, error)
	UpdateDisplayNameFunc func(ctx context.Context, login, displayName string) error
	SaveTokenFunc         func(ctx context.Context, token, login, kind string, expiresAt time.Time) error
	LoginForTokenFunc     func(ctx context.Context, token, kind string) (string, error)
	DeleteTokensFunc      func(ctx context.Context, login string) error
}

func (m *mockAuthRepo) UserExists(ctx context.Context, login string) (bool, error) {
	return m.UserExistsFunc(ctx, login)
}
func (m *mockAuthRepo) CreateUser(ctx context.Context, login string, passwordHash []byte) error {
	return m.CreateUserFunc(ctx, login, passwordHash)
}
func (m *mockAuthRepo) PasswordHash(ctx context.Context, login string) ([]byte, error) {
	return m.PasswordHashFunc(ctx, login)
}
func (m *mockAuthRepo) UpdatePassword(ctx context.Context, login string, passwordHash []byte) error {
	return m.UpdatePasswordFunc(ctx, login, passwordHash)
}
func (m *mockAuthRepo) Profile(ctx context.Context, login string) (map[string]any, error) {
	return m.ProfileFunc(ctx, login)
}
func (m *mockAuthRepo) UpdateDisplayName(ctx context.Context, login, displayName string) error {
	return m.UpdateDisplayNameFunc(ctx, login, displayName)
}
func (m *mockAuthRepo) SaveToken(ctx context.Context, token, login, kind string, expiresAt time.Time) error {
	return m.SaveTokenFunc(ctx, token, login, kind, expiresAt)
}
func (m *mockAuthRepo) LoginForToken(ctx context.Context, token, kind string) (string, error) {
	return m.LoginForTokenFunc(ctx, token, kind)
}
func (m *mockAuthRepo) DeleteTokens(ctx context.Context, login string) error {
	return m.DeleteTokensFunc(ctx, login)
}

func TestRegister_DuplicateUser(t *testing.T) {
	repo := &mockAuthRepo{
		UserExistsFunc: func(ctx context.Context, login string) (bool, error) {
			return true, nil
		},
	}
	svc := NewAuthService(repo)

	_, err := svc.Register(context.Background(), "bob", "pw")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("Register error = %v; want ErrUserExists", err)
	}
}

func TestRegister_IssuesTokenPair(t *testing.T) {
	saved := map[string]string{}
	repo := &mockAuthRepo{
		UserExistsFunc: func(ctx context.Context, login string) (bool, error) {
			return false, nil
		},
		CreateUserFunc: func(ctx context.Context, login string, passwordHash []byte) error {
			if err := bcrypt.CompareHashAndPassword(passwordHash, []byte("pw")); err != nil {
				t.Errorf("stored hash does not match password: %v", err)
			}
			return nil
		},
		SaveTokenFunc: func(ctx context.Context, token, login, kind string, expiresAt time.Time) error {
			saved[kind] = token
			if expiresAt.Before(time.Now()) {
				t.Errorf("%s token already expired", kind)
			}
			return nil
		},
	}
	svc := NewAuthService(repo)

	pair, err := svc.Register(context.Background(), "carol", "pw")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if saved["access"] != pair.AccessToken || saved["refresh"] != pair.RefreshToken {
		t.Errorf("persisted tokens do not match returned pair")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	repo := &mockAuthRepo{
		PasswordHashFunc: func(ctx context.Context, login string) ([]byte, error) {
			return hash, nil
		},
	}
	svc := NewAuthService(repo)

	_, err := svc.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login error = %v; want ErrInvalidCredentials", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := &mockAuthRepo{
		PasswordHashFunc: func(ctx context.Context, login string) ([]byte, error) {
			return nil, errors.New("no rows")
		},
	}
	svc := NewAuthService(repo)

	_, err := svc.Login(context.Background(), "ghost", "pw")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login error = %v; want ErrInvalidCredentials", err)
	}
}

func TestRefresh_RotatesPair(t *testing.T) {
	var deleted bool
	repo := &mockAuthRepo{
		LoginForTokenFunc: func(ctx context.Context, token, kind string) (string, error) {
			if kind != "refresh" {
				t.Errorf("kind = %q; want refresh", kind)
			}
			if token != "old-refresh" {
				t.Errorf("token = %q; want old-refresh", token)
			}
			return "alice", nil
		},
		DeleteTokensFunc: func(ctx context.Context, login string) error {
			deleted = true
			return nil
		},
		SaveTokenFunc: func(ctx context.Context, token, login, kind string, expiresAt time.Time) error {
			return nil
		},
	}
	svc := NewAuthService(repo)

	pair, err := svc.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if !deleted {
		t.Error("expected the old pair to be revoked")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("expected a full rotated pair")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	repo := &mockAuthRepo{
		LoginForTokenFunc: func(ctx context.Context, token, kind string) (string, error) {
			return "", errors.New("no rows")
		},
	}
	svc := NewAuthService(repo)

	_, err := svc.Refresh(context.Background(), "bogus")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Refresh error = %v; want ErrInvalidToken", err)
	}
}

func TestUpdatePassword_VerifiesCurrent(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("old"), bcrypt.MinCost)
	var stored []byte
	repo := &mockAuthRepo{
		PasswordHashFunc: func(ctx context.Context, login string) ([]byte, error) {
			return hash, nil
		},
		UpdatePasswordFunc: func(ctx context.Context, login string, passwordHash []byte) error {
			stored = passwordHash
			return nil
		},
	}
	svc := NewAuthService(repo)

	if err := svc.UpdatePassword(context.Background(), "alice", "wrong", "new"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v; want ErrInvalidCredentials", err)
	}

	if err := svc.UpdatePassword(context.Background(), "alice", "old", "new"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword(stored, []byte("new")); err != nil {
		t.Errorf("stored hash does not match new password: %v", err)
	}
}
