package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"casa/internal/core"
)

type memoryUserStorage struct {
	users map[string]*core.User
}

func newMemoryUserStorage() *memoryUserStorage {
	return &memoryUserStorage{users: make(map[string]*core.User)}
}

func (m *memoryUserStorage) CreateUser(_ context.Context, u *core.User) error {
	if _, ok := m.users[u.Username]; ok {
		return ErrUserExists
	}
	if u.ID == "" {
		u.ID = "user-" + u.Username
	}
	m.users[u.Username] = u
	return nil
}

func (m *memoryUserStorage) GetUserByUsername(_ context.Context, username string) (*core.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func (m *memoryUserStorage) GetUserByID(_ context.Context, id string) (*core.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, core.ErrNotFound
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(newMemoryUserStorage())

	user, err := a.Register(ctx, "ana", "ana@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash == "correct horse battery" {
		t.Fatal("password stored in plain text")
	}

	got, err := a.Authenticate(ctx, "ana", "correct horse battery")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated wrong user: %s", got.ID)
	}

	if _, err := a.Authenticate(ctx, "ana", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Authenticate(ctx, "nobody", "correct horse battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	a := NewPasswordAuthenticator(newMemoryUserStorage())
	if _, err := a.Register(context.Background(), "ana", "ana@example.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(newMemoryUserStorage())
	if _, err := a.Register(ctx, "ana", "ana@example.com", "longpassword"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := a.Register(ctx, "ana", "other@example.com", "longpassword"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	user := &core.User{ID: "user-1", Username: "ana"}

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "ana" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", -time.Minute)
	token, err := m.Generate(&core.User{ID: "user-1", Username: "ana"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	m1 := NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	m2 := NewJWTManager("another-secret-another-secret-xx", time.Hour)

	token, err := m1.Generate(&core.User{ID: "user-1", Username: "ana"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m2.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
