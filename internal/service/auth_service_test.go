package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/model"
	"github.com/codearena/codearena-backend/internal/repository"
)

type fakeUserStore struct {
	users map[string]*model.User
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	doc := *u
	return &doc, nil
}

func authTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserStore, *redis.Client) {
	t.Helper()
	_, rdb := testRedis(t)
	users := &fakeUserStore{users: map[string]*model.User{}}
	return NewAuthService(authTestConfig(), rdb, users), users, rdb
}

func addUser(t *testing.T, users *fakeUserStore, email, password string, role model.UserRole) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &model.User{
		ID:           "user-" + email,
		DisplayName:  "Tester",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	users.users[email] = u
	return u
}

func TestLoginIssuesParticipantToken(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	addUser(t, users, "casey@example.com", "hunter2", model.RoleParticipant)

	token, user, err := svc.Login(context.Background(), "casey@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeParticipant {
		t.Fatalf("token type %q", claims.TokenType)
	}
	if claims.UserID != user.ID {
		t.Fatalf("claims user %q, want %q", claims.UserID, user.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	addUser(t, users, "casey@example.com", "hunter2", model.RoleParticipant)

	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "casey@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
}

func TestSecondParticipantLoginRejected(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	addUser(t, users, "casey@example.com", "hunter2", model.RoleParticipant)

	ctx := context.Background()
	if _, _, err := svc.Login(ctx, "casey@example.com", "hunter2"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, _, err := svc.Login(ctx, "casey@example.com", "hunter2"); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Fatalf("second login: got %v, want ErrSessionAlreadyActive", err)
	}
}

func TestHostLoginNotSingleSession(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	addUser(t, users, "host@example.com", "hunter2", model.RoleHost)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		token, _, err := svc.Login(ctx, "host@example.com", "hunter2")
		if err != nil {
			t.Fatalf("host login %d: %v", i, err)
		}
		claims, err := svc.ValidateToken(token)
		if err != nil {
			t.Fatalf("ValidateToken: %v", err)
		}
		if claims.TokenType != TokenTypeHost {
			t.Fatalf("token type %q", claims.TokenType)
		}
	}
}

func TestValidateParticipantSession(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	u := addUser(t, users, "casey@example.com", "hunter2", model.RoleParticipant)

	ctx := context.Background()
	token, _, err := svc.Login(ctx, "casey@example.com", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if err := svc.ValidateParticipantSession(ctx, u.ID, claims.ID); err != nil {
		t.Fatalf("session should be valid: %v", err)
	}
	if err := svc.ValidateParticipantSession(ctx, u.ID, "stale-jti"); err == nil {
		t.Fatal("expected stale JTI to be rejected")
	}
}

func TestReleaseSessionAllowsRelogin(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	u := addUser(t, users, "casey@example.com", "hunter2", model.RoleParticipant)

	ctx := context.Background()
	if _, _, err := svc.Login(ctx, "casey@example.com", "hunter2"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if err := svc.ReleaseSession(ctx, u.ID); err != nil {
		t.Fatalf("ReleaseSession: %v", err)
	}
	if _, _, err := svc.Login(ctx, "casey@example.com", "hunter2"); err != nil {
		t.Fatalf("relogin after release: %v", err)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	otherCfg := authTestConfig()
	otherCfg.JWTSecret = "a-different-secret"
	_, rdb := testRedis(t)
	other := NewAuthService(otherCfg, rdb, &fakeUserStore{users: map[string]*model.User{}})

	token, err := other.GenerateHostToken("u1", "Tester")
	if err != nil {
		t.Fatalf("GenerateHostToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected foreign-signed token to be rejected")
	}
}
