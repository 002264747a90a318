package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

type mockAuthRepo struct {
	users  map[string]models.User
	tokens map[string]models.RefreshToken
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) StoreRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]models.RefreshToken)
	}
	if token.ID == "" {
		token.ID = "rt-new"
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for k, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
			m.tokens[k] = t
		}
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthRepo) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{users: map[string]models.User{
		"usr-1": {ID: "usr-1", Email: "admin@institute.test", FullName: "Admin", Role: "admin",
			PasswordHash: string(hash), Active: true},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "institute-api",
	})
	return svc, repo
}

func TestAuthLoginAndValidate(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@institute.test", Password: "s3cret"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@institute.test", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@institute.test", Password: "s3cret"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.tokens[login.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
