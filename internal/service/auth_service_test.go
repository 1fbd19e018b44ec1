package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/emsd/school-billing-api/internal/models"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail  map[string]models.User
	usersByID     map[int64]models.User
	taken         bool
	refreshTokens map[string]models.RefreshToken
	revokedAll    []int64
	auditLogs     []models.AuditLog
	created       []models.User
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	return m.taken, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *user)
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]models.RefreshToken)
	}
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func authConfigForTest() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "school-billing-api",
	}
}

func userFixture(t *testing.T) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	return models.User{
		ID:           1,
		Email:        "admin@school.test",
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	user := userFixture(t)
	repo := &mockUserRepo{usersByEmail: map[string]models.User{user.Email: user}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), authConfigForTest())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    user.Email,
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, user.Username, resp.User.Username)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	user := userFixture(t)
	repo := &mockUserRepo{usersByEmail: map[string]models.User{user.Email: user}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    user.Email,
		Password: "wrong",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := userFixture(t)
	user.Active = false
	repo := &mockUserRepo{usersByEmail: map[string]models.User{user.Email: user}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    user.Email,
		Password: "secret123",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRegisterConflict(t *testing.T) {
	repo := &mockUserRepo{taken: true}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "staff",
		Email:    "staff@school.test",
		Password: "secret123",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceRegisterDefaultsToStaff(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), authConfigForTest())

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "staff",
		Email:    "staff@school.test",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, info.Role)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	user := userFixture(t)
	repo := &mockUserRepo{
		usersByID: map[int64]models.User{user.ID: user},
		refreshTokens: map[string]models.RefreshToken{
			"stale": {
				ID:        "t-1",
				UserID:    user.ID,
				Token:     "stale",
				ExpiresAt: time.Now().UTC().Add(-time.Hour),
			},
		},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
