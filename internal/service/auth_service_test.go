package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/saessak-edu/saessak-api/internal/models"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
)

type fakeUserRepo struct {
	users     map[string]*models.User
	lastLogin map[string]time.Time
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[string]*models.User{}, lastLogin: map[string]time.Time{}}
	for _, user := range users {
		repo.users[user.Email] = user
	}
	return repo
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	f.lastLogin[id] = ts
	return nil
}

func testAuthService(t *testing.T, repo authUserRepository) *AuthService {
	t.Helper()
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "saessak-api-test",
	})
}

func hashedPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLogin_Success(t *testing.T) {
	repo := newFakeUserRepo(&models.User{
		ID:           "user-1",
		Email:        "teacher@saessak.kr",
		PasswordHash: hashedPassword(t, "secret-pass"),
		FullName:     "김선생",
		Role:         models.RoleTeacher,
		Active:       true,
	})
	svc := testAuthService(t, repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@saessak.kr", Password: "secret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)
	assert.Contains(t, repo.lastLogin, "user-1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestAuthServiceLogin_WrongPassword(t *testing.T) {
	repo := newFakeUserRepo(&models.User{
		ID:           "user-1",
		Email:        "teacher@saessak.kr",
		PasswordHash: hashedPassword(t, "secret-pass"),
		Active:       true,
	})
	svc := testAuthService(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@saessak.kr", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogin_UnknownEmail(t *testing.T) {
	svc := testAuthService(t, newFakeUserRepo())
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@saessak.kr", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogin_InactiveAccount(t *testing.T) {
	repo := newFakeUserRepo(&models.User{
		ID:           "user-1",
		Email:        "teacher@saessak.kr",
		PasswordHash: hashedPassword(t, "secret-pass"),
		Active:       false,
	})
	svc := testAuthService(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@saessak.kr", Password: "secret-pass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogin_InvalidPayload(t *testing.T) {
	svc := testAuthService(t, newFakeUserRepo())
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateToken_Tampered(t *testing.T) {
	repo := newFakeUserRepo(&models.User{
		ID:           "user-1",
		Email:        "teacher@saessak.kr",
		PasswordHash: hashedPassword(t, "secret-pass"),
		Active:       true,
	})
	svc := testAuthService(t, repo)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@saessak.kr", Password: "secret-pass"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "other-secret", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
