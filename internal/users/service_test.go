package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/pkg/config"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  last_signed_in DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	t.Cleanup(func() {
		db.Exec("DELETE FROM users")
	})
	return db
}

func newUsersService(t *testing.T, owner string) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo: NewRepository(setupUsersTestDB(t)),
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "skyfare",
			ExpirationMinutes: 15,
		},
		Password: config.PasswordConfig{
			ArgonMemoryKB:    8192,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
		Auth: config.AuthConfig{OwnerEmail: owner},
	})
	require.NoError(t, err)
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUsersService(t, "")
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email:    "Traveler@Example.com",
		Password: "correct-horse-battery",
		Name:     "Alex Traveler",
	})
	require.NoError(t, err)
	assert.Equal(t, "traveler@example.com", user.Email, "emails are stored lowercased")
	assert.Equal(t, enums.RoleUser, user.Role)
	assert.NotEqual(t, "correct-horse-battery", user.PasswordHash)

	result, err := svc.Login(ctx, "traveler@example.com", "correct-horse-battery")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	require.NotNil(t, result.User.LastSignedIn)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc := newUsersService(t, "")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "long-enough-pass"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "long-enough-pass"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestRegisterShortPasswordRejected(t *testing.T) {
	svc := newUsersService(t, "")

	_, err := svc.Register(context.Background(), RegisterInput{Email: "short@example.com", Password: "short"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestRegisterOwnerEmailBecomesAdmin(t *testing.T) {
	svc := newUsersService(t, "owner@skyfare.io")

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "Owner@Skyfare.io",
		Password: "operations-password",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, user.Role)
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	svc := newUsersService(t, "")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "login@example.com", Password: "long-enough-pass"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "login@example.com", "wrong-password")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, "nobody@example.com", "irrelevant")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized), "unknown email gets the same answer as a bad password")
}

func TestVerifyPasswordIsNotAnError(t *testing.T) {
	svc := newUsersService(t, "")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "verify@example.com", Password: "long-enough-pass"})
	require.NoError(t, err)

	user, ok, err := svc.VerifyPassword(ctx, "verify@example.com", "long-enough-pass")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, user)

	_, ok, err = svc.VerifyPassword(ctx, "verify@example.com", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.VerifyPassword(ctx, "ghost@example.com", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}
