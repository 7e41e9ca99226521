package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare-io/skyfare-backend/pkg/auth"
	"github.com/skyfare-io/skyfare-backend/pkg/config"
	dbpkg "github.com/skyfare-io/skyfare-backend/pkg/db"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/security"
)

// Service registers accounts and authenticates credentials.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// VerifyPassword checks credentials without issuing a token. A
	// mismatch or unknown email is a negative answer, not an error.
	VerifyPassword(ctx context.Context, email, password string) (*models.User, bool, error)
}

// RegisterInput carries the fields needed to open an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginResult couples the authenticated user with their access token.
type LoginResult struct {
	User  *models.User
	Token string
}

// ServiceParams lists the user service dependencies.
type ServiceParams struct {
	Repo     Repository
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Auth     config.AuthConfig
}

type service struct {
	repo     Repository
	jwt      config.JWTConfig
	password config.PasswordConfig
	owner    string
}

// NewService wires a user service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{
		repo:     params.Repo,
		jwt:      params.JWT,
		password: params.Password,
		owner:    strings.ToLower(strings.TrimSpace(params.Auth.OwnerEmail)),
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a user with this email already exists")
	} else if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	role := enums.RoleUser
	if s.owner != "" && email == s.owner {
		role = enums.RoleAdmin
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		user.Name = &name
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_users_email") {
			// Lost the race against a concurrent registration.
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a user with this email already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, ok, err := s.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
	}

	now := time.Now().UTC()
	token, err := auth.MintAccessToken(s.jwt, now, auth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	user.LastSignedIn = &now
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record sign-in")
	}
	return &LoginResult{User: user, Token: token}, nil
}

func (s *service) VerifyPassword(ctx context.Context, email, password string) (*models.User, bool, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if user.PasswordHash == "" {
		return nil, false, nil
	}
	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, false, nil
	}
	return user, true, nil
}
