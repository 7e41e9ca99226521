package controllers

import (
	"net/http"
	"time"

	"github.com/skyfare-io/skyfare-backend/api/responses"
	"github.com/skyfare-io/skyfare-backend/api/validators"
	"github.com/skyfare-io/skyfare-backend/internal/users"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"max=256"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,max=128"`
}

type userResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	Role         string     `json:"role"`
	LastSignedIn *time.Time `json:"last_signed_in,omitempty"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token,omitempty"`
}

func toUserResponse(user *models.User) userResponse {
	resp := userResponse{
		ID:           user.ID.String(),
		Email:        user.Email,
		Role:         string(user.Role),
		LastSignedIn: user.LastSignedIn,
	}
	if user.Name != nil {
		resp.Name = *user.Name
	}
	return resp
}

// Register opens a new account.
func Register(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		user, err := svc.Register(ctx, users.RegisterInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     validators.SanitizeString(req.Name, 256),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, authResponse{User: toUserResponse(user)})
	}
}

// Login authenticates credentials and returns an access token.
func Login(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req loginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Login(ctx, req.Email, req.Password)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, authResponse{User: toUserResponse(result.User), Token: result.Token})
	}
}

// VerifyPassword checks credentials on behalf of internal callers. A
// mismatch is reported in the body, not as an error status.
func VerifyPassword(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req loginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		user, ok, err := svc.VerifyPassword(ctx, req.Email, req.Password)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := struct {
			Valid bool          `json:"valid"`
			User  *userResponse `json:"user,omitempty"`
		}{Valid: ok}
		if ok {
			u := toUserResponse(user)
			resp.User = &u
		}
		responses.WriteSuccess(w, resp)
	}
}
