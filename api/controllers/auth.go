package controllers

import (
	"net/http"
	"time"

	"github.com/balcaopos/balcao-backend/api/responses"
	"github.com/balcaopos/balcao-backend/api/validators"
	"github.com/balcaopos/balcao-backend/internal/users"
	pkgAuth "github.com/balcaopos/balcao-backend/pkg/auth"
	"github.com/balcaopos/balcao-backend/pkg/config"
	"github.com/balcaopos/balcao-backend/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

// AuthLogin exchanges credentials for a bearer token.
func AuthLogin(svc users.Service, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Authenticate(r.Context(), payload.Email, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now()
		token, err := pkgAuth.MintAccessToken(cfg, now, pkgAuth.AccessTokenPayload{
			UserID: user.ID,
			Role:   user.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loginResponse{
			AccessToken: token,
			ExpiresAt:   now.Add(cfg.Expiration()),
			User:        toUserResponse(user),
		})
	}
}
