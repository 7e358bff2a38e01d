package controllers

import (
	"net/http"

	"github.com/harmonia-digital/storefront-backend/api/middleware"
	"github.com/harmonia-digital/storefront-backend/api/responses"
	"github.com/harmonia-digital/storefront-backend/api/validators"
	adminsvc "github.com/harmonia-digital/storefront-backend/internal/admins"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
	Admin struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"admin"`
}

// AdminLogin authenticates a back-office user and returns a bearer token.
func AdminLogin(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), payload.Email, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var resp loginResponse
		resp.Token = result.Token
		resp.Admin.ID = result.Admin.ID.String()
		resp.Admin.Email = result.Admin.Email
		resp.Admin.Name = result.Admin.Name
		responses.WriteSuccess(w, resp)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=10"`
}

// AdminChangePassword rotates the authenticated admin's password.
func AdminChangePassword(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		email := middleware.AdminEmailFromContext(r.Context())
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin context missing"))
			return
		}

		var payload changePasswordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ChangePassword(r.Context(), email, payload.CurrentPassword, payload.NewPassword); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}
