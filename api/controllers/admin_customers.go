package controllers

import (
	"net/http"
	"strings"

	"github.com/harmonia-digital/storefront-backend/api/responses"
	"github.com/harmonia-digital/storefront-backend/api/validators"
	"github.com/harmonia-digital/storefront-backend/internal/customers"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/pagination"
)

// AdminCustomerList pages through known buyers, newest first.
func AdminCustomerList(repo customers.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customers repository unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, nextCursor, err := repo.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers"))
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"customers":   rows,
			"next_cursor": nextCursor,
		})
	}
}

// AdminCustomerGet looks up a single buyer by email.
func AdminCustomerGet(repo customers.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customers repository unavailable"))
			return
		}

		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "email query parameter required"))
			return
		}

		customer, err := repo.FindByEmail(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found"))
			return
		}

		responses.WriteSuccess(w, customer)
	}
}
