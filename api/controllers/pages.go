package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harmonia-digital/storefront-backend/api/responses"
	pagesvc "github.com/harmonia-digital/storefront-backend/internal/pages"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
)

// PageGet serves a published editor page by slug.
func PageGet(svc pagesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pages service unavailable"))
			return
		}

		page, err := svc.GetPublished(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}
