package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harmonia-digital/storefront-backend/api/responses"
	"github.com/harmonia-digital/storefront-backend/api/validators"
	pagesvc "github.com/harmonia-digital/storefront-backend/internal/pages"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/types"
)

type upsertPageRequest struct {
	Title     string             `json:"title" validate:"required"`
	Sections  types.PageSections `json:"sections"`
	Published *bool              `json:"published,omitempty"`
}

// AdminPageList returns every editor page, drafts included.
func AdminPageList(svc pagesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pages service unavailable"))
			return
		}

		pages, err := svc.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"pages": pages})
	}
}

// AdminPageGet returns a page by slug regardless of publish state.
func AdminPageGet(svc pagesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pages service unavailable"))
			return
		}

		page, err := svc.Get(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// AdminPageUpsert creates or replaces the page at the slug in the path.
func AdminPageUpsert(svc pagesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pages service unavailable"))
			return
		}

		var payload upsertPageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.Upsert(r.Context(), pagesvc.UpsertInput{
			Slug:      chi.URLParam(r, "slug"),
			Title:     payload.Title,
			Sections:  payload.Sections,
			Published: payload.Published,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// AdminPageDelete removes a page by slug.
func AdminPageDelete(svc pagesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pages service unavailable"))
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
