package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/harmonia-digital/storefront-backend/api/responses"
	downloadsvc "github.com/harmonia-digital/storefront-backend/internal/downloads"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
)

// DownloadResolve reports token state plus the file listing, without URLs.
func DownloadResolve(svc downloadsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "download service unavailable"))
			return
		}

		token := strings.TrimSpace(chi.URLParam(r, "token"))
		status, err := svc.Resolve(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

// DownloadFile hands out one signed URL and consumes a download slot.
func DownloadFile(svc downloadsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "download service unavailable"))
			return
		}

		token := strings.TrimSpace(chi.URLParam(r, "token"))
		index, err := strconv.Atoi(chi.URLParam(r, "fileIndex"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file index must be numeric"))
			return
		}

		link, err := svc.RetrieveFile(r.Context(), token, index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, link)
	}
}
