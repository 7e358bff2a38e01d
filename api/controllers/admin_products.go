package controllers

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/harmonia-digital/storefront-backend/api/responses"
	"github.com/harmonia-digital/storefront-backend/api/validators"
	catalogsvc "github.com/harmonia-digital/storefront-backend/internal/catalog"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/pagination"
	"github.com/harmonia-digital/storefront-backend/pkg/storage/gcs"
)

// Deliverables up to 512 MiB; larger uploads should go through resumable
// sessions which the back office does not need yet.
const maxUploadBytes = 512 << 20

type adminProductRequest struct {
	Name                string   `json:"name" validate:"required"`
	Description         string   `json:"description"`
	ShortDescription    *string  `json:"short_description,omitempty"`
	Price               string   `json:"price" validate:"required"`
	Category            string   `json:"category"`
	Status              string   `json:"status"`
	Features            []string `json:"features"`
	Tags                []string `json:"tags"`
	Duration            *string  `json:"duration,omitempty"`
	DownloadLimit       int      `json:"download_limit" validate:"omitempty,min=1"`
	DownloadExpiryHours int      `json:"download_expiry_hours" validate:"omitempty,min=1"`
}

type adminProductUpdateRequest struct {
	Name                *string  `json:"name,omitempty"`
	Description         *string  `json:"description,omitempty"`
	ShortDescription    *string  `json:"short_description,omitempty"`
	Price               *string  `json:"price,omitempty"`
	Category            *string  `json:"category,omitempty"`
	Status              *string  `json:"status,omitempty"`
	Features            []string `json:"features,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	Duration            *string  `json:"duration,omitempty"`
	DownloadLimit       *int     `json:"download_limit,omitempty" validate:"omitempty,min=1"`
	DownloadExpiryHours *int     `json:"download_expiry_hours,omitempty" validate:"omitempty,min=1"`
}

// AdminProductList mirrors the public listing but includes drafts and
// archived products.
func AdminProductList(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := catalogsvc.ListFilters{
			Query:              strings.TrimSpace(r.URL.Query().Get("q")),
			IncludeUnpublished: true,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			category, err := enums.ParseProductCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			filters.Category = &category
		}

		list, err := svc.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// AdminProductGet returns a product regardless of status.
func AdminProductGet(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), id, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminProductCreate adds a product to the catalog.
func AdminProductCreate(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var payload adminProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := decimal.NewFromString(strings.TrimSpace(payload.Price))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal string"))
			return
		}

		input := catalogsvc.CreateProductInput{
			Name:                payload.Name,
			Description:         payload.Description,
			ShortDescription:    payload.ShortDescription,
			Price:               price,
			Category:            enums.ProductCategory(strings.TrimSpace(payload.Category)),
			Status:              enums.ProductStatus(strings.TrimSpace(payload.Status)),
			Features:            payload.Features,
			Tags:                payload.Tags,
			Duration:            payload.Duration,
			DownloadLimit:       payload.DownloadLimit,
			DownloadExpiryHours: payload.DownloadExpiryHours,
		}

		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminProductUpdate applies a partial update.
func AdminProductUpdate(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminProductUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalogsvc.UpdateProductInput{
			Name:                payload.Name,
			Description:         payload.Description,
			ShortDescription:    payload.ShortDescription,
			Features:            payload.Features,
			Tags:                payload.Tags,
			Duration:            payload.Duration,
			DownloadLimit:       payload.DownloadLimit,
			DownloadExpiryHours: payload.DownloadExpiryHours,
		}
		if payload.Price != nil {
			price, err := decimal.NewFromString(strings.TrimSpace(*payload.Price))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal string"))
				return
			}
			input.Price = &price
		}
		if payload.Category != nil {
			category := enums.ProductCategory(strings.TrimSpace(*payload.Category))
			input.Category = &category
		}
		if payload.Status != nil {
			status := enums.ProductStatus(strings.TrimSpace(*payload.Status))
			input.Status = &status
		}

		product, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminProductDelete archives or removes a product.
func AdminProductDelete(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminProductFileUpload streams a deliverable into object storage and
// registers it against the product. Multipart field name is "file".
func AdminProductFileUpload(svc catalogsvc.Service, bucket *gcs.Bucket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || bucket == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload dependencies unavailable"))
			return
		}

		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart field 'file' required"))
			return
		}
		defer file.Close()

		originalName := path.Base(strings.TrimSpace(header.Filename))
		if originalName == "" || originalName == "." || originalName == "/" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file name required"))
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		storageKey := fmt.Sprintf("products/%s/%d-%s", productID, time.Now().UTC().UnixNano(), originalName)
		if err := bucket.Upload(r.Context(), storageKey, contentType, file); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload deliverable"))
			return
		}

		position, err := validators.ParseQueryInt(r, "position", 0, 0, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AttachFile(r.Context(), catalogsvc.AttachFileInput{
			ProductID:    productID,
			StorageKey:   storageKey,
			OriginalName: originalName,
			FileSize:     header.Size,
			MimeType:     contentType,
			Position:     position,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"storage_key":   storageKey,
			"original_name": originalName,
			"file_size":     header.Size,
		})
	}
}

// AdminProductFileDelete detaches a deliverable and clears the stored object.
func AdminProductFileDelete(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fileID, err := validators.ParsePathUUID(chi.URLParam(r, "fileId"), "fileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveFile(r.Context(), productID, fileID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
