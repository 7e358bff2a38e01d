package pages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/types"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// UpsertInput carries the editable page fields.
type UpsertInput struct {
	Slug      string
	Title     string
	Sections  types.PageSections
	Published *bool
}

// Service manages editor pages.
type Service interface {
	GetPublished(ctx context.Context, slug string) (*models.Page, error)
	Get(ctx context.Context, slug string) (*models.Page, error)
	ListAll(ctx context.Context) ([]models.Page, error)
	Upsert(ctx context.Context, input UpsertInput) (*models.Page, error)
	Delete(ctx context.Context, slug string) error
}

type service struct {
	repo Repository
}

// NewService builds a pages service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pages repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetPublished(ctx context.Context, slug string) (*models.Page, error) {
	page, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !page.Published {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "page not found")
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, slug string) (*models.Page, error) {
	normalized := normalizeSlug(slug)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug required")
	}
	page, err := s.repo.FindBySlug(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "page not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load page")
	}
	return page, nil
}

func (s *service) ListAll(ctx context.Context) ([]models.Page, error) {
	pages, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pages")
	}
	return pages, nil
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (*models.Page, error) {
	slug := normalizeSlug(input.Slug)
	if slug == "" || !slugRe.MatchString(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase kebab-case")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if err := input.Sections.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sections")
	}

	existing, err := s.repo.FindBySlug(ctx, slug)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load page")
	}

	if existing == nil {
		page := &models.Page{
			Slug:     slug,
			Title:    title,
			Sections: input.Sections,
		}
		if input.Published != nil {
			page.Published = *input.Published
		}
		if err := s.repo.Create(ctx, page); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create page")
		}
		return page, nil
	}

	updates := map[string]any{
		"title":    title,
		"sections": input.Sections,
	}
	if input.Published != nil {
		updates["published"] = *input.Published
	}
	if err := s.repo.Update(ctx, existing.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update page")
	}
	return s.Get(ctx, slug)
}

func (s *service) Delete(ctx context.Context, slug string) error {
	page, err := s.Get(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, page.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete page")
	}
	return nil
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
