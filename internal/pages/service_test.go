package pages

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/types"
)

type stubRepo struct {
	pages   map[string]*models.Page
	updates map[string]any
	deleted []uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{pages: map[string]*models.Page{}}
}

func (r *stubRepo) Create(ctx context.Context, page *models.Page) error {
	page.ID = uuid.New()
	r.pages[page.Slug] = page
	return nil
}

func (r *stubRepo) FindBySlug(ctx context.Context, slug string) (*models.Page, error) {
	page, ok := r.pages[slug]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return page, nil
}

func (r *stubRepo) List(ctx context.Context) ([]models.Page, error) {
	var out []models.Page
	for _, page := range r.pages {
		out = append(out, *page)
	}
	return out, nil
}

func (r *stubRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	r.updates = updates
	for _, page := range r.pages {
		if page.ID == id {
			if title, ok := updates["title"].(string); ok {
				page.Title = title
			}
			if published, ok := updates["published"].(bool); ok {
				page.Published = published
			}
		}
	}
	return nil
}

func (r *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func sampleSections() types.PageSections {
	return types.PageSections{
		{Type: enums.PageSectionHeading, Text: "About Us", Level: 1},
		{Type: enums.PageSectionParagraph, Text: "We sell sound."},
	}
}

func TestUpsertCreatesPage(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	page, err := svc.Upsert(context.Background(), UpsertInput{
		Slug:     " About-Us ",
		Title:    "About Us",
		Sections: sampleSections(),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if page.Slug != "about-us" {
		t.Fatalf("expected normalized slug, got %q", page.Slug)
	}
	if page.Published {
		t.Fatalf("new pages default to unpublished")
	}
}

func TestUpsertUpdatesExistingPage(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	if _, err := svc.Upsert(context.Background(), UpsertInput{Slug: "about", Title: "About", Sections: sampleSections()}); err != nil {
		t.Fatalf("seed page: %v", err)
	}

	published := true
	page, err := svc.Upsert(context.Background(), UpsertInput{
		Slug:      "about",
		Title:     "About v2",
		Sections:  sampleSections(),
		Published: &published,
	})
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if page.Title != "About v2" || !page.Published {
		t.Fatalf("update not applied: %+v", page)
	}
	if len(repo.pages) != 1 {
		t.Fatalf("expected one page, got %d", len(repo.pages))
	}
}

func TestUpsertRejectsBadSlug(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	for _, slug := range []string{"", "About Us", "about_us", "-about", "about-"} {
		_, err := svc.Upsert(context.Background(), UpsertInput{Slug: slug, Title: "T", Sections: sampleSections()})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("slug %q: expected validation error, got %v", slug, err)
		}
	}
}

func TestUpsertRejectsInvalidSections(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	_, err := svc.Upsert(context.Background(), UpsertInput{
		Slug:     "about",
		Title:    "About",
		Sections: types.PageSections{{Type: enums.PageSectionHeading, Text: "x", Level: 9}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetPublishedHidesDrafts(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	if _, err := svc.Upsert(context.Background(), UpsertInput{Slug: "about", Title: "About", Sections: sampleSections()}); err != nil {
		t.Fatalf("seed page: %v", err)
	}

	_, err := svc.GetPublished(context.Background(), "about")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected draft hidden, got %v", err)
	}

	// Admin read still works.
	if _, err := svc.Get(context.Background(), "about"); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}

func TestDeleteUnknownPage(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	err := svc.Delete(context.Background(), "missing")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
