package types

import (
	"fmt"

	"github.com/harmonia-digital/storefront-backend/pkg/enums"
)

// PageSection is one block of editor content. The Type discriminates which of
// the remaining fields are meaningful; Validate enforces the closed set.
type PageSection struct {
	Type  enums.PageSectionType `json:"type"`
	Text  string                `json:"text,omitempty"`
	Level int                   `json:"level,omitempty"`
	Items []string              `json:"items,omitempty"`
	URL   string                `json:"url,omitempty"`
	Alt   string                `json:"alt,omitempty"`
}

// Validate checks the section against its declared variant.
func (s PageSection) Validate() error {
	switch s.Type {
	case enums.PageSectionHeading:
		if s.Text == "" {
			return fmt.Errorf("heading section requires text")
		}
		if s.Level < 1 || s.Level > 6 {
			return fmt.Errorf("heading level must be between 1 and 6")
		}
	case enums.PageSectionParagraph:
		if s.Text == "" {
			return fmt.Errorf("paragraph section requires text")
		}
	case enums.PageSectionList:
		if len(s.Items) == 0 {
			return fmt.Errorf("list section requires at least one item")
		}
	case enums.PageSectionImage:
		if s.URL == "" {
			return fmt.Errorf("image section requires a url")
		}
	default:
		return fmt.Errorf("unknown section type %q", s.Type)
	}
	return nil
}

// PageSections is stored as a jsonb column on pages.
type PageSections []PageSection

// Validate checks every section.
func (s PageSections) Validate() error {
	for i, section := range s {
		if err := section.Validate(); err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
	}
	return nil
}
