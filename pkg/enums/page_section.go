package enums

import "fmt"

// PageSectionType enumerates the closed set of content section variants the
// page editor can produce.
type PageSectionType string

const (
	PageSectionHeading   PageSectionType = "heading"
	PageSectionParagraph PageSectionType = "paragraph"
	PageSectionList      PageSectionType = "list"
	PageSectionImage     PageSectionType = "image"
)

var validPageSectionTypes = []PageSectionType{
	PageSectionHeading,
	PageSectionParagraph,
	PageSectionList,
	PageSectionImage,
}

// String implements fmt.Stringer.
func (t PageSectionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known PageSectionType.
func (t PageSectionType) IsValid() bool {
	for _, candidate := range validPageSectionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePageSectionType converts raw input into a PageSectionType.
func ParsePageSectionType(value string) (PageSectionType, error) {
	for _, candidate := range validPageSectionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid page section type %q", value)
}
