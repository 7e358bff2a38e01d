package enums

import "fmt"

// ProductStatus controls whether a product is purchasable through the public catalog.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusDraft    ProductStatus = "draft"
)

var validProductStatuses = []ProductStatus{
	ProductStatusActive,
	ProductStatusInactive,
	ProductStatusDraft,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}

// ProductCategory represents the kinds of digital products sold in the catalog.
type ProductCategory string

const (
	ProductCategoryAudio  ProductCategory = "audio"
	ProductCategoryCourse ProductCategory = "course"
	ProductCategoryPDF    ProductCategory = "pdf"
	ProductCategoryVideo  ProductCategory = "video"
	ProductCategoryBundle ProductCategory = "bundle"
)

var validProductCategories = []ProductCategory{
	ProductCategoryAudio,
	ProductCategoryCourse,
	ProductCategoryPDF,
	ProductCategoryVideo,
	ProductCategoryBundle,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
