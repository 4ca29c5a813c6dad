package types

import "time"

// Package is an entry of the product catalog.
type Package struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Version     string `json:"version" db:"version"`
	Description string `json:"description" db:"description"`

	// Price is kept as free text, e.g. "$19/month".
	Price string `json:"price" db:"price"`

	// ImageKey is the object storage key of the package image, empty when
	// no image was uploaded.
	ImageKey string `json:"image_key,omitempty" db:"image_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PackagePatch carries the fields of a partial package update.
// Nil fields are left untouched.
type PackagePatch struct {
	Name        *string `json:"name"`
	Version     *string `json:"version"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
}

// Apply copies the non-nil fields of p onto pkg.
func (p PackagePatch) Apply(pkg *Package) {
	if p.Name != nil {
		pkg.Name = *p.Name
	}
	if p.Version != nil {
		pkg.Version = *p.Version
	}
	if p.Description != nil {
		pkg.Description = *p.Description
	}
	if p.Price != nil {
		pkg.Price = *p.Price
	}
}
