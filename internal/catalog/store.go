package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a product is not found.
	ErrNotFound = errors.New("product not found")
	// ErrExists is returned when creating a product whose SKU is taken.
	ErrExists = errors.New("product already exists")
	// ErrVersionConflict is returned when a conditional update misses.
	ErrVersionConflict = errors.New("version conflict")
)

// Query selects products for a listing.
type Query struct {
	Category    string
	ShowDeleted bool
	Limit       int
}

// Store persists products. Deletion is soft: deleted products stay
// retrievable with ShowDeleted until the retention window expires, and
// can be restored.
type Store interface {
	Get(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, q Query) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	// Update applies the given fields, bumps the version and returns the
	// updated product.
	Update(ctx context.Context, sku string, fields map[string]any) (*Product, error)
	// Delete soft-deletes and returns the product as it was deleted.
	Delete(ctx context.Context, sku string) (*Product, error)
	// Restore clears the soft-delete flag and returns the product.
	Restore(ctx context.Context, sku string) (*Product, error)
	Close(ctx context.Context) error
}
