package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"catsync/internal/eventlog"
)

// priceRe accepts non-negative decimals with at most two fraction digits.
var priceRe = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ProductInput is the caller-supplied product payload for create and
// import operations.
type ProductInput struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Category    string `json:"category"`
}

// Validate checks the required fields and the price format.
func (in ProductInput) Validate() error {
	if in.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if in.Price == "" || !priceRe.MatchString(in.Price) {
		return fmt.Errorf("price must be a decimal string like 19.99, got %q", in.Price)
	}
	if in.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	return nil
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	Stock       *int    `json:"stock"`
	Category    *string `json:"category"`
}

// fields converts the set members into store field updates.
func (in UpdateInput) fields() (map[string]any, error) {
	out := make(map[string]any)
	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("name cannot be empty")
		}
		out["name"] = *in.Name
	}
	if in.Description != nil {
		out["description"] = *in.Description
	}
	if in.Price != nil {
		if !priceRe.MatchString(*in.Price) {
			return nil, fmt.Errorf("price must be a decimal string like 19.99, got %q", *in.Price)
		}
		out["price"] = *in.Price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, fmt.Errorf("stock cannot be negative")
		}
		out["stock"] = *in.Stock
	}
	if in.Category != nil {
		out["category"] = *in.Category
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	return out, nil
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	SKUs    []string `json:"skus"`
}

// Service is the catalog mutation path. Every successful store write
// appends a change event to the log stream the broadcasters read.
// Append failures are logged and never roll back the store write: the
// store is the source of truth and clients resync on reconnect.
type Service struct {
	store  Store
	log    eventlog.Log
	stream string
}

// NewService creates the service over the given store and log stream.
func NewService(store Store, log eventlog.Log, stream string) *Service {
	return &Service{store: store, log: log, stream: stream}
}

func (s *Service) Get(ctx context.Context, sku string) (*Product, error) {
	return s.store.Get(ctx, sku)
}

func (s *Service) List(ctx context.Context, q Query) ([]*Product, error) {
	return s.store.List(ctx, q)
}

// Create validates and stores a new product, then emits product.created.
func (s *Service) Create(ctx context.Context, in ProductInput) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	p := &Product{
		SKU:         in.SKU,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	s.emit(ctx, EventCreated, p)
	return p, nil
}

// Update applies a partial update and emits product.updated.
func (s *Service) Update(ctx context.Context, sku string, in UpdateInput) (*Product, error) {
	fields, err := in.fields()
	if err != nil {
		return nil, err
	}
	p, err := s.store.Update(ctx, sku, fields)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, EventUpdated, p)
	return p, nil
}

// Delete soft-deletes and emits product.deleted.
func (s *Service) Delete(ctx context.Context, sku string) error {
	p, err := s.store.Delete(ctx, sku)
	if err != nil {
		return err
	}
	s.emit(ctx, EventDeleted, p)
	return nil
}

// Restore reverses a soft delete and emits product.restored.
func (s *Service) Restore(ctx context.Context, sku string) (*Product, error) {
	p, err := s.store.Restore(ctx, sku)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, EventRestored, p)
	return p, nil
}

// Import upserts a batch of products and emits a single product.imported
// event summarizing the batch. Individual rows do not emit their own
// created/updated events; subscribers treat an import as one change set.
func (s *Service) Import(ctx context.Context, items []ProductInput) (*ImportResult, error) {
	for i, in := range items {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	result := &ImportResult{}
	for i, in := range items {
		now := time.Now().UnixMilli()
		p := &Product{
			SKU:         in.SKU,
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Stock:       in.Stock,
			Category:    in.Category,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err := s.store.Create(ctx, p)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, ErrExists):
			_, uerr := s.store.Update(ctx, in.SKU, map[string]any{
				"name":        in.Name,
				"description": in.Description,
				"price":       in.Price,
				"stock":       in.Stock,
				"category":    in.Category,
			})
			if uerr != nil {
				return result, fmt.Errorf("item %d (%s): %w", i, in.SKU, uerr)
			}
			result.Updated++
		default:
			return result, fmt.Errorf("item %d (%s): %w", i, in.SKU, err)
		}
		result.SKUs = append(result.SKUs, in.SKU)
	}

	s.emit(ctx, EventImported, result)
	return result, nil
}

// emit appends one change event to the log.
func (s *Service) emit(ctx context.Context, eventType string, data any) {
	payload, err := Envelope(eventType, data)
	if err != nil {
		slog.Warn("Failed to encode change event", "type", eventType, "error", err)
		return
	}
	if _, err := s.log.Append(ctx, s.stream, payload); err != nil {
		slog.Warn("Failed to append change event", "type", eventType, "stream", s.stream, "error", err)
	}
}
