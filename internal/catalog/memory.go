package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and single-process
// dev deployments. Soft-deleted products are kept until restored or
// overwritten; there is no retention sweep.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]*Product // keyed by SKU
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]*Product)}
}

func (s *MemoryStore) Get(ctx context.Context, sku string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[sku]
	if !ok || p.Deleted {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

func (s *MemoryStore) List(ctx context.Context, q Query) ([]*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Product
	for _, p := range s.products {
		if p.Deleted && !q.ShowDeleted {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.products[p.SKU]; ok && !existing.Deleted {
		return ErrExists
	}
	p.ID = ProductID(p.SKU)
	p.Deleted = false
	s.products[p.SKU] = clone(p)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, sku string, fields map[string]any) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[sku]
	if !ok || p.Deleted {
		return nil, ErrNotFound
	}
	applyFields(p, fields)
	p.Version++
	p.UpdatedAt = time.Now().UnixMilli()
	return clone(p), nil
}

func (s *MemoryStore) Delete(ctx context.Context, sku string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[sku]
	if !ok || p.Deleted {
		return nil, ErrNotFound
	}
	p.Deleted = true
	p.Version++
	p.UpdatedAt = time.Now().UnixMilli()
	return clone(p), nil
}

func (s *MemoryStore) Restore(ctx context.Context, sku string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[sku]
	if !ok || !p.Deleted {
		return nil, ErrNotFound
	}
	p.Deleted = false
	p.Version++
	p.UpdatedAt = time.Now().UnixMilli()
	return clone(p), nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func clone(p *Product) *Product {
	cp := *p
	return &cp
}

// applyFields mirrors the document field names used by the Mongo store.
func applyFields(p *Product, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			p.Name, _ = v.(string)
		case "description":
			p.Description, _ = v.(string)
		case "price":
			p.Price, _ = v.(string)
		case "category":
			p.Category, _ = v.(string)
		case "stock":
			if n, ok := v.(int); ok {
				p.Stock = n
			}
		}
	}
}

// Compile-time check
var _ Store = (*MemoryStore)(nil)
