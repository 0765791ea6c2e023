package repository

import (
	"context"
	"slices"
	"sync"

	"product-catalog/internal/catalog"
)

// MemoryRepository keeps products in process memory, in insertion order.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[int64]catalog.Product
	order  []int64
	lastID int64
}

func NewMemory() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[int64]catalog.Product),
	}
}

func (r *MemoryRepository) FindAll(_ context.Context) ([]catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]catalog.Product, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, clone(r.byID[id]))
	}
	return list, nil
}

// FindPage returns up to limit products after skipping offset, in insertion order.
func (r *MemoryRepository) FindPage(_ context.Context, limit, offset int) ([]catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]catalog.Product, 0, limit)
	if offset >= len(r.order) {
		return list, nil
	}
	end := min(offset+limit, len(r.order))
	for _, id := range r.order[offset:end] {
		list = append(list, clone(r.byID[id]))
	}
	return list, nil
}

func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.order)), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return clone(p), nil
}

func (r *MemoryRepository) Persist(_ context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !p.Persisted() {
		r.lastID++
		p.ID = r.lastID
		r.byID[p.ID] = clone(*p)
		r.order = append(r.order, p.ID)
		return nil
	}

	if _, ok := r.byID[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	r.byID[p.ID] = clone(*p)
	return nil
}

func (r *MemoryRepository) Remove(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return nil
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(v int64) bool { return v == id })
	return nil
}

func (r *MemoryRepository) Health() error {
	return nil
}

// clone detaches UpdatedAt so callers cannot mutate stored state through the pointer.
func clone(p catalog.Product) catalog.Product {
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		p.UpdatedAt = &t
	}
	return p
}
