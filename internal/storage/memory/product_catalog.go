package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// ProductCatalog in-memory каталог цен и остатков.
type ProductCatalog struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogEntry
}

// NewProductCatalog создаёт пустой каталог.
func NewProductCatalog() *ProductCatalog {
	return &ProductCatalog{items: make(map[string]domain.CatalogEntry)}
}

// Put добавляет или заменяет запись каталога.
func (r *ProductCatalog) Put(entry domain.CatalogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[entry.ID] = entry
}

// Get возвращает текущую запись каталога.
func (r *ProductCatalog) Get(id string) (domain.CatalogEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.items[id]
	return entry, ok
}

// FindAllByID возвращает копии записей для известных id в порядке запроса.
func (r *ProductCatalog) FindAllByID(_ context.Context, ids []string) ([]domain.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := r.items[id]; ok {
			result = append(result, entry)
		}
	}
	return result, nil
}

// UpdateQuantity записывает новые остатки. Если хотя бы один id неизвестен,
// ничего не меняется.
func (r *ProductCatalog) UpdateQuantity(_ context.Context, adjustments []domain.QuantityAdjustment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, adj := range adjustments {
		if _, ok := r.items[adj.ID]; !ok {
			return &domain.ProductError{Err: domain.ErrProductNotFound, ProductID: adj.ID}
		}
	}
	for _, adj := range adjustments {
		entry := r.items[adj.ID]
		entry.Quantity = adj.Quantity
		r.items[adj.ID] = entry
	}
	return nil
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)
