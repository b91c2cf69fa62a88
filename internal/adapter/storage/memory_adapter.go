package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/port"
)

// MemoryStore keeps products and read-model rows in process, guarded
// by one mutex. Units of work read detached copies and commit with the
// same version check as the SQL stores, so it doubles as the reference
// implementation and the hermetic test backend.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	views    map[string][]port.AllocationView
}

var _ port.UnitOfWorkFactory = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*domain.Product),
		views:    make(map[string][]port.AllocationView),
	}
}

func (s *MemoryStore) New(ctx context.Context) (port.UnitOfWork, error) {
	return &memoryUnitOfWork{
		store:   s,
		tracked: make(map[string]*trackedProduct),
	}, nil
}

type memoryUnitOfWork struct {
	store     *MemoryStore
	tracked   map[string]*trackedProduct
	order     []string
	viewAdds  []port.AllocationView
	viewDels  []viewKey
	newEvents []domain.Message
	committed bool
}

func (u *memoryUnitOfWork) Products() port.ProductRepository {
	return memoryProducts{uow: u}
}

func (u *memoryUnitOfWork) Allocations() port.AllocationViewStore {
	return memoryViews{uow: u}
}

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if u.committed {
		return nil
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	// validate every version first so a conflict applies nothing
	for _, sku := range u.order {
		tr := u.tracked[sku]
		if !tr.dirty() {
			continue
		}
		current, exists := u.store.products[sku]
		if tr.isNew {
			if exists {
				return domain.ErrConcurrencyConflict
			}
			continue
		}
		if !exists || current.VersionNumber != tr.loadedVersion {
			return domain.ErrConcurrencyConflict
		}
	}

	for _, sku := range u.order {
		tr := u.tracked[sku]
		if !tr.dirty() {
			continue
		}
		u.store.products[sku] = tr.product.Clone()
	}
	for _, key := range u.viewDels {
		rows := u.store.views[key.orderID]
		u.store.views[key.orderID] = slices.DeleteFunc(rows, func(v port.AllocationView) bool {
			return v.Sku == key.sku
		})
	}
	for _, view := range u.viewAdds {
		u.store.views[view.OrderID] = append(u.store.views[view.OrderID], view)
	}

	u.committed = true
	for _, sku := range u.order {
		u.newEvents = append(u.newEvents, u.tracked[sku].product.PopEvents()...)
	}
	return nil
}

// Rollback is a no-op: writes are buffered until Commit, so there is
// nothing to undo.
func (u *memoryUnitOfWork) Rollback(ctx context.Context) error {
	return nil
}

func (u *memoryUnitOfWork) NewEvents() []domain.Message {
	return u.newEvents
}

func (u *memoryUnitOfWork) track(p *domain.Product, loadedVersion int, isNew bool) {
	u.tracked[p.Sku] = &trackedProduct{product: p, loadedVersion: loadedVersion, isNew: isNew}
	u.order = append(u.order, p.Sku)
}

type memoryProducts struct {
	uow *memoryUnitOfWork
}

func (r memoryProducts) Add(ctx context.Context, product *domain.Product) error {
	r.uow.track(product, 0, true)
	return nil
}

func (r memoryProducts) Get(ctx context.Context, sku string) (*domain.Product, error) {
	if tr, ok := r.uow.tracked[sku]; ok {
		return tr.product, nil
	}

	r.uow.store.mu.Lock()
	stored, ok := r.uow.store.products[sku]
	r.uow.store.mu.Unlock()
	if !ok {
		return nil, nil
	}

	product := stored.Clone()
	r.uow.track(product, product.VersionNumber, false)
	return product, nil
}

func (r memoryProducts) GetByBatchRef(ctx context.Context, ref string) (*domain.Product, error) {
	for _, sku := range r.uow.order {
		if r.uow.tracked[sku].product.Batch(ref) != nil {
			return r.uow.tracked[sku].product, nil
		}
	}

	r.uow.store.mu.Lock()
	var sku string
	for _, stored := range r.uow.store.products {
		if stored.Batch(ref) != nil {
			sku = stored.Sku
			break
		}
	}
	r.uow.store.mu.Unlock()
	if sku == "" {
		return nil, nil
	}
	return r.Get(ctx, sku)
}

type memoryViews struct {
	uow *memoryUnitOfWork
}

func (v memoryViews) Add(ctx context.Context, view port.AllocationView) error {
	v.uow.viewAdds = append(v.uow.viewAdds, view)
	return nil
}

func (v memoryViews) Remove(ctx context.Context, orderID, sku string) error {
	v.uow.viewDels = append(v.uow.viewDels, viewKey{orderID: orderID, sku: sku})
	return nil
}

func (v memoryViews) ListByOrderID(ctx context.Context, orderID string) ([]port.AllocationView, error) {
	v.uow.store.mu.Lock()
	defer v.uow.store.mu.Unlock()
	return slices.Clone(v.uow.store.views[orderID]), nil
}
