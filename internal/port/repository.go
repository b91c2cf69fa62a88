package port

import (
	"context"

	"github.com/stockwell-io/allocator/internal/core/domain"
)

type ProductRepository interface {
	// Add stages a brand-new product for insertion at commit
	Add(ctx context.Context, product *domain.Product) error

	// Get retrieves a product by sku, nil when the sku is unknown
	Get(ctx context.Context, sku string) (*domain.Product, error)

	// GetByBatchRef retrieves the product owning the batch, nil when no
	// batch carries the reference
	GetByBatchRef(ctx context.Context, ref string) (*domain.Product, error)
}
