package storage

import "github.com/stockwell-io/allocator/internal/core/domain"

// trackedProduct pairs a loaded aggregate with the version it had at
// load time. The commit-time version check compares against that, so a
// read taken before a competing commit fails cleanly instead of
// overwriting it.
type trackedProduct struct {
	product       *domain.Product
	loadedVersion int
	isNew         bool
}

// dirty reports whether the aggregate changed since it was loaded.
// Clean aggregates are skipped at commit: no write, no version check.
func (t *trackedProduct) dirty() bool {
	return t.isNew || t.product.VersionNumber != t.loadedVersion
}

type viewKey struct {
	orderID string
	sku     string
}
