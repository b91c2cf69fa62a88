package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/port"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		sku            VARCHAR(255) PRIMARY KEY,
		version_number INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		reference     VARCHAR(255) PRIMARY KEY,
		sku           VARCHAR(255) NOT NULL,
		purchased_qty INT NOT NULL,
		eta           BIGINT NULL,
		FOREIGN KEY (sku) REFERENCES products(sku)
	)`,
	`CREATE TABLE IF NOT EXISTS allocations (
		batch_reference VARCHAR(255) NOT NULL,
		order_id        VARCHAR(255) NOT NULL,
		sku             VARCHAR(255) NOT NULL,
		qty             INT NOT NULL,
		position        INT NOT NULL,
		PRIMARY KEY (batch_reference, order_id, sku),
		FOREIGN KEY (batch_reference) REFERENCES batches(reference)
	)`,
	`CREATE TABLE IF NOT EXISTS allocations_view (
		order_id VARCHAR(255) NOT NULL,
		sku      VARCHAR(255) NOT NULL,
		batchref VARCHAR(255) NOT NULL,
		PRIMARY KEY (order_id, sku)
	)`,
}

// SQLStore backs the storage ports with database/sql. Queries are
// written with ? placeholders; dialects that number their placeholders
// supply a rebind hook. Reads run in autocommit with the version row
// read first, so any competing commit that lands afterwards moves the
// version and fails this unit's compare-and-swap. Commit holds the
// only transaction, kept short.
type SQLStore struct {
	db     *sql.DB
	rebind func(string) string
}

var _ port.UnitOfWorkFactory = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, rebind: func(q string) string { return q }}
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) New(ctx context.Context) (port.UnitOfWork, error) {
	return &sqlUnitOfWork{
		store:   s,
		tracked: make(map[string]*trackedProduct),
	}, nil
}

type sqlUnitOfWork struct {
	store     *SQLStore
	tracked   map[string]*trackedProduct
	order     []string
	viewAdds  []port.AllocationView
	viewDels  []viewKey
	newEvents []domain.Message
	committed bool
}

func (u *sqlUnitOfWork) Products() port.ProductRepository {
	return sqlProducts{uow: u}
}

func (u *sqlUnitOfWork) Allocations() port.AllocationViewStore {
	return sqlViews{uow: u}
}

func (u *sqlUnitOfWork) Commit(ctx context.Context) error {
	if u.committed {
		return nil
	}

	tx, err := u.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, sku := range u.order {
		tr := u.tracked[sku]
		if !tr.dirty() {
			continue
		}
		if err := u.persistProduct(ctx, tx, tr); err != nil {
			return err
		}
	}

	for _, key := range u.viewDels {
		if _, err := tx.ExecContext(ctx, u.store.rebind(
			`DELETE FROM allocations_view WHERE order_id = ? AND sku = ?`),
			key.orderID, key.sku); err != nil {
			return fmt.Errorf("delete view row: %w", err)
		}
	}
	for _, view := range u.viewAdds {
		if _, err := tx.ExecContext(ctx, u.store.rebind(
			`INSERT INTO allocations_view (order_id, sku, batchref) VALUES (?, ?, ?)`),
			view.OrderID, view.Sku, view.BatchRef); err != nil {
			return fmt.Errorf("insert view row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	u.committed = true
	for _, sku := range u.order {
		u.newEvents = append(u.newEvents, u.tracked[sku].product.PopEvents()...)
	}
	return nil
}

func (u *sqlUnitOfWork) persistProduct(ctx context.Context, tx *sql.Tx, tr *trackedProduct) error {
	p := tr.product

	if tr.isNew {
		var count int
		if err := tx.QueryRowContext(ctx, u.store.rebind(
			`SELECT COUNT(*) FROM products WHERE sku = ?`), p.Sku).Scan(&count); err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		if count > 0 {
			return domain.ErrConcurrencyConflict
		}
		if _, err := tx.ExecContext(ctx, u.store.rebind(
			`INSERT INTO products (sku, version_number) VALUES (?, ?)`),
			p.Sku, p.VersionNumber); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx, u.store.rebind(
			`UPDATE products SET version_number = ? WHERE sku = ? AND version_number = ?`),
			p.VersionNumber, p.Sku, tr.loadedVersion)
		if err != nil {
			return fmt.Errorf("update product version: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return domain.ErrConcurrencyConflict
		}
	}

	// the version row is ours now; rewrite the children wholesale
	if _, err := tx.ExecContext(ctx, u.store.rebind(
		`DELETE FROM allocations WHERE batch_reference IN
			(SELECT reference FROM batches WHERE sku = ?)`), p.Sku); err != nil {
		return fmt.Errorf("clear allocations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, u.store.rebind(
		`DELETE FROM batches WHERE sku = ?`), p.Sku); err != nil {
		return fmt.Errorf("clear batches: %w", err)
	}
	for _, b := range p.Batches() {
		if _, err := tx.ExecContext(ctx, u.store.rebind(
			`INSERT INTO batches (reference, sku, purchased_qty, eta) VALUES (?, ?, ?, ?)`),
			b.Ref, p.Sku, b.PurchasedQty(), etaToMillis(b.ETA())); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		for i, line := range b.Allocations() {
			if _, err := tx.ExecContext(ctx, u.store.rebind(
				`INSERT INTO allocations (batch_reference, order_id, sku, qty, position)
				VALUES (?, ?, ?, ?, ?)`),
				b.Ref, line.OrderID, line.Sku, line.Qty, i); err != nil {
				return fmt.Errorf("insert allocation: %w", err)
			}
		}
	}
	return nil
}

// Rollback is a no-op: writes are buffered until Commit, so there is
// nothing to undo.
func (u *sqlUnitOfWork) Rollback(ctx context.Context) error {
	return nil
}

func (u *sqlUnitOfWork) NewEvents() []domain.Message {
	return u.newEvents
}

func (u *sqlUnitOfWork) track(p *domain.Product, loadedVersion int, isNew bool) {
	u.tracked[p.Sku] = &trackedProduct{product: p, loadedVersion: loadedVersion, isNew: isNew}
	u.order = append(u.order, p.Sku)
}

func (u *sqlUnitOfWork) loadProduct(ctx context.Context, sku string) (*domain.Product, error) {
	var version int
	err := u.store.db.QueryRowContext(ctx, u.store.rebind(
		`SELECT version_number FROM products WHERE sku = ?`), sku).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	allocations, err := u.loadAllocations(ctx, sku)
	if err != nil {
		return nil, err
	}

	rows, err := u.store.db.QueryContext(ctx, u.store.rebind(
		`SELECT reference, purchased_qty, eta FROM batches WHERE sku = ? ORDER BY reference`), sku)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.Batch
	for rows.Next() {
		var (
			ref string
			qty int
			eta sql.NullInt64
		)
		if err := rows.Scan(&ref, &qty, &eta); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, domain.RestoreBatch(ref, sku, qty, millisToETA(eta), allocations[ref]))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}

	product := domain.RestoreProduct(sku, version, batches)
	u.track(product, version, false)
	return product, nil
}

func (u *sqlUnitOfWork) loadAllocations(ctx context.Context, sku string) (map[string][]domain.OrderLine, error) {
	rows, err := u.store.db.QueryContext(ctx, u.store.rebind(
		`SELECT a.batch_reference, a.order_id, a.sku, a.qty
		FROM allocations a
		JOIN batches b ON a.batch_reference = b.reference
		WHERE b.sku = ?
		ORDER BY a.batch_reference, a.position`), sku)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	defer rows.Close()

	allocations := make(map[string][]domain.OrderLine)
	for rows.Next() {
		var (
			ref  string
			line domain.OrderLine
		)
		if err := rows.Scan(&ref, &line.OrderID, &line.Sku, &line.Qty); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		allocations[ref] = append(allocations[ref], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return allocations, nil
}

type sqlProducts struct {
	uow *sqlUnitOfWork
}

func (r sqlProducts) Add(ctx context.Context, product *domain.Product) error {
	r.uow.track(product, 0, true)
	return nil
}

func (r sqlProducts) Get(ctx context.Context, sku string) (*domain.Product, error) {
	if tr, ok := r.uow.tracked[sku]; ok {
		return tr.product, nil
	}
	return r.uow.loadProduct(ctx, sku)
}

func (r sqlProducts) GetByBatchRef(ctx context.Context, ref string) (*domain.Product, error) {
	for _, sku := range r.uow.order {
		if r.uow.tracked[sku].product.Batch(ref) != nil {
			return r.uow.tracked[sku].product, nil
		}
	}

	var sku string
	err := r.uow.store.db.QueryRowContext(ctx, r.uow.store.rebind(
		`SELECT sku FROM batches WHERE reference = ?`), ref).Scan(&sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query batch owner: %w", err)
	}
	return r.Get(ctx, sku)
}

type sqlViews struct {
	uow *sqlUnitOfWork
}

func (v sqlViews) Add(ctx context.Context, view port.AllocationView) error {
	v.uow.viewAdds = append(v.uow.viewAdds, view)
	return nil
}

func (v sqlViews) Remove(ctx context.Context, orderID, sku string) error {
	v.uow.viewDels = append(v.uow.viewDels, viewKey{orderID: orderID, sku: sku})
	return nil
}

func (v sqlViews) ListByOrderID(ctx context.Context, orderID string) ([]port.AllocationView, error) {
	rows, err := v.uow.store.db.QueryContext(ctx, v.uow.store.rebind(
		`SELECT order_id, sku, batchref FROM allocations_view WHERE order_id = ? ORDER BY sku`), orderID)
	if err != nil {
		return nil, fmt.Errorf("query allocations view: %w", err)
	}
	defer rows.Close()

	var views []port.AllocationView
	for rows.Next() {
		var view port.AllocationView
		if err := rows.Scan(&view.OrderID, &view.Sku, &view.BatchRef); err != nil {
			return nil, fmt.Errorf("scan view row: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate view rows: %w", err)
	}
	return views, nil
}

// ETAs are stored as Unix milliseconds so every backend compares and
// orders them the same way. NULL means warehouse stock.
func etaToMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func millisToETA(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
