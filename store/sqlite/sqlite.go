/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Durable storage for items, categories and the transaction log. Every
  ledger write runs in one SQLite transaction so the log row and the item
  snapshot commit together or not at all.

INTERFACES IMPLEMENTED:
  ledger.Store:    Reader + WithTx + Close
  ledger.Backuper: Online backup (backup.go)

APPEND-ONLY ENFORCEMENT:
  Enforced twice: the Go API has no update/delete for transactions, and
  triggers abort any DELETE on transactions or items and any UPDATE of a
  transaction other than the single voided 0 -> 1 flip.

KEY TABLES:
  categories:   two-level grouping
  items:        derived snapshot (quantity_on_hand, cost_basis_cents)
  transactions: immutable ledger

CHECK CONSTRAINTS:
  The kind/sign rule and the per-kind money columns are repeated in the
  schema, so a row that bypassed the ledger still cannot land:
  - PURCHASE/DONATION quantity > 0, DISTRIBUTION < 0, CORRECTION != 0
  - PURCHASE impact >= 0, DONATION impact = 0, DISTRIBUTION impact <= 0
  - CORRECTION must reference the row it reverses, once
  - snapshot quantity and cost basis >= 0

INDEXES:
  - items.sku (UNIQUE autoindex): lookup and prefix search
  - idx_transactions_item: history and replay (hot path)
  - idx_transactions_occurred_at, _kind, _voided: reporting filters
  - idx_transactions_corrects: at most one correction per original

CONCURRENCY:
  WAL journal: readers never block the writer and vice versa. Writers
  begin with BEGIN IMMEDIATE (_txlock=immediate) so the write lock is taken
  up front; a lock held elsewhere is waited on for the busy timeout and then
  surfaces as ledger.ErrStoreBusy. A mutex serialises writers inside this
  process.

TEXT ENCODINGS:
  Quantities are decimal strings. Times are UTC with fixed-width
  nanoseconds so lexical order is chronological order.

USAGE:
  store, err := sqlite.New("./inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l, err := ledger.New(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/money"
)

const (
	schemaVersion = 1

	// DefaultBusyTimeout bounds the wait for a write lock held by another
	// connection before ErrStoreBusy is returned.
	DefaultBusyTimeout = 5 * time.Second

	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	reader
	db   *sql.DB
	path string
	log  logrus.FieldLogger
	mu   sync.Mutex
}

type options struct {
	busyTimeout time.Duration
	log         logrus.FieldLogger
}

type Option func(*options)

// WithBusyTimeout sets how long a writer waits for the database lock.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}
	o := options{busyTimeout: DefaultBusyTimeout, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		dbPath, o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{reader: reader{q: db}, db: db, path: dbPath, log: o.log}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	o.log.WithFields(logrus.Fields{
		"path":           dbPath,
		"schema_version": schemaVersion,
	}).Debug("database opened")
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE CHECK (name <> ''),
		parent_id INTEGER REFERENCES categories(id),
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT NOT NULL UNIQUE CHECK (sku <> ''),
		name TEXT NOT NULL CHECK (name <> ''),
		category_id INTEGER REFERENCES categories(id),
		quantity_on_hand TEXT NOT NULL DEFAULT '0'
			CHECK (CAST(quantity_on_hand AS REAL) >= 0),
		reorder_threshold INTEGER NOT NULL DEFAULT 10 CHECK (reorder_threshold >= 0),
		cost_basis_cents INTEGER NOT NULL DEFAULT 0 CHECK (cost_basis_cents >= 0),
		is_active INTEGER NOT NULL DEFAULT 1 CHECK (is_active IN (0, 1)),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_id);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(id),
		kind TEXT NOT NULL
			CHECK (kind IN ('PURCHASE', 'DONATION', 'DISTRIBUTION', 'CORRECTION')),
		quantity_change TEXT NOT NULL,
		unit_cost_cents INTEGER NOT NULL DEFAULT 0 CHECK (unit_cost_cents >= 0),
		fair_market_value_cents INTEGER NOT NULL DEFAULT 0,
		financial_impact_cents INTEGER NOT NULL DEFAULT 0,
		reason_code TEXT,
		supplier TEXT,
		donor TEXT,
		notes TEXT,
		voided INTEGER NOT NULL DEFAULT 0 CHECK (voided IN (0, 1)),
		corrects_id INTEGER REFERENCES transactions(id),
		idempotency_key TEXT NOT NULL UNIQUE,
		occurred_at TEXT NOT NULL,
		actor TEXT NOT NULL,

		CHECK (
			(kind IN ('PURCHASE', 'DONATION') AND CAST(quantity_change AS REAL) > 0) OR
			(kind = 'DISTRIBUTION' AND CAST(quantity_change AS REAL) < 0) OR
			(kind = 'CORRECTION' AND CAST(quantity_change AS REAL) <> 0)
		),
		CHECK (
			(kind = 'PURCHASE' AND financial_impact_cents >= 0 AND fair_market_value_cents = 0) OR
			(kind = 'DONATION' AND financial_impact_cents = 0 AND fair_market_value_cents >= 0) OR
			(kind = 'DISTRIBUTION' AND financial_impact_cents <= 0 AND fair_market_value_cents = 0) OR
			(kind = 'CORRECTION' AND corrects_id IS NOT NULL)
		),
		CHECK (kind <> 'DISTRIBUTION' OR COALESCE(reason_code, '') IN ('CLIENT', 'SPOILAGE', 'INTERNAL')),
		CHECK (kind <> 'CORRECTION' OR COALESCE(reason_code, '') = 'VOID'),
		CHECK (kind = 'CORRECTION' OR corrects_id IS NULL)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_item
		ON transactions(item_id, id);
	CREATE INDEX IF NOT EXISTS idx_transactions_occurred_at
		ON transactions(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_kind
		ON transactions(kind);
	CREATE INDEX IF NOT EXISTS idx_transactions_voided
		ON transactions(voided);

	-- CRITICAL: one correction per original
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_corrects
		ON transactions(corrects_id) WHERE corrects_id IS NOT NULL;

	CREATE TRIGGER IF NOT EXISTS transactions_no_delete
	BEFORE DELETE ON transactions
	BEGIN
		SELECT RAISE(ABORT, 'transactions are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS transactions_only_void
	BEFORE UPDATE ON transactions
	WHEN OLD.voided = 1 OR NEW.voided <> 1
		OR NEW.id IS NOT OLD.id
		OR NEW.item_id IS NOT OLD.item_id
		OR NEW.kind IS NOT OLD.kind
		OR NEW.quantity_change IS NOT OLD.quantity_change
		OR NEW.unit_cost_cents IS NOT OLD.unit_cost_cents
		OR NEW.fair_market_value_cents IS NOT OLD.fair_market_value_cents
		OR NEW.financial_impact_cents IS NOT OLD.financial_impact_cents
		OR NEW.reason_code IS NOT OLD.reason_code
		OR NEW.corrects_id IS NOT OLD.corrects_id
		OR NEW.idempotency_key IS NOT OLD.idempotency_key
		OR NEW.occurred_at IS NOT OLD.occurred_at
	BEGIN
		SELECT RAISE(ABORT, 'transactions are immutable except for voiding');
	END;

	CREATE TRIGGER IF NOT EXISTS items_no_delete
	BEFORE DELETE ON items
	BEGIN
		SELECT RAISE(ABORT, 'items are deactivated, never deleted');
	END;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.Store WithTx)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{reader: reader{q: sqlTx}, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

type txStore struct {
	reader
	tx *sql.Tx
}

func (ts *txStore) InsertItem(ctx context.Context, it ledger.Item) (ledger.Item, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO items
		(sku, name, category_id, quantity_on_hand, reorder_threshold, cost_basis_cents,
		 is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.SKU, it.Name, nullCategory(it.CategoryID), it.QuantityOnHand.String(),
		it.ReorderThreshold, int64(it.CostBasis), it.Active,
		formatTime(it.CreatedAt), formatTime(it.UpdatedAt),
	)
	if err != nil {
		if isUnique(err) {
			return ledger.Item{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateSKU, it.SKU)
		}
		return ledger.Item{}, mapError(fmt.Errorf("failed to insert item: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Item{}, err
	}
	it.ID = ledger.ItemID(id)
	return it, nil
}

func (ts *txStore) UpdateItem(ctx context.Context, it ledger.Item) error {
	res, err := ts.tx.ExecContext(ctx, `
		UPDATE items
		SET name = ?, category_id = ?, quantity_on_hand = ?, reorder_threshold = ?,
		    cost_basis_cents = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		it.Name, nullCategory(it.CategoryID), it.QuantityOnHand.String(), it.ReorderThreshold,
		int64(it.CostBasis), it.Active, formatTime(it.UpdatedAt), it.ID,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to update item %d: %w", it.ID, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrItemNotFound, it.ID)
	}
	return nil
}

func (ts *txStore) InsertTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	var corrects sql.NullInt64
	if tx.CorrectsID != nil {
		corrects = sql.NullInt64{Int64: int64(*tx.CorrectsID), Valid: true}
	}
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO transactions
		(item_id, kind, quantity_change, unit_cost_cents, fair_market_value_cents,
		 financial_impact_cents, reason_code, supplier, donor, notes, voided,
		 corrects_id, idempotency_key, occurred_at, actor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		tx.ItemID, string(tx.Kind), tx.QuantityChange.String(), int64(tx.UnitCost),
		int64(tx.FairMarketValue), int64(tx.FinancialImpact), nullString(string(tx.Reason)),
		nullString(tx.Supplier), nullString(tx.Donor), nullString(tx.Notes),
		corrects, tx.IdempotencyKey, formatTime(tx.OccurredAt), tx.Actor,
	)
	if err != nil {
		switch {
		case isUnique(err) && strings.Contains(err.Error(), "corrects_id"):
			return ledger.Transaction{}, ledger.ErrAlreadyVoided
		case isUnique(err):
			return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateIdempotencyKey, tx.IdempotencyKey)
		}
		return ledger.Transaction{}, mapError(fmt.Errorf("failed to append transaction: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx.ID = ledger.TransactionID(id)
	tx.Voided = false
	return tx, nil
}

func (ts *txStore) MarkVoided(ctx context.Context, id ledger.TransactionID) error {
	res, err := ts.tx.ExecContext(ctx,
		"UPDATE transactions SET voided = 1 WHERE id = ? AND voided = 0", id)
	if err != nil {
		return mapError(fmt.Errorf("failed to void transaction %d: %w", id, err))
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := ts.Transaction(ctx, id); err != nil {
		return err
	}
	return ledger.ErrAlreadyVoided
}

func (ts *txStore) InsertCategory(ctx context.Context, c ledger.Category) (ledger.Category, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO categories (name, parent_id, description, created_at)
		VALUES (?, ?, ?, ?)`,
		c.Name, nullCategory(c.ParentID), c.Description, formatTime(c.CreatedAt),
	)
	if err != nil {
		if isUnique(err) {
			return ledger.Category{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateCategory, c.Name)
		}
		if isForeignKey(err) {
			return ledger.Category{}, ledger.ErrCategoryNotFound
		}
		return ledger.Category{}, mapError(fmt.Errorf("failed to insert category: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Category{}, err
	}
	c.ID = ledger.CategoryID(id)
	return c, nil
}

// =============================================================================
// READER (ledger.Reader) - shared by Store and txStore
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type reader struct {
	q querier
}

const itemColumns = `id, sku, name, category_id, quantity_on_hand, reorder_threshold,
	cost_basis_cents, is_active, created_at, updated_at`

const transactionColumns = `id, item_id, kind, quantity_change, unit_cost_cents,
	fair_market_value_cents, financial_impact_cents, reason_code, supplier, donor,
	notes, voided, corrects_id, idempotency_key, occurred_at, actor`

func (r reader) Item(ctx context.Context, id ledger.ItemID) (ledger.Item, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Item{}, fmt.Errorf("%w: %d", ledger.ErrItemNotFound, id)
	}
	return it, err
}

func (r reader) ItemBySKU(ctx context.Context, sku string) (ledger.Item, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE sku = ?", sku)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Item{}, fmt.Errorf("%w: %s", ledger.ErrItemNotFound, sku)
	}
	return it, err
}

func (r reader) Items(ctx context.Context, f ledger.ItemFilter) ([]ledger.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE 1 = 1"
	var args []any
	if f.ActiveOnly {
		query += " AND is_active = 1"
	}
	if f.CategoryID != nil {
		query += " AND category_id = ?"
		args = append(args, int64(*f.CategoryID))
	}
	query += " ORDER BY sku"

	items, err := r.queryItems(ctx, query, args...)
	if err != nil || !f.BelowThreshold {
		return items, err
	}
	// exact decimal comparison, not REAL
	low := items[:0]
	for _, it := range items {
		if it.BelowThreshold() {
			low = append(low, it)
		}
	}
	return low, nil
}

func (r reader) SearchItems(ctx context.Context, prefix string, limit int) ([]ledger.Item, error) {
	pattern := escapeLike(prefix) + "%"
	return r.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE is_active = 1
		  AND (sku LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\')
		ORDER BY sku
		LIMIT ?`,
		pattern, pattern, limit)
}

func (r reader) queryItems(ctx context.Context, query string, args ...any) ([]ledger.Item, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query items: %w", err))
	}
	defer rows.Close()

	var items []ledger.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r reader) Transaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, fmt.Errorf("%w: %d", ledger.ErrTransactionNotFound, id)
	}
	return tx, err
}

func (r reader) History(ctx context.Context, itemID ledger.ItemID, page ledger.Page) ([]ledger.Transaction, error) {
	return r.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE item_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		itemID, page.Limit, page.Offset)
}

func (r reader) Transactions(ctx context.Context, itemID ledger.ItemID) ([]ledger.Transaction, error) {
	return r.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE item_id = ?
		ORDER BY id ASC`,
		itemID)
}

func (r reader) TransactionsInRange(ctx context.Context, rng ledger.SummaryRange, page ledger.Page) ([]ledger.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE 1 = 1"
	var args []any
	if !rng.From.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, formatTime(rng.From))
	}
	if !rng.To.IsZero() {
		query += " AND occurred_at <= ?"
		args = append(args, formatTime(rng.To))
	}
	query += " ORDER BY occurred_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)
	return r.queryTransactions(ctx, query, args...)
}

func (r reader) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (r reader) Category(ctx context.Context, id ledger.CategoryID) (ledger.Category, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT id, name, parent_id, description, created_at FROM categories WHERE id = ?", id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Category{}, fmt.Errorf("%w: %d", ledger.ErrCategoryNotFound, id)
	}
	return c, err
}

func (r reader) Categories(ctx context.Context) ([]ledger.Category, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT id, name, parent_id, description, created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query categories: %w", err))
	}
	defer rows.Close()

	var out []ledger.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// REPORTING
// =============================================================================

// Summary aggregates in SQL. Cents are summed by SQLite as integers;
// quantities come back concatenated and are summed as decimals here.
func (r reader) Summary(ctx context.Context, rng ledger.SummaryRange) (ledger.Summary, error) {
	query := `
		SELECT kind, COALESCE(reason_code, ''), COUNT(*),
		       COALESCE(SUM(financial_impact_cents), 0),
		       COALESCE(SUM(fair_market_value_cents), 0),
		       group_concat(quantity_change, ' ')
		FROM transactions
		WHERE voided = 0 AND kind <> 'CORRECTION'`
	var args []any
	if !rng.From.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, formatTime(rng.From))
	}
	if !rng.To.IsZero() {
		query += " AND occurred_at <= ?"
		args = append(args, formatTime(rng.To))
	}
	query += " GROUP BY kind, reason_code"

	s := ledger.NewSummary(rng)

	// before the grouped query: a single-connection pool cannot serve a
	// second query while rows are open
	var value int64
	if err := r.q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(cost_basis_cents), 0) FROM items").Scan(&value); err != nil {
		return ledger.Summary{}, mapError(fmt.Errorf("failed to query inventory value: %w", err))
	}
	s.InventoryValue = money.Cents(value)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.Summary{}, mapError(fmt.Errorf("failed to query summary: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, reason, quantities string
			count                    int
			impact, fmv              int64
		)
		if err := rows.Scan(&kind, &reason, &count, &impact, &fmv, &quantities); err != nil {
			return ledger.Summary{}, fmt.Errorf("failed to scan summary: %w", err)
		}
		qty, err := sumQuantities(quantities)
		if err != nil {
			return ledger.Summary{}, err
		}
		switch ledger.Kind(kind) {
		case ledger.KindPurchase:
			s.Purchases = mergeTotals(s.Purchases, count, qty, money.Cents(impact))
		case ledger.KindDonation:
			s.Donations = mergeTotals(s.Donations, count, qty, money.Cents(fmv))
		case ledger.KindDistribution:
			cogs := money.Cents(-impact)
			s.Distributions = mergeTotals(s.Distributions, count, qty, cogs)
			rc := ledger.ReasonCode(reason)
			s.ByReason[rc] = mergeTotals(s.ByReason[rc], count, qty, cogs)
		}
	}
	if err := rows.Err(); err != nil {
		return ledger.Summary{}, err
	}

	return s, nil
}

func mergeTotals(t ledger.Totals, count int, qty decimal.Decimal, amount money.Cents) ledger.Totals {
	t.Count += count
	t.Quantity = t.Quantity.Add(qty)
	t.Amount += amount
	return t
}

func sumQuantities(list string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, f := range strings.Fields(list) {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid stored quantity %q: %w", f, err)
		}
		total = total.Add(d.Abs())
	}
	return total, nil
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (ledger.Item, error) {
	var (
		it                   ledger.Item
		category             sql.NullInt64
		qty                  string
		basis                int64
		createdAt, updatedAt string
	)
	err := row.Scan(&it.ID, &it.SKU, &it.Name, &category, &qty, &it.ReorderThreshold,
		&basis, &it.Active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return it, err
		}
		return it, mapError(fmt.Errorf("failed to scan item: %w", err))
	}
	if category.Valid {
		id := ledger.CategoryID(category.Int64)
		it.CategoryID = &id
	}
	if it.QuantityOnHand, err = decimal.NewFromString(qty); err != nil {
		return it, fmt.Errorf("item %d: invalid quantity %q: %w", it.ID, qty, err)
	}
	it.CostBasis = money.Cents(basis)
	it.CreatedAt = parseTime(createdAt)
	it.UpdatedAt = parseTime(updatedAt)
	return it, nil
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		tx                      ledger.Transaction
		kind, qty, occurredAt   string
		unit, fmv, impact       int64
		reason, supplier, donor sql.NullString
		notes                   sql.NullString
		corrects                sql.NullInt64
	)
	err := row.Scan(&tx.ID, &tx.ItemID, &kind, &qty, &unit, &fmv, &impact,
		&reason, &supplier, &donor, &notes, &tx.Voided, &corrects,
		&tx.IdempotencyKey, &occurredAt, &tx.Actor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx, err
		}
		return tx, mapError(fmt.Errorf("failed to scan transaction: %w", err))
	}
	tx.Kind = ledger.Kind(kind)
	if tx.QuantityChange, err = decimal.NewFromString(qty); err != nil {
		return tx, fmt.Errorf("transaction %d: invalid quantity %q: %w", tx.ID, qty, err)
	}
	tx.UnitCost = money.Cents(unit)
	tx.FairMarketValue = money.Cents(fmv)
	tx.FinancialImpact = money.Cents(impact)
	tx.Reason = ledger.ReasonCode(reason.String)
	tx.Supplier = supplier.String
	tx.Donor = donor.String
	tx.Notes = notes.String
	if corrects.Valid {
		id := ledger.TransactionID(corrects.Int64)
		tx.CorrectsID = &id
	}
	tx.OccurredAt = parseTime(occurredAt)
	return tx, nil
}

func scanCategory(row scanner) (ledger.Category, error) {
	var (
		c         ledger.Category
		parent    sql.NullInt64
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &parent, &c.Description, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, mapError(fmt.Errorf("failed to scan category: %w", err))
	}
	if parent.Valid {
		id := ledger.CategoryID(parent.Int64)
		c.ParentID = &id
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullCategory(id *ledger.CategoryID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

// escapeLike makes every character of s match literally under ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func sqliteError(err error) (sqlite3.Error, bool) {
	var se sqlite3.Error
	ok := errors.As(err, &se)
	return se, ok
}

func isUnique(err error) bool {
	se, ok := sqliteError(err)
	return ok && (se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKey(err error) bool {
	se, ok := sqliteError(err)
	return ok && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// mapError translates SQLite result codes into the ledger taxonomy.
func mapError(err error) error {
	se, ok := sqliteError(err)
	if !ok {
		return err
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", ledger.ErrStoreBusy, err)
	case sqlite3.ErrConstraint:
		return fmt.Errorf("%w: %v", ledger.ErrConstraint, err)
	}
	return err
}

var (
	_ ledger.Store      = (*Store)(nil)
	_ ledger.Backuper   = (*Store)(nil)
	_ ledger.UnitOfWork = (*txStore)(nil)
)
