/*
store.go - Persistence contract for the ledger

PURPOSE:
  Defines the interface between the ledger and the database. A Store
  persists items, categories and transactions; the Ledger decides what to
  write and the Store writes it atomically.

KEY INTERFACES:
  Reader:     All read queries. Safe to call concurrently.
  UnitOfWork: Reader plus the writes allowed inside one transaction.
  Store:      Reader plus WithTx; the only way to obtain a UnitOfWork.
  Backuper:   Optional online backup capability.
  Restorer:   Optional restore from a backup file.

APPEND-ONLY CONTRACT:
  Transactions have InsertTransaction and MarkVoided and nothing else.
  - No UpdateTransaction() or DeleteTransaction() methods exist
  - MarkVoided flips 0 -> 1 once; a second call returns ErrAlreadyVoided
  Items are updated, but only the Ledger calls UpdateItem, and only with a
  snapshot it computed from the row written in the same unit of work.

ATOMIC UNITS:
  WithTx ensures all-or-nothing semantics. Recording a distribution writes
  the transaction row and the new snapshot; voiding writes the correction,
  the voided flag and the snapshot. Either all of it commits or none of it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite (WAL, online backup)
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level API using Store
  - report.go: Summary read contract
*/
package ledger

import "context"

// =============================================================================
// READER - Queries shared by Store and UnitOfWork
// =============================================================================

type Reader interface {
	// Item returns ErrItemNotFound if id does not exist.
	Item(ctx context.Context, id ItemID) (Item, error)

	// ItemBySKU returns ErrItemNotFound if sku does not exist.
	ItemBySKU(ctx context.Context, sku string) (Item, error)

	// Items lists items ordered by SKU.
	Items(ctx context.Context, filter ItemFilter) ([]Item, error)

	// SearchItems matches active items whose SKU or name starts with prefix.
	// The prefix is a literal; wildcard characters are not interpreted.
	SearchItems(ctx context.Context, prefix string, limit int) ([]Item, error)

	// Transaction returns ErrTransactionNotFound if id does not exist.
	Transaction(ctx context.Context, id TransactionID) (Transaction, error)

	// History returns an item's transactions newest-first, including voided
	// and correction rows.
	History(ctx context.Context, itemID ItemID, page Page) ([]Transaction, error)

	// Transactions returns every transaction for an item in commit order.
	Transactions(ctx context.Context, itemID ItemID) ([]Transaction, error)

	// TransactionsInRange returns transactions of every item whose
	// OccurredAt falls in r, newest-first, voided and correction rows included.
	TransactionsInRange(ctx context.Context, r SummaryRange, page Page) ([]Transaction, error)

	// Category returns ErrCategoryNotFound if id does not exist.
	Category(ctx context.Context, id CategoryID) (Category, error)

	Categories(ctx context.Context) ([]Category, error)

	// Summary aggregates non-voided, non-correction rows in the range.
	Summary(ctx context.Context, r SummaryRange) (Summary, error)
}

// =============================================================================
// UNIT OF WORK - Writes, only inside WithTx
// =============================================================================

type UnitOfWork interface {
	Reader

	// InsertItem assigns the ID. Returns ErrDuplicateSKU on a taken SKU.
	InsertItem(ctx context.Context, item Item) (Item, error)

	// UpdateItem overwrites attributes and snapshot of an existing item.
	UpdateItem(ctx context.Context, item Item) error

	// InsertTransaction assigns the ID. Returns ErrDuplicateIdempotencyKey
	// when the key exists.
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)

	// MarkVoided sets the voided flag. Returns ErrAlreadyVoided if set.
	MarkVoided(ctx context.Context, id TransactionID) error

	// InsertCategory assigns the ID. Returns ErrDuplicateCategory on a taken name.
	InsertCategory(ctx context.Context, c Category) (Category, error)
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	Reader

	// WithTx executes fn within a write transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(UnitOfWork) error) error

	Close() error
}

// Backuper is implemented by stores that can produce a point-in-time copy
// while readers and writers remain active.
type Backuper interface {
	// Backup writes a consistent copy to dest. dest must not exist.
	Backup(ctx context.Context, dest string) error
}

// Restorer is implemented by stores that can replace their contents with a
// backup file. The caller guarantees no writer is active.
type Restorer interface {
	// Restore overwrites the store with the database at src.
	Restore(ctx context.Context, src string) error
}
