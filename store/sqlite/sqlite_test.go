package sqlite

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/money"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func q(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quiet() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func openStore(t *testing.T, path string, opts ...Option) *Store {
	t.Helper()
	s, err := New(path, append([]Option{WithLogger(quiet())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newLedger(t *testing.T, s *Store) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(s, ledger.WithLogger(quiet()))
	require.NoError(t, err)
	return l
}

func seed(t *testing.T, l *ledger.Ledger, sku string) ledger.Item {
	t.Helper()
	item, err := l.CreateItem(context.Background(), ledger.NewItem{SKU: sku, Name: "Item " + sku})
	require.NoError(t, err)
	return item
}

// =============================================================================
// LEDGER ON SQLITE
// =============================================================================

func TestSQLite_RoundTripExample(t *testing.T) {
	// GIVEN: a ledger on an in-memory database
	ctx := context.Background()
	s := openStore(t, ":memory:")
	l := newLedger(t, s)
	item := seed(t, l, "RICE")

	// WHEN: 100 @ 200c, 50 @ 300c, distribute 30
	_, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("100"), UnitCost: 200, Supplier: "Acme"}, ledger.Meta{Actor: "clerk"})
	require.NoError(t, err)
	_, err = l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("50"), UnitCost: 300}, ledger.Meta{})
	require.NoError(t, err)
	rc, err := l.RecordDistribution(ctx, item.ID, ledger.Distribution{Quantity: q("30"), Reason: ledger.ReasonClient}, ledger.Meta{Notes: "weekly pantry"})
	require.NoError(t, err)

	// THEN: values survive the trip through SQL
	snap, err := s.Item(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, snap.QuantityOnHand.Equal(q("120")))
	assert.Equal(t, money.Cents(28010), snap.CostBasis)

	tx, err := s.Transaction(ctx, rc.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindDistribution, tx.Kind)
	assert.True(t, tx.QuantityChange.Equal(q("-30")))
	assert.Equal(t, money.Cents(233), tx.UnitCost)
	assert.Equal(t, money.Cents(6990), tx.COGS())
	assert.Equal(t, ledger.ReasonClient, tx.Reason)
	assert.Equal(t, "weekly pantry", tx.Notes)
	assert.Equal(t, rc.Transaction.OccurredAt, tx.OccurredAt)

	history, err := l.GetHistory(ctx, item.ID, ledger.Page{})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, rc.Transaction.ID, history[0].ID)
	assert.Equal(t, "Acme", history[2].Supplier)
	assert.Equal(t, "clerk", history[2].Actor)

	assert.NoError(t, l.CheckIntegrity(ctx))
}

func TestSQLite_VoidAndReopen(t *testing.T) {
	// GIVEN: a file database with a voided purchase
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inventory.db")
	s, err := New(path, WithLogger(quiet()))
	require.NoError(t, err)
	l := newLedger(t, s)
	item := seed(t, l, "BEANS")
	p, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("100"), UnitCost: 200}, ledger.Meta{})
	require.NoError(t, err)
	res, err := l.VoidTransaction(ctx, p.Transaction.ID, "duplicate invoice", ledger.Meta{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// WHEN: the database is reopened
	s2 := openStore(t, path)
	l2 := newLedger(t, s2)

	// THEN: state, flags and the correction link are intact
	assert.NoError(t, l2.CheckIntegrity(ctx))
	snap, err := l2.GetSnapshot(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, snap.QuantityOnHand.IsZero())
	assert.Equal(t, money.Cents(0), snap.CostBasis)

	orig, err := l2.GetTransaction(ctx, p.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, orig.Voided)
	corr, err := l2.GetTransaction(ctx, res.Correction.ID)
	require.NoError(t, err)
	require.NotNil(t, corr.CorrectsID)
	assert.Equal(t, p.Transaction.ID, *corr.CorrectsID)
	assert.Equal(t, ledger.ReasonVoid, corr.Reason)

	_, err = l2.VoidTransaction(ctx, p.Transaction.ID, "again", ledger.Meta{})
	assert.ErrorIs(t, err, ledger.ErrAlreadyVoided)
}

// =============================================================================
// STORAGE-LEVEL GUARDS
// =============================================================================

func TestSQLite_CheckConstraintRejectsWrongSign(t *testing.T) {
	// GIVEN: a row built without going through the ledger
	ctx := context.Background()
	s := openStore(t, ":memory:")
	item := seed(t, newLedger(t, s), "SIGN")

	bad := []ledger.Transaction{
		{ItemID: item.ID, Kind: ledger.KindDistribution, QuantityChange: q("5"), Reason: ledger.ReasonClient},
		{ItemID: item.ID, Kind: ledger.KindPurchase, QuantityChange: q("-5")},
		{ItemID: item.ID, Kind: ledger.KindDonation, QuantityChange: q("1"), FinancialImpact: 100},
		{ItemID: item.ID, Kind: ledger.KindDistribution, QuantityChange: q("-1")},
		{ItemID: item.ID, Kind: ledger.KindCorrection, QuantityChange: q("1"), Reason: ledger.ReasonVoid},
	}
	for i, tx := range bad {
		tx.IdempotencyKey = fmt.Sprintf("bad-%d", i)
		tx.Actor = "test"
		tx.OccurredAt = time.Now()

		// WHEN: inserting it directly
		err := s.WithTx(ctx, func(uow ledger.UnitOfWork) error {
			_, err := uow.InsertTransaction(ctx, tx)
			return err
		})

		// THEN: SQLite refuses it
		assert.ErrorIs(t, err, ledger.ErrConstraint, "row %d", i)
		assert.True(t, ledger.IsValidation(err))
	}
}

func TestSQLite_SnapshotCannotGoNegative(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")
	item := seed(t, newLedger(t, s), "NEG")

	item.CostBasis = -1
	err := s.WithTx(ctx, func(uow ledger.UnitOfWork) error {
		return uow.UpdateItem(ctx, item)
	})

	assert.ErrorIs(t, err, ledger.ErrConstraint)
}

func TestSQLite_TransactionsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")
	l := newLedger(t, s)
	item := seed(t, l, "LOCKED")
	rc, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 100}, ledger.Meta{})
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", rc.Transaction.ID)
	assert.Error(t, err)

	_, err = s.db.ExecContext(ctx, "UPDATE transactions SET quantity_change = '2' WHERE id = ?", rc.Transaction.ID)
	assert.Error(t, err)

	_, err = s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", item.ID)
	assert.Error(t, err)

	// the one allowed update, then never back
	_, err = s.db.ExecContext(ctx, "UPDATE transactions SET voided = 1 WHERE id = ?", rc.Transaction.ID)
	assert.NoError(t, err)
	_, err = s.db.ExecContext(ctx, "UPDATE transactions SET voided = 0 WHERE id = ?", rc.Transaction.ID)
	assert.Error(t, err)
}

func TestSQLite_MarkVoided(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")
	l := newLedger(t, s)
	item := seed(t, l, "MARK")
	rc, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 100}, ledger.Meta{})
	require.NoError(t, err)

	mark := func(id ledger.TransactionID) error {
		return s.WithTx(ctx, func(uow ledger.UnitOfWork) error { return uow.MarkVoided(ctx, id) })
	}

	assert.NoError(t, mark(rc.Transaction.ID))
	assert.ErrorIs(t, mark(rc.Transaction.ID), ledger.ErrAlreadyVoided)
	assert.ErrorIs(t, mark(999), ledger.ErrTransactionNotFound)
}

func TestSQLite_DuplicateKeys(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")
	l := newLedger(t, s)
	item := seed(t, l, "DUP")

	_, err := l.CreateItem(ctx, ledger.NewItem{SKU: "DUP", Name: "Again"})
	assert.ErrorIs(t, err, ledger.ErrDuplicateSKU)

	meta := ledger.Meta{IdempotencyKey: "k-1"}
	_, err = l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 1}, meta)
	require.NoError(t, err)
	_, err = l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 1}, meta)
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	_, err = l.CreateCategory(ctx, ledger.Category{Name: "Food"})
	require.NoError(t, err)
	_, err = l.CreateCategory(ctx, ledger.Category{Name: "Food"})
	assert.ErrorIs(t, err, ledger.ErrDuplicateCategory)
}

func TestSQLite_BusyIsRetryable(t *testing.T) {
	// GIVEN: another connection holding the write lock
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "busy.db")
	holder := openStore(t, path)
	waiter := openStore(t, path, WithBusyTimeout(50*time.Millisecond))

	conn, err := holder.db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)
	defer conn.ExecContext(ctx, "ROLLBACK")

	// WHEN: a second writer starts
	err = waiter.WithTx(ctx, func(ledger.UnitOfWork) error { return nil })

	// THEN: it gives up after the timeout with a retryable error
	assert.ErrorIs(t, err, ledger.ErrStoreBusy)
	assert.True(t, ledger.IsRetryable(err))
	assert.False(t, ledger.IsValidation(err))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestSQLite_SearchTreatsWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")
	l := newLedger(t, s)
	for _, in := range []ledger.NewItem{
		{SKU: "A_1", Name: "Underscore"},
		{SKU: "AB1", Name: "Plain"},
		{SKU: "Z-9", Name: "50% off"},
	} {
		_, err := l.CreateItem(ctx, in)
		require.NoError(t, err)
	}

	got, err := l.SearchByPrefix(ctx, "a_", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A_1", got[0].SKU)

	got, err = l.SearchByPrefix(ctx, "50%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Z-9", got[0].SKU)

	got, err = l.SearchByPrefix(ctx, "' OR 1=1 --", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_ItemsFilter(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")
	l := newLedger(t, s)
	cat, err := l.CreateCategory(ctx, ledger.Category{Name: "Dairy", Description: "cold"})
	require.NoError(t, err)
	milk, err := l.CreateItem(ctx, ledger.NewItem{SKU: "MILK", Name: "Milk", CategoryID: &cat.ID})
	require.NoError(t, err)
	bread := seed(t, l, "BREAD")
	_, err = l.RecordPurchase(ctx, bread.ID, ledger.Purchase{Quantity: q("25"), UnitCost: 150}, ledger.Meta{})
	require.NoError(t, err)

	low, err := l.ItemsBelowThreshold(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, milk.ID, low[0].ID)

	dairy, err := l.ListItems(ctx, ledger.ItemFilter{CategoryID: &cat.ID})
	require.NoError(t, err)
	require.Len(t, dairy, 1)
	require.NotNil(t, dairy[0].CategoryID)
	assert.Equal(t, cat.ID, *dairy[0].CategoryID)

	cats, err := l.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "cold", cats[0].Description)
}

func TestSQLite_SummaryMatchesReference(t *testing.T) {
	// GIVEN: a mix of every kind, with a voided row
	ctx := context.Background()
	s := openStore(t, ":memory:")
	l := newLedger(t, s)
	a := seed(t, l, "A")
	b := seed(t, l, "B")
	record := func(id ledger.ItemID, ev ledger.Event) ledger.Receipt {
		rc, err := l.Record(ctx, id, ev, ledger.Meta{})
		require.NoError(t, err)
		return rc
	}
	record(a.ID, ledger.Purchase{Quantity: q("10.5"), UnitCost: 199})
	record(b.ID, ledger.Purchase{Quantity: q("3"), UnitCost: 1000})
	record(a.ID, ledger.Donation{Quantity: q("4.25"), FairMarketValue: 300})
	record(a.ID, ledger.Distribution{Quantity: q("2.75"), Reason: ledger.ReasonClient})
	spoiled := record(b.ID, ledger.Distribution{Quantity: q("1"), Reason: ledger.ReasonSpoilage})
	record(b.ID, ledger.Distribution{Quantity: q("1"), Reason: ledger.ReasonInternal})
	_, err := l.VoidTransaction(ctx, spoiled.Transaction.ID, "miscount", ledger.Meta{})
	require.NoError(t, err)

	// WHEN: computing the summary in SQL and in Go
	got, err := l.Summary(ctx, ledger.SummaryRange{})
	require.NoError(t, err)

	var txs []ledger.Transaction
	for _, id := range []ledger.ItemID{a.ID, b.ID} {
		part, err := s.Transactions(ctx, id)
		require.NoError(t, err)
		txs = append(txs, part...)
	}
	items, err := s.Items(ctx, ledger.ItemFilter{})
	require.NoError(t, err)
	want := ledger.Summarize(ledger.SummaryRange{}, txs, items)

	// THEN: they agree
	assert.Equal(t, want.Purchases.Count, got.Purchases.Count)
	assert.True(t, want.Purchases.Quantity.Equal(got.Purchases.Quantity))
	assert.Equal(t, want.Purchases.Amount, got.Purchases.Amount)
	assert.Equal(t, want.Donations.Amount, got.Donations.Amount)
	assert.Equal(t, want.Distributions.Count, got.Distributions.Count)
	assert.True(t, want.Distributions.Quantity.Equal(got.Distributions.Quantity))
	assert.Equal(t, want.Distributions.Amount, got.Distributions.Amount)
	assert.Equal(t, len(want.ByReason), len(got.ByReason))
	assert.NotContains(t, got.ByReason, ledger.ReasonSpoilage)
	assert.Equal(t, want.InventoryValue, got.InventoryValue)
}

// =============================================================================
// BACKUP
// =============================================================================

func TestSQLite_OnlineBackup(t *testing.T) {
	// GIVEN: a WAL database with committed history
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, filepath.Join(dir, "live.db"))
	l := newLedger(t, s)
	item := seed(t, l, "BACKED-UP")
	_, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("7"), UnitCost: 321}, ledger.Meta{})
	require.NoError(t, err)

	// WHEN: backing up while the store stays open
	dest := filepath.Join(dir, "copy.db")
	require.NoError(t, l.Backup(ctx, dest))

	// THEN: the copy opens, reconciles and has the data
	copyStore := openStore(t, dest)
	cl := newLedger(t, copyStore)
	assert.NoError(t, cl.CheckIntegrity(ctx))
	snap, err := cl.GetSnapshotBySKU(ctx, "BACKED-UP")
	require.NoError(t, err)
	assert.True(t, snap.QuantityOnHand.Equal(q("7")))
	assert.Equal(t, money.Cents(2247), snap.CostBasis)

	// AND: the original keeps working
	_, err = l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 1}, ledger.Meta{})
	assert.NoError(t, err)

	// AND: an existing destination or the live file is refused
	assert.ErrorIs(t, l.Backup(ctx, dest), ledger.ErrBackupExists)
	assert.ErrorIs(t, l.Backup(ctx, filepath.Join(dir, "live.db")), ledger.ErrBackupExists)
}

func TestSQLite_BackupDuringWrites(t *testing.T) {
	// GIVEN: a writer recording 1 @ 100c purchases in a loop
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, filepath.Join(dir, "live.db"))
	l := newLedger(t, s)
	item := seed(t, l, "BUSY")

	stop := make(chan struct{})
	written := make(chan int)
	go func() {
		n := 0
		for {
			select {
			case <-stop:
				written <- n
				return
			default:
			}
			if _, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 100}, ledger.Meta{}); err == nil {
				n++
			}
		}
	}()

	// WHEN: several backups are taken while it runs
	var dests []string
	var errs []error
	for i := 0; i < 3; i++ {
		dest := filepath.Join(dir, fmt.Sprintf("copy-%d.db", i))
		errs = append(errs, l.Backup(ctx, dest))
		dests = append(dests, dest)
		time.Sleep(5 * time.Millisecond)
	}
	close(stop)
	total := <-written

	// THEN: every copy is a consistent point in time
	for i, dest := range dests {
		require.NoError(t, errs[i])
		cs := openStore(t, dest)
		cl := newLedger(t, cs)
		assert.NoError(t, cl.CheckIntegrity(ctx), dest)

		snap, err := cl.GetSnapshotBySKU(ctx, "BUSY")
		require.NoError(t, err)
		n := snap.QuantityOnHand.IntPart()
		assert.LessOrEqual(t, n, int64(total))
		assert.Equal(t, money.Cents(n*100), snap.CostBasis)

		txs, err := cs.Transactions(ctx, snap.ID)
		require.NoError(t, err)
		assert.Len(t, txs, int(n))
	}

	// AND: no unverified file is left behind
	tmps, err := filepath.Glob(filepath.Join(dir, "*"+tmpSuffix))
	require.NoError(t, err)
	assert.Empty(t, tmps)
}

func TestSQLite_BackupReplacesStaleTemporaryFile(t *testing.T) {
	// GIVEN: a torn temporary file from an interrupted backup
	ctx := context.Background()
	dir := t.TempDir()
	l := newLedger(t, openStore(t, filepath.Join(dir, "live.db")))
	seed(t, l, "STALE")
	dest := filepath.Join(dir, "nightly.db")
	require.NoError(t, os.WriteFile(dest+tmpSuffix, []byte("not a database"), 0o644))

	// WHEN: the backup runs again
	require.NoError(t, l.Backup(ctx, dest))

	// THEN: the final file is the verified copy and the temporary is gone
	assert.NoError(t, verify(ctx, dest))
	_, err := os.Stat(dest + tmpSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestSQLite_BackupCancelledLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	l := newLedger(t, openStore(t, filepath.Join(dir, "live.db")))
	seed(t, l, "CANCEL")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(dir, "cancelled.db")
	assert.Error(t, l.Backup(ctx, dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "cancelled")
	}
}

// =============================================================================
// RESTORE
// =============================================================================

func TestSQLite_RestoreRollsBackToBackup(t *testing.T) {
	// GIVEN: a backup taken after 7 @ 321c
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, filepath.Join(dir, "live.db"))
	l := newLedger(t, s)
	item := seed(t, l, "RESTORED")
	_, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("7"), UnitCost: 321}, ledger.Meta{})
	require.NoError(t, err)
	backup := filepath.Join(dir, "before.db")
	require.NoError(t, l.Backup(ctx, backup))

	// AND: more history written afterwards
	_, err = l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("3"), UnitCost: 100}, ledger.Meta{})
	require.NoError(t, err)
	seed(t, l, "LATER")

	// WHEN: the backup is restored into the open store
	require.NoError(t, l.Restore(ctx, backup))

	// THEN: the store is back at the backup's point in time
	snap, err := l.GetSnapshot(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, snap.QuantityOnHand.Equal(q("7")))
	assert.Equal(t, money.Cents(2247), snap.CostBasis)
	_, err = l.GetSnapshotBySKU(ctx, "LATER")
	assert.ErrorIs(t, err, ledger.ErrItemNotFound)

	// AND: writes continue on the restored data
	rc, err := l.RecordDistribution(ctx, item.ID, ledger.Distribution{Quantity: q("2"), Reason: ledger.ReasonClient}, ledger.Meta{})
	require.NoError(t, err)
	assert.True(t, rc.Item.QuantityOnHand.Equal(q("5")))
	assert.NoError(t, l.CheckIntegrity(ctx))
}

func TestSQLite_RestoreLiftsHalt(t *testing.T) {
	// GIVEN: a good backup, then drift that halts writes
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, filepath.Join(dir, "live.db"))
	l := newLedger(t, s)
	item := seed(t, l, "DRIFT")
	_, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("4"), UnitCost: 250}, ledger.Meta{})
	require.NoError(t, err)
	backup := filepath.Join(dir, "good.db")
	require.NoError(t, l.Backup(ctx, backup))

	_, err = s.db.ExecContext(ctx, "UPDATE items SET cost_basis_cents = 1 WHERE id = ?", item.ID)
	require.NoError(t, err)
	require.True(t, ledger.IsIntegrity(l.CheckIntegrity(ctx)))

	// WHEN: the good backup is restored
	require.NoError(t, l.Restore(ctx, backup))

	// THEN: the halt is lifted and writes succeed
	assert.NoError(t, l.Halted())
	_, err = l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 250}, ledger.Meta{})
	assert.NoError(t, err)
}

func TestSQLite_RestoreRefusesBadSources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	live := filepath.Join(dir, "live.db")
	l := newLedger(t, openStore(t, live))
	item := seed(t, l, "KEEP")

	assert.ErrorIs(t, l.Restore(ctx, filepath.Join(dir, "missing.db")), ledger.ErrBackupNotFound)
	assert.ErrorIs(t, l.Restore(ctx, live), ledger.ErrInvalidBackupName)

	garbage := filepath.Join(dir, "garbage.db")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not sqlite"), 0o644))
	assert.Error(t, l.Restore(ctx, garbage))

	// the live database is untouched
	_, err := l.GetSnapshot(ctx, item.ID)
	assert.NoError(t, err)
}

// =============================================================================
// RANGED HISTORY
// =============================================================================

func TestSQLite_TransactionsInRange(t *testing.T) {
	// GIVEN: activity on two items across three days
	ctx := context.Background()
	s := openStore(t, ":memory:")
	l := newLedger(t, s)
	beans := seed(t, l, "BEANS")
	rice := seed(t, l, "RICE")
	day := func(d int) time.Time { return time.Date(2025, 1, d, 12, 0, 0, 0, time.UTC) }
	record := func(id ledger.ItemID, when time.Time) ledger.TransactionID {
		rc, err := l.RecordPurchase(ctx, id, ledger.Purchase{Quantity: q("1"), UnitCost: 100}, ledger.Meta{OccurredAt: when})
		require.NoError(t, err)
		return rc.Transaction.ID
	}
	record(beans.ID, day(1))
	b2 := record(beans.ID, day(2))
	r2 := record(rice.ID, day(2))
	record(rice.ID, day(3))

	// WHEN: asking for day 2 only
	txs, err := l.TransactionsInRange(ctx, ledger.SummaryRange{From: day(2).Add(-time.Hour), To: day(2).Add(time.Hour)}, ledger.Page{})
	require.NoError(t, err)

	// THEN: both items appear, newest first
	require.Len(t, txs, 2)
	assert.Equal(t, r2, txs[0].ID)
	assert.Equal(t, b2, txs[1].ID)

	// AND: open ends and paging work
	all, err := l.TransactionsInRange(ctx, ledger.SummaryRange{}, ledger.Page{Limit: 3, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, r2, all[0].ID)
}

func TestSQLite_LowerCaseReasonIsStored(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, openStore(t, ":memory:"))
	item := seed(t, l, "LOWER")
	_, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("5"), UnitCost: 100}, ledger.Meta{})
	require.NoError(t, err)

	rc, err := l.RecordDistribution(ctx, item.ID, ledger.Distribution{Quantity: q("1"), Reason: "client"}, ledger.Meta{})
	require.NoError(t, err)

	tx, err := l.GetTransaction(ctx, rc.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReasonClient, tx.Reason)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
