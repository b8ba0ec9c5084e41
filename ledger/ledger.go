/*
ledger.go - Ledger handle and the record path

PURPOSE:
  The Ledger is the one write path into the store. Every mutation takes the
  ledger mutex and runs inside a single store transaction:

    read item -> costing computes next position -> insert row -> write snapshot

  so "read snapshot, compute, write both" never interleaves with another
  write. Reads go straight to the store and run concurrently.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: transactions are inserted, never edited or deleted
  2. RECONCILED: stored snapshot == fold of the item's transaction effects
  3. NON-NEGATIVE: quantity and cost basis never drop below zero
  4. ATOMIC: a rejected operation writes nothing

LIFECYCLE:
  One Ledger per process, built with New and passed to whoever needs it.
  There is no package-level default. A nil Ledger returns ErrNotInitialized
  from every method. A failed CheckIntegrity halts the Ledger: later writes
  return the integrity error until the process is restarted on a repaired
  database.

SEE ALSO:
  - items.go: item and category management
  - void.go: compensating corrections
  - reconcile.go: startup integrity check
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/costing"
	"github.com/warp/inventory-ledger/money"
)

// DefaultActor is recorded when Meta.Actor is empty.
const DefaultActor = "system"

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	halted error
}

type Option func(*Ledger)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithKeyGenerator overrides the idempotency key generator, for tests.
func WithKeyGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// New builds a Ledger over store.
func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrNotInitialized)
	}
	l := &Ledger{
		store: store,
		log:   logrus.StandardLogger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Ledger) ready() error {
	if l == nil || l.store == nil {
		return ErrNotInitialized
	}
	return nil
}

// Halted returns the integrity error that stopped writes, or nil.
func (l *Ledger) Halted() error {
	if l == nil {
		return ErrNotInitialized
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}

// commit runs fn as the only writer.
func (l *Ledger) commit(ctx context.Context, fn func(UnitOfWork) error) error {
	if err := l.ready(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted != nil {
		return l.halted
	}
	return l.store.WithTx(ctx, fn)
}

func (l *Ledger) timestamp(t time.Time) time.Time {
	if t.IsZero() {
		t = l.now()
	}
	return t.UTC()
}

// stamp copies audit metadata onto a row.
func (l *Ledger) stamp(tx *Transaction, meta Meta) {
	tx.Actor = meta.Actor
	if tx.Actor == "" {
		tx.Actor = DefaultActor
	}
	if tx.Notes == "" {
		tx.Notes = meta.Notes
	}
	tx.IdempotencyKey = meta.IdempotencyKey
	if tx.IdempotencyKey == "" {
		tx.IdempotencyKey = l.newID()
	}
	tx.OccurredAt = l.timestamp(meta.OccurredAt)
}

// =============================================================================
// RECORD
// =============================================================================

// Receipt is a committed transaction and the item snapshot it produced.
type Receipt struct {
	Transaction Transaction
	Item        Item
	Depletion   *costing.Depletion // distributions only
}

// RecordPurchase records stock bought at e.UnitCost per unit. The total cost
// is quantity x unit cost truncated to the cent.
func (l *Ledger) RecordPurchase(ctx context.Context, itemID ItemID, e Purchase, meta Meta) (Receipt, error) {
	return l.Record(ctx, itemID, e, meta)
}

// RecordDonation records stock received at zero cost. e.FairMarketValue is
// per unit and only feeds impact reporting.
func (l *Ledger) RecordDonation(ctx context.Context, itemID ItemID, e Donation, meta Meta) (Receipt, error) {
	return l.Record(ctx, itemID, e, meta)
}

// RecordDistribution removes stock at the current weighted-average cost.
func (l *Ledger) RecordDistribution(ctx context.Context, itemID ItemID, e Distribution, meta Meta) (Receipt, error) {
	return l.Record(ctx, itemID, e, meta)
}

// Record commits one event against an item.
func (l *Ledger) Record(ctx context.Context, itemID ItemID, ev Event, meta Meta) (Receipt, error) {
	if err := l.ready(); err != nil {
		return Receipt{}, err
	}
	var rc Receipt
	err := l.commit(ctx, func(uow UnitOfWork) error {
		item, err := uow.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.Active {
			return fmt.Errorf("%w: %s", ErrItemInactive, item.SKU)
		}

		tx, next, depletion, err := apply(item, ev)
		if err != nil {
			return err
		}
		tx.ItemID = item.ID
		l.stamp(&tx, meta)
		if !tx.Kind.ValidSign(tx.QuantityChange) {
			return fmt.Errorf("%w: %s with quantity change %s", ErrInvalidEvent, tx.Kind, tx.QuantityChange)
		}

		tx, err = uow.InsertTransaction(ctx, tx)
		if err != nil {
			return err
		}
		item = item.withPosition(next)
		item.UpdatedAt = tx.OccurredAt
		if err := uow.UpdateItem(ctx, item); err != nil {
			return err
		}
		rc = Receipt{Transaction: tx, Item: item, Depletion: depletion}
		return nil
	})
	if err != nil {
		l.log.WithFields(logrus.Fields{
			"item_id": itemID,
			"kind":    kindOf(ev),
		}).WithError(err).Debug("transaction rejected")
		return Receipt{}, err
	}

	entry := l.log.WithFields(logrus.Fields{
		"tx_id":      rc.Transaction.ID,
		"item_id":    rc.Item.ID,
		"sku":        rc.Item.SKU,
		"kind":       rc.Transaction.Kind,
		"qty_change": rc.Transaction.QuantityChange.String(),
		"impact":     int64(rc.Transaction.FinancialImpact),
		"actor":      rc.Transaction.Actor,
	})
	if d := rc.Depletion; d != nil && d.Clamped {
		entry.WithField("cogs", int64(d.COGS)).Warn("distribution cost clamped to remaining cost basis")
	}
	entry.Info("transaction recorded")
	return rc, nil
}

func kindOf(ev Event) Kind {
	if ev == nil {
		return ""
	}
	return ev.Kind()
}

// apply builds the row for ev and the position it leads to.
func apply(item Item, ev Event) (Transaction, costing.Position, *costing.Depletion, error) {
	pos := item.Position()
	switch e := ev.(type) {
	case Purchase:
		if e.UnitCost < 0 {
			return Transaction{}, pos, nil, ErrNegativeCost
		}
		cost := money.MulTrunc(e.Quantity, e.UnitCost)
		next, err := costing.Intake(pos, e.Quantity, cost)
		if err != nil {
			return Transaction{}, pos, nil, err
		}
		return Transaction{
			Kind:            KindPurchase,
			QuantityChange:  e.Quantity,
			UnitCost:        e.UnitCost,
			FinancialImpact: cost,
			Supplier:        e.Supplier,
		}, next, nil, nil

	case Donation:
		if e.FairMarketValue < 0 {
			return Transaction{}, pos, nil, ErrNegativeCost
		}
		next, err := costing.Intake(pos, e.Quantity, 0)
		if err != nil {
			return Transaction{}, pos, nil, err
		}
		return Transaction{
			Kind:            KindDonation,
			QuantityChange:  e.Quantity,
			FairMarketValue: money.MulTrunc(e.Quantity, e.FairMarketValue),
			Donor:           e.Donor,
		}, next, nil, nil

	case Distribution:
		reason, err := ParseReason(string(e.Reason))
		if err != nil {
			return Transaction{}, pos, nil, err
		}
		next, d, err := costing.Distribute(pos, e.Quantity)
		if err != nil {
			return Transaction{}, pos, nil, err
		}
		return Transaction{
			Kind:            KindDistribution,
			QuantityChange:  e.Quantity.Neg(),
			UnitCost:        d.UnitCost,
			FinancialImpact: -d.COGS,
			Reason:          reason,
		}, next, &d, nil
	}
	return Transaction{}, pos, nil, fmt.Errorf("%w: %T", ErrInvalidEvent, ev)
}

// =============================================================================
// HISTORY
// =============================================================================

// GetHistory returns an item's transactions newest-first. Voided originals
// and their corrections are included; callers filter on the flags.
func (l *Ledger) GetHistory(ctx context.Context, itemID ItemID, page Page) ([]Transaction, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	if _, err := l.store.Item(ctx, itemID); err != nil {
		return nil, err
	}
	return l.store.History(ctx, itemID, page.normalized())
}

// TransactionsInRange returns transactions of every item that occurred in r,
// newest-first.
func (l *Ledger) TransactionsInRange(ctx context.Context, r SummaryRange, page Page) ([]Transaction, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}
	return l.store.TransactionsInRange(ctx, r, page.normalized())
}

func (l *Ledger) GetTransaction(ctx context.Context, id TransactionID) (Transaction, error) {
	if err := l.ready(); err != nil {
		return Transaction{}, err
	}
	return l.store.Transaction(ctx, id)
}

// =============================================================================
// BACKUP
// =============================================================================

// Backup writes a point-in-time copy of the store to dest. It does not take
// the write path; the store's online backup is consistent on its own.
func (l *Ledger) Backup(ctx context.Context, dest string) error {
	if err := l.ready(); err != nil {
		return err
	}
	b, ok := l.store.(Backuper)
	if !ok {
		return ErrStoreRequired
	}
	start := l.now()
	if err := b.Backup(ctx, dest); err != nil {
		l.log.WithField("dest", dest).WithError(err).Error("backup failed")
		return err
	}
	l.log.WithFields(logrus.Fields{
		"dest":     dest,
		"duration": l.now().Sub(start).String(),
	}).Info("backup written")
	return nil
}

// Restore replaces the store's contents with the backup at src, then runs
// the integrity check on the result. Writes wait while it runs. A passing
// check lifts any halt; a failing one halts writes as CheckIntegrity does.
func (l *Ledger) Restore(ctx context.Context, src string) error {
	if err := l.ready(); err != nil {
		return err
	}
	r, ok := l.store.(Restorer)
	if !ok {
		return ErrStoreRequired
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.now()
	if err := r.Restore(ctx, src); err != nil {
		l.log.WithField("src", src).WithError(err).Error("restore failed")
		return err
	}
	if err := l.check(ctx); err != nil {
		return err
	}
	if l.halted != nil {
		l.log.Info("restored ledger passed the integrity check, writes resumed")
	}
	l.halted = nil
	l.log.WithFields(logrus.Fields{
		"src":      src,
		"duration": l.now().Sub(start).String(),
	}).Info("backup restored")
	return nil
}
