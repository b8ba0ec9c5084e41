/*
reconcile.go - Startup integrity check

The stored item snapshot is a cache. The log is the truth. CheckIntegrity
replays every item's transactions through costing.Replay and compares the
result with the stored quantity and cost basis. It also checks the shape of
the log:

  - every row has the sign its kind requires
  - every CORRECTION points at a voided row of the same item
  - every voided row has exactly one CORRECTION

Any problem halts the Ledger: writes return the *IntegrityError until the
process restarts on a repaired database or a Restore passes the check.
Reads keep working so an operator can inspect the damage.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/costing"
)

// CheckIntegrity verifies every item against its transaction log.
//
// A failure halts writes. The halt is sticky: a later passing check does
// not lift it. Only a restart or a successful Restore clears it.
func (l *Ledger) CheckIntegrity(ctx context.Context) error {
	if err := l.ready(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(ctx)
}

// check runs the integrity check. l.mu must be held.
func (l *Ledger) check(ctx context.Context) error {
	items, err := l.store.Items(ctx, ItemFilter{})
	if err != nil {
		return err
	}

	var mismatches []Mismatch
	var rows int
	for _, item := range items {
		txs, err := l.store.Transactions(ctx, item.ID)
		if err != nil {
			return err
		}
		rows += len(txs)
		mismatches = append(mismatches, checkItem(item, txs)...)
	}

	if len(mismatches) == 0 {
		l.log.WithFields(logrus.Fields{
			"items":        len(items),
			"transactions": rows,
		}).Info("integrity check passed")
		return nil
	}

	ierr := &IntegrityError{Mismatches: mismatches}
	l.halted = ierr
	for _, m := range mismatches {
		l.log.WithFields(logrus.Fields{
			"item_id": m.ItemID,
			"sku":     m.SKU,
		}).Error(m.String())
	}
	l.log.WithField("mismatches", len(mismatches)).Error("integrity check failed, writes halted")
	return ierr
}

func checkItem(item Item, txs []Transaction) []Mismatch {
	var out []Mismatch
	problem := func(format string, args ...any) {
		out = append(out, Mismatch{
			ItemID: item.ID,
			SKU:    item.SKU,
			Stored: item.Position(),
			Detail: fmt.Sprintf(format, args...),
		})
	}

	effects := make([]costing.Effect, 0, len(txs))
	byID := make(map[TransactionID]Transaction, len(txs))
	corrections := make(map[TransactionID]int)
	for _, tx := range txs {
		effects = append(effects, tx.Effect())
		byID[tx.ID] = tx
		if !tx.Kind.ValidSign(tx.QuantityChange) {
			problem("transaction %d: %s with quantity change %s", tx.ID, tx.Kind, tx.QuantityChange)
		}
		if tx.Kind == KindCorrection {
			if tx.CorrectsID == nil {
				problem("correction %d references nothing", tx.ID)
				continue
			}
			corrections[*tx.CorrectsID]++
		}
	}

	for _, tx := range txs {
		switch {
		case tx.Kind == KindCorrection && tx.CorrectsID != nil:
			orig, ok := byID[*tx.CorrectsID]
			if !ok {
				problem("correction %d references transaction %d of another item", tx.ID, *tx.CorrectsID)
			} else if !orig.Voided {
				problem("correction %d references active transaction %d", tx.ID, orig.ID)
			}
		case tx.Voided && corrections[tx.ID] != 1:
			problem("voided transaction %d has %d corrections", tx.ID, corrections[tx.ID])
		}
	}

	replayed := costing.Replay(effects)
	if !replayed.Equal(item.Position()) {
		out = append(out, Mismatch{
			ItemID:   item.ID,
			SKU:      item.SKU,
			Stored:   item.Position(),
			Replayed: replayed,
		})
	}
	return out
}
