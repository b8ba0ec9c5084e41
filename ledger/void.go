/*
void.go - Compensating corrections

STATE MACHINE (per transaction):

  ACTIVE ──VoidTransaction──> VOIDED   (terminal)

  A second void is refused with ErrAlreadyVoided. CORRECTION rows are born
  ACTIVE and can never be voided: undoing a void would need a correction of
  a correction, and the chain would no longer be one hop.

ONE UNIT OF WORK:
  1. Load the original                   -> ErrTransactionNotFound
  2. Guards                              -> ErrAlreadyVoided, ErrCannotVoidCorrection
  3. Inverse against the CURRENT snapshot (costing.Reverse)
                                         -> ErrInsufficientStock, ErrNegativeCostBasis
  4. Insert CORRECTION: negated quantity, financial impact and fair market
     value; same unit cost; reason VOID; CorrectsID = original
  5. Flip original.voided 0 -> 1
  6. Write the snapshot

  No temporal reconstruction: voiding an old purchase after most of its
  stock was distributed fails rather than rewriting later COGS.

EXAMPLE:
  Purchase 100 @ 200c   -> qty 100, basis 20000
  Void it               -> CORRECTION qty -100, impact -20000
                           qty 0, basis 0; original.voided = true
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/costing"
)

type State string

const (
	StateActive State = "ACTIVE"
	StateVoided State = "VOIDED"
)

// VoidResult is what a successful void produced.
type VoidResult struct {
	Item       Item
	Original   Transaction // with Voided set
	Correction Transaction
}

// voidKey is the idempotency key of the correction for id. At most one
// correction per original can exist at the storage layer too.
func voidKey(id TransactionID) string {
	return fmt.Sprintf("void:%d", id)
}

// VoidTransaction reverses a prior transaction with a CORRECTION row.
// reason is required and becomes the correction's notes.
func (l *Ledger) VoidTransaction(ctx context.Context, id TransactionID, reason string, meta Meta) (VoidResult, error) {
	if err := l.ready(); err != nil {
		return VoidResult{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return VoidResult{}, &VoidError{TransactionID: id, Err: ErrVoidReasonRequired}
	}

	var res VoidResult
	err := l.commit(ctx, func(uow UnitOfWork) error {
		orig, err := uow.Transaction(ctx, id)
		if err != nil {
			return err
		}
		if orig.Voided {
			return ErrAlreadyVoided
		}
		if orig.Kind == KindCorrection {
			return ErrCannotVoidCorrection
		}

		item, err := uow.Item(ctx, orig.ItemID)
		if err != nil {
			return err
		}
		next, err := costing.Reverse(item.Position(), orig.Effect())
		if err != nil {
			return err
		}

		correction := Transaction{
			ItemID:          orig.ItemID,
			Kind:            KindCorrection,
			QuantityChange:  orig.QuantityChange.Neg(),
			UnitCost:        orig.UnitCost,
			FairMarketValue: -orig.FairMarketValue,
			FinancialImpact: -orig.FinancialImpact,
			Reason:          ReasonVoid,
			Supplier:        orig.Supplier,
			Donor:           orig.Donor,
			Notes:           reason,
			CorrectsID:      &orig.ID,
		}
		if meta.IdempotencyKey == "" {
			meta.IdempotencyKey = voidKey(orig.ID)
		}
		l.stamp(&correction, meta)

		correction, err = uow.InsertTransaction(ctx, correction)
		if err != nil {
			return err
		}
		if err := uow.MarkVoided(ctx, orig.ID); err != nil {
			return err
		}
		item = item.withPosition(next)
		item.UpdatedAt = correction.OccurredAt
		if err := uow.UpdateItem(ctx, item); err != nil {
			return err
		}

		orig.Voided = true
		res = VoidResult{Item: item, Original: orig, Correction: correction}
		return nil
	})
	if err != nil {
		if IsValidation(err) {
			err = &VoidError{TransactionID: id, Err: err}
		}
		l.log.WithField("tx_id", id).WithError(err).Debug("void rejected")
		return VoidResult{}, err
	}

	l.log.WithFields(logrus.Fields{
		"tx_id":         res.Original.ID,
		"correction_id": res.Correction.ID,
		"item_id":       res.Item.ID,
		"kind":          res.Original.Kind,
		"reason":        reason,
		"actor":         res.Correction.Actor,
	}).Warn("transaction voided")
	return res, nil
}

