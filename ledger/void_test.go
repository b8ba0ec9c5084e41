package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/money"
)

func TestVoid_PurchaseExample(t *testing.T) {
	// GIVEN: 100 @ 200c and nothing else
	ctx := context.Background()
	l, mem := newTestLedger(t)
	item := newItem(t, l, "RICE")
	rc := purchase(t, l, item.ID, "100", 200)

	// WHEN: the purchase is voided
	res, err := l.VoidTransaction(ctx, rc.Transaction.ID, "keyed against wrong SKU", ledger.Meta{Actor: "auditor"})
	require.NoError(t, err)

	// THEN: the item is back to empty
	assert.True(t, res.Item.QuantityOnHand.IsZero())
	assert.Equal(t, money.Cents(0), res.Item.CostBasis)

	// AND: exactly one CORRECTION row references the original
	c := res.Correction
	assert.Equal(t, ledger.KindCorrection, c.Kind)
	require.NotNil(t, c.CorrectsID)
	assert.Equal(t, rc.Transaction.ID, *c.CorrectsID)
	assert.True(t, c.QuantityChange.Equal(q("-100")))
	assert.Equal(t, money.Cents(-20000), c.FinancialImpact)
	assert.Equal(t, money.Cents(200), c.UnitCost)
	assert.Equal(t, ledger.ReasonVoid, c.Reason)
	assert.Equal(t, "keyed against wrong SKU", c.Notes)
	assert.Equal(t, "auditor", c.Actor)

	// AND: the original is flagged, not removed
	orig, err := l.GetTransaction(ctx, rc.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, orig.Voided)
	assert.Equal(t, ledger.StateVoided, orig.State())
	assert.True(t, res.Original.Voided)

	history, err := l.GetHistory(ctx, item.ID, ledger.Page{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, c.ID, history[0].ID)
	assertReconciled(t, l, mem, item.ID)
}

func TestVoid_DoubleVoidRefused(t *testing.T) {
	// GIVEN: a voided distribution
	ctx := context.Background()
	l, mem := newTestLedger(t)
	item := newItem(t, l, "BEANS")
	purchase(t, l, item.ID, "10", 100)
	d := distribute(t, l, item.ID, "4")
	_, err := l.VoidTransaction(ctx, d.Transaction.ID, "returned", ledger.Meta{})
	require.NoError(t, err)
	after, err := l.GetSnapshot(ctx, item.ID)
	require.NoError(t, err)

	// WHEN: voiding it again
	_, err = l.VoidTransaction(ctx, d.Transaction.ID, "returned", ledger.Meta{})

	// THEN: refused deterministically, snapshot untouched
	assert.ErrorIs(t, err, ledger.ErrAlreadyVoided)
	var voidErr *ledger.VoidError
	require.ErrorAs(t, err, &voidErr)
	assert.Equal(t, d.Transaction.ID, voidErr.TransactionID)
	assert.True(t, ledger.IsConflict(err))

	again, err := l.GetSnapshot(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, again.Position().Equal(after.Position()))

	txs, err := mem.Transactions(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestVoid_DistributionRestoresQuantityAndCost(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)
	item := newItem(t, l, "SOAP")
	purchase(t, l, item.ID, "100", 200)
	purchase(t, l, item.ID, "50", 300)
	d := distribute(t, l, item.ID, "30")

	res, err := l.VoidTransaction(ctx, d.Transaction.ID, "never left the shelf", ledger.Meta{})
	require.NoError(t, err)

	assert.True(t, res.Item.QuantityOnHand.Equal(q("150")))
	assert.Equal(t, money.Cents(35000), res.Item.CostBasis)
	assert.True(t, res.Correction.QuantityChange.Equal(q("30")))
	assert.Equal(t, money.Cents(6990), res.Correction.FinancialImpact)
	assertReconciled(t, l, mem, item.ID)
}

func TestVoid_DonationRestoresQuantityOnly(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)
	item := newItem(t, l, "BLANKETS")
	purchase(t, l, item.ID, "10", 1000)
	don, err := l.RecordDonation(ctx, item.ID, ledger.Donation{Quantity: q("5"), FairMarketValue: 1500}, ledger.Meta{})
	require.NoError(t, err)

	res, err := l.VoidTransaction(ctx, don.Transaction.ID, "duplicate entry", ledger.Meta{})
	require.NoError(t, err)

	assert.True(t, res.Item.QuantityOnHand.Equal(q("10")))
	assert.Equal(t, money.Cents(10000), res.Item.CostBasis)
	assert.Equal(t, money.Cents(0), res.Correction.FinancialImpact)
	assert.Equal(t, money.Cents(-7500), res.Correction.FairMarketValue)
	assertReconciled(t, l, mem, item.ID)
}

func TestVoid_PurchaseAlreadyConsumedIsRefused(t *testing.T) {
	// GIVEN: 10 bought, 8 given out
	ctx := context.Background()
	l, mem := newTestLedger(t)
	item := newItem(t, l, "JUICE")
	p := purchase(t, l, item.ID, "10", 150)
	distribute(t, l, item.ID, "8")
	before, err := l.GetSnapshot(ctx, item.ID)
	require.NoError(t, err)

	// WHEN: voiding the purchase
	_, err = l.VoidTransaction(ctx, p.Transaction.ID, "wrong supplier", ledger.Meta{})

	// THEN: the inverse would go negative, so nothing changes
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
	assert.True(t, ledger.IsValidation(err))

	after, err := l.GetSnapshot(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, after.Position().Equal(before.Position()))
	orig, err := l.GetTransaction(ctx, p.Transaction.ID)
	require.NoError(t, err)
	assert.False(t, orig.Voided)
	txs, err := mem.Transactions(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestVoid_Guards(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	item := newItem(t, l, "GUARDS")
	p := purchase(t, l, item.ID, "10", 100)

	t.Run("missing transaction", func(t *testing.T) {
		_, err := l.VoidTransaction(ctx, 9999, "typo", ledger.Meta{})
		assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
		assert.True(t, ledger.IsNotFound(err))
	})

	t.Run("reason required", func(t *testing.T) {
		_, err := l.VoidTransaction(ctx, p.Transaction.ID, "   ", ledger.Meta{})
		assert.ErrorIs(t, err, ledger.ErrVoidReasonRequired)
	})

	t.Run("correction cannot be voided", func(t *testing.T) {
		res, err := l.VoidTransaction(ctx, p.Transaction.ID, "test", ledger.Meta{})
		require.NoError(t, err)

		_, err = l.VoidTransaction(ctx, res.Correction.ID, "undo the undo", ledger.Meta{})
		assert.ErrorIs(t, err, ledger.ErrCannotVoidCorrection)
	})
}
