package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/money"
)

func TestSummary_ExcludesVoidedAndCorrections(t *testing.T) {
	// GIVEN: purchases, a donation, distributions and one voided distribution
	ctx := context.Background()
	l, _ := newTestLedger(t)
	item := newItem(t, l, "REPORT")
	purchase(t, l, item.ID, "100", 200)
	_, err := l.RecordDonation(ctx, item.ID, ledger.Donation{Quantity: q("20"), FairMarketValue: 300}, ledger.Meta{})
	require.NoError(t, err)
	kept := distribute(t, l, item.ID, "10")
	spoiled, err := l.RecordDistribution(ctx, item.ID, ledger.Distribution{Quantity: q("5"), Reason: ledger.ReasonSpoilage}, ledger.Meta{})
	require.NoError(t, err)
	_, err = l.VoidTransaction(ctx, spoiled.Transaction.ID, "found it", ledger.Meta{})
	require.NoError(t, err)

	// WHEN: summarising everything
	s, err := l.Summary(ctx, ledger.SummaryRange{})
	require.NoError(t, err)

	// THEN: the voided distribution and its correction do not count
	assert.Equal(t, 1, s.Purchases.Count)
	assert.Equal(t, money.Cents(20000), s.Purchases.Amount)
	assert.Equal(t, 1, s.Donations.Count)
	assert.Equal(t, money.Cents(6000), s.Donations.Amount)
	assert.Equal(t, 1, s.Distributions.Count)
	assert.True(t, s.Distributions.Quantity.Equal(q("10")))
	assert.Equal(t, kept.Transaction.COGS(), s.Distributions.Amount)
	assert.Contains(t, s.ByReason, ledger.ReasonClient)
	assert.NotContains(t, s.ByReason, ledger.ReasonSpoilage)

	// AND: inventory value is the live cost basis
	snap, err := l.GetSnapshot(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.CostBasis, s.InventoryValue)
}

func TestSummary_Range(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	item := newItem(t, l, "RANGED")
	jan := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 15, 12, 0, 0, 0, time.UTC)
	_, err := l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 100}, ledger.Meta{OccurredAt: jan})
	require.NoError(t, err)
	_, err = l.RecordPurchase(ctx, item.ID, ledger.Purchase{Quantity: q("1"), UnitCost: 500}, ledger.Meta{OccurredAt: feb})
	require.NoError(t, err)

	s, err := l.Summary(ctx, ledger.SummaryRange{
		From: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Purchases.Count)
	assert.Equal(t, money.Cents(500), s.Purchases.Amount)
}

func TestCounts(t *testing.T) {
	assert.True(t, ledger.Counts(ledger.Transaction{Kind: ledger.KindPurchase}))
	assert.False(t, ledger.Counts(ledger.Transaction{Kind: ledger.KindPurchase, Voided: true}))
	assert.False(t, ledger.Counts(ledger.Transaction{Kind: ledger.KindCorrection}))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		wantFrom time.Time
		wantTo   time.Time
		wantErr  bool
	}{
		{name: "open", from: "", to: ""},
		{
			name: "dates cover the whole last day", from: "2025-01-01", to: "2025-01-31",
			wantFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name: "timestamps are exact and UTC", from: "2025-01-01T10:00:00+02:00",
			wantFrom: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
		},
		{name: "garbage", from: "last week", wantErr: true},
		{name: "reversed", from: "2025-02-01", to: "2025-01-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ledger.ParseRange(tt.from, tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, ledger.ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantFrom.Equal(r.From), "from = %v", r.From)
			assert.True(t, tt.wantTo.Equal(r.To), "to = %v", r.To)
		})
	}
}
