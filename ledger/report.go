/*
report.go - Reporting read contract

Every financial aggregate excludes voided rows and CORRECTION rows. A voided
original and its correction cancel in the snapshot, so leaving both out is
the same as counting neither; counting only one would report value that no
longer exists.

Summarize is the reference implementation over a slice of transactions. The
SQLite store computes the same figures in SQL; the two are tested against
each other.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/inventory-ledger/money"
)

// SummaryRange bounds OccurredAt, inclusive. Zero values are open ends.
type SummaryRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls in the range.
func (r SummaryRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// ErrInvalidRange is returned by ParseRange.
var ErrInvalidRange = errors.New("invalid date range")

// ParseRange builds a range from YYYY-MM-DD dates or RFC 3339 timestamps.
// Empty strings are open ends. A bare "to" date covers the whole day.
func ParseRange(from, to string) (SummaryRange, error) {
	var r SummaryRange
	if from != "" {
		t, _, err := parseBound(from)
		if err != nil {
			return r, err
		}
		r.From = t
	}
	if to != "" {
		t, dateOnly, err := parseBound(to)
		if err != nil {
			return r, err
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		r.To = t
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, fmt.Errorf("%w: to is before from", ErrInvalidRange)
	}
	return r, nil
}

func parseBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q (use YYYY-MM-DD or RFC 3339)", ErrInvalidRange, s)
	}
	return t.UTC(), false, nil
}

// Totals aggregates one kind (or one reason). Quantity is a magnitude.
// Amount is cost for purchases, fair market value for donations and COGS
// for distributions.
type Totals struct {
	Count    int
	Quantity decimal.Decimal
	Amount   money.Cents
}

func (t Totals) add(q decimal.Decimal, amount money.Cents) Totals {
	t.Count++
	t.Quantity = t.Quantity.Add(q.Abs())
	t.Amount += amount
	return t
}

type Summary struct {
	Range         SummaryRange
	Purchases     Totals
	Donations     Totals
	Distributions Totals
	ByReason      map[ReasonCode]Totals

	// InventoryValue is the current cost basis across all items. It is a
	// snapshot figure and ignores Range.
	InventoryValue money.Cents
}

// NewSummary returns a zeroed Summary for r.
func NewSummary(r SummaryRange) Summary {
	return Summary{
		Range:         r,
		Purchases:     Totals{Quantity: decimal.Zero},
		Donations:     Totals{Quantity: decimal.Zero},
		Distributions: Totals{Quantity: decimal.Zero},
		ByReason:      make(map[ReasonCode]Totals),
	}
}

// Counts reports whether a transaction takes part in financial aggregates.
func Counts(tx Transaction) bool {
	return !tx.Voided && tx.Kind != KindCorrection
}

// Add folds one transaction into the summary, skipping rows that do not count.
func (s *Summary) Add(tx Transaction) {
	if !Counts(tx) || !s.Range.Contains(tx.OccurredAt) {
		return
	}
	switch tx.Kind {
	case KindPurchase:
		s.Purchases = s.Purchases.add(tx.QuantityChange, tx.FinancialImpact)
	case KindDonation:
		s.Donations = s.Donations.add(tx.QuantityChange, tx.FairMarketValue)
	case KindDistribution:
		s.Distributions = s.Distributions.add(tx.QuantityChange, tx.COGS())
		if s.ByReason == nil {
			s.ByReason = make(map[ReasonCode]Totals)
		}
		s.ByReason[tx.Reason] = s.ByReason[tx.Reason].add(tx.QuantityChange, tx.COGS())
	}
}

// Summarize computes a Summary from transactions and items.
func Summarize(r SummaryRange, txs []Transaction, items []Item) Summary {
	s := NewSummary(r)
	for _, tx := range txs {
		s.Add(tx)
	}
	for _, it := range items {
		s.InventoryValue += it.CostBasis
	}
	return s
}

// Summary returns the aggregate report for r.
func (l *Ledger) Summary(ctx context.Context, r SummaryRange) (Summary, error) {
	if err := l.ready(); err != nil {
		return Summary{}, err
	}
	return l.store.Summary(ctx, r)
}
