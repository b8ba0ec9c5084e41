/*
Package ledger is the inventory accounting ledger.

PURPOSE:
  An append-only transaction log for inventory items, plus a per-item
  snapshot (quantity on hand, total cost basis) that is always a fold of
  that log. Stock comes in by purchase (real money) or donation (zero cost,
  fair market value tracked for impact reporting) and goes out by
  distribution at weighted-average cost.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: one SKU and its current snapshot
  - Category: two-level grouping for items
  - Transaction: one immutable ledger row
  - Event: closed set of things a caller may record (Purchase, Donation,
    Distribution); Correction rows come only from the void workflow

DESIGN PRINCIPLES:
  1. Immutability: rows are never edited; the voided flag flips exactly once
  2. Precision: cents are int64, quantities are decimal.Decimal
  3. Type Safety: the kind of an event is its Go type, so a positive
     distribution or a negative purchase cannot be written down
  4. Auditability: a correction always points at the row it reverses

SEE ALSO:
  - ledger.go: the API surface (Record*, VoidTransaction, GetHistory...)
  - void.go: the compensating-transaction protocol
  - reconcile.go: startup integrity check
  - store.go: persistence contract
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/inventory-ledger/costing"
	"github.com/warp/inventory-ledger/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ItemID int64
type CategoryID int64
type TransactionID int64

// =============================================================================
// ITEM - One SKU and its derived snapshot
// =============================================================================

// DefaultReorderThreshold applies when an item is created without one.
const DefaultReorderThreshold int64 = 10

type Item struct {
	ID               ItemID
	SKU              string
	Name             string
	CategoryID       *CategoryID
	QuantityOnHand   decimal.Decimal
	ReorderThreshold int64
	CostBasis        money.Cents
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Position returns the cost-relevant part of the snapshot.
func (i Item) Position() costing.Position {
	return costing.Position{Quantity: i.QuantityOnHand, CostBasis: i.CostBasis}
}

// UnitCost is the current weighted-average cost per unit.
func (i Item) UnitCost() money.Cents { return i.Position().UnitCost() }

// BelowThreshold reports whether stock has fallen under the reorder threshold.
func (i Item) BelowThreshold() bool {
	return i.QuantityOnHand.LessThan(decimal.NewFromInt(i.ReorderThreshold))
}

func (i Item) withPosition(p costing.Position) Item {
	i.QuantityOnHand = p.Quantity
	i.CostBasis = p.CostBasis
	return i
}

// NewItem holds the attributes for CreateItem.
type NewItem struct {
	SKU              string
	Name             string
	CategoryID       *CategoryID
	ReorderThreshold *int64
}

// ItemUpdate holds optional attribute changes. Snapshot fields are not
// editable; they only move through the ledger.
type ItemUpdate struct {
	Name             *string
	CategoryID       *CategoryID
	ReorderThreshold *int64
}

// ItemFilter narrows Items.
type ItemFilter struct {
	ActiveOnly     bool
	BelowThreshold bool
	CategoryID     *CategoryID
}

// =============================================================================
// CATEGORY - At most two levels (parent -> child)
// =============================================================================

type Category struct {
	ID          CategoryID
	Name        string
	ParentID    *CategoryID
	Description string
	CreatedAt   time.Time
}

// =============================================================================
// TRANSACTION - Immutable ledger row
// =============================================================================

type Kind string

const (
	KindPurchase     Kind = "PURCHASE"
	KindDonation     Kind = "DONATION"
	KindDistribution Kind = "DISTRIBUTION"
	KindCorrection   Kind = "CORRECTION"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindDonation, KindDistribution, KindCorrection:
		return true
	}
	return false
}

// ValidSign reports whether a quantity change has the sign the kind requires.
func (k Kind) ValidSign(q decimal.Decimal) bool {
	switch k {
	case KindPurchase, KindDonation:
		return q.IsPositive()
	case KindDistribution:
		return q.IsNegative()
	case KindCorrection:
		return !q.IsZero()
	}
	return false
}

type ReasonCode string

const (
	ReasonClient   ReasonCode = "CLIENT"
	ReasonSpoilage ReasonCode = "SPOILAGE"
	ReasonInternal ReasonCode = "INTERNAL"
	ReasonVoid     ReasonCode = "VOID" // set on CORRECTION rows only
)

// ParseReason accepts a distribution reason, case-insensitively.
func ParseReason(s string) (ReasonCode, error) {
	r := ReasonCode(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case ReasonClient, ReasonSpoilage, ReasonInternal:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReason, s)
}

// Transaction is one ledger row.
//
// FinancialImpact is the signed change to the item's cost basis:
// +cost for a purchase, 0 for a donation, -COGS for a distribution and the
// negation of the original for a correction. FairMarketValue is the total
// donation value (negated on its correction) and never touches cost basis.
type Transaction struct {
	ID              TransactionID
	ItemID          ItemID
	Kind            Kind
	QuantityChange  decimal.Decimal
	UnitCost        money.Cents
	FairMarketValue money.Cents
	FinancialImpact money.Cents
	Reason          ReasonCode
	Supplier        string
	Donor           string
	Notes           string
	Voided          bool
	CorrectsID      *TransactionID
	IdempotencyKey  string
	OccurredAt      time.Time
	Actor           string
}

// Effect is the row's contribution to the item snapshot.
func (t Transaction) Effect() costing.Effect {
	return costing.Effect{Quantity: t.QuantityChange, CostBasis: t.FinancialImpact}
}

// COGS is the cost of goods distributed; zero for other kinds.
func (t Transaction) COGS() money.Cents {
	if t.Kind != KindDistribution {
		return 0
	}
	return -t.FinancialImpact
}

// State is the void lifecycle state.
func (t Transaction) State() State {
	if t.Voided {
		return StateVoided
	}
	return StateActive
}

// =============================================================================
// EVENTS - What a caller may record
// =============================================================================

// Event is a closed set: only Purchase, Donation and Distribution implement it.
// Quantities are magnitudes; the ledger derives the sign from the type.
type Event interface {
	Kind() Kind
	isEvent()
}

// Purchase is stock bought at UnitCost per unit.
type Purchase struct {
	Quantity decimal.Decimal
	UnitCost money.Cents
	Supplier string
}

// Donation is stock received at zero cost. FairMarketValue is per unit.
type Donation struct {
	Quantity        decimal.Decimal
	FairMarketValue money.Cents
	Donor           string
}

// Distribution is stock leaving for a reason, costed at the current average.
type Distribution struct {
	Quantity decimal.Decimal
	Reason   ReasonCode
}

func (Purchase) Kind() Kind     { return KindPurchase }
func (Donation) Kind() Kind     { return KindDonation }
func (Distribution) Kind() Kind { return KindDistribution }

func (Purchase) isEvent()     {}
func (Donation) isEvent()     {}
func (Distribution) isEvent() {}

// Meta is the audit context attached to every recorded row.
type Meta struct {
	Actor          string
	Notes          string
	IdempotencyKey string
	OccurredAt     time.Time // zero means now
}

// Page selects a window of newest-first history.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPageLimit is used when Page.Limit is zero.
const DefaultPageLimit = 50

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
