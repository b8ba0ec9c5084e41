/*
Package costing is the weighted-average cost engine.

PURPOSE:
  Pure functions over a Position (quantity on hand + total cost basis). No
  I/O, no clock, no locks: given the current position and an event, return
  the next position or an error. The ledger calls these inside its write
  transaction; the integrity check calls Replay over the whole log.

RULES:
  Intake (purchase, donation):
    basis' = basis + cost          (cost = 0 for donations)
    qty'   = qty + incoming
  Unit cost (derived, never stored):
    round_half_even(basis / qty), 0 when qty == 0
  Distribution:
    cogs   = round_half_even(removed * unit_cost)
    cogs   = min(cogs, basis)      (clamp, reported via Depletion.Clamped)
    basis' = basis - cogs
    qty'   = qty - removed         (rejected if negative)
  Emptying a position keeps the formula: rounding may leave a few cents of
  basis at quantity 0 (reported via Depletion.Residual). The next intake
  absorbs them.
  Reverse:
    Apply the negated quantity and basis effect of a prior event to the
    CURRENT position. No temporal reconstruction is attempted; a reverse
    that would leave a negative quantity or basis is rejected.

SEE ALSO:
  - money/money.go: rounding helpers
  - ledger/void.go: uses Reverse
  - ledger/reconcile.go: uses Replay
*/
package costing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/inventory-ledger/money"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNonPositiveQuantity is returned when an event quantity is zero or negative.
	ErrNonPositiveQuantity = errors.New("quantity must be positive")

	// ErrNegativeCost is returned when an intake cost is negative.
	ErrNegativeCost = errors.New("cost cannot be negative")

	// ErrInsufficientStock is returned when an operation would leave a negative quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNegativeCostBasis is returned when an operation would leave a negative cost basis.
	ErrNegativeCostBasis = errors.New("cost basis would become negative")
)

// InsufficientStockError carries the shortfall.
type InsufficientStockError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %s, requested %s",
		e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// =============================================================================
// POSITION
// =============================================================================

// Position is the cost-relevant state of one item.
type Position struct {
	Quantity  decimal.Decimal
	CostBasis money.Cents
}

// UnitCost is the current weighted-average cost per unit.
func (p Position) UnitCost() money.Cents {
	if !p.Quantity.IsPositive() {
		return 0
	}
	return money.DivRound(p.CostBasis, p.Quantity)
}

// Valid reports whether both quantity and basis are non-negative.
func (p Position) Valid() bool {
	return !p.Quantity.IsNegative() && p.CostBasis >= 0
}

func (p Position) Equal(o Position) bool {
	return p.Quantity.Equal(o.Quantity) && p.CostBasis == o.CostBasis
}

func (p Position) String() string {
	return fmt.Sprintf("qty=%s basis=%d", p.Quantity.String(), p.CostBasis)
}

// Effect is a signed change to a position.
type Effect struct {
	Quantity  decimal.Decimal
	CostBasis money.Cents
}

// Neg returns the inverse effect.
func (e Effect) Neg() Effect {
	return Effect{Quantity: e.Quantity.Neg(), CostBasis: -e.CostBasis}
}

// Depletion describes how a distribution was costed.
type Depletion struct {
	UnitCost money.Cents
	COGS     money.Cents
	Clamped  bool        // formula result exceeded the remaining basis
	Residual money.Cents // basis left behind when quantity reached zero
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Intake adds quantity at a total cost. Donations pass cost 0.
func Intake(p Position, qty decimal.Decimal, cost money.Cents) (Position, error) {
	if !qty.IsPositive() {
		return p, ErrNonPositiveQuantity
	}
	if cost < 0 {
		return p, ErrNegativeCost
	}
	return Apply(p, Effect{Quantity: qty, CostBasis: cost})
}

// Distribute removes quantity at the current weighted-average cost.
func Distribute(p Position, qty decimal.Decimal) (Position, Depletion, error) {
	if !qty.IsPositive() {
		return p, Depletion{}, ErrNonPositiveQuantity
	}
	if qty.GreaterThan(p.Quantity) {
		return p, Depletion{}, &InsufficientStockError{Available: p.Quantity, Requested: qty}
	}

	d := Depletion{UnitCost: p.UnitCost()}
	d.COGS = money.MulRound(qty, d.UnitCost)

	if d.COGS > p.CostBasis {
		d.Clamped = true
		d.COGS = p.CostBasis
	}

	next, err := Apply(p, Effect{Quantity: qty.Neg(), CostBasis: -d.COGS})
	if err != nil {
		return p, Depletion{}, err
	}
	if next.Quantity.IsZero() {
		d.Residual = next.CostBasis
	}
	return next, d, nil
}

// Apply adds a signed effect, rejecting any negative result.
func Apply(p Position, e Effect) (Position, error) {
	next := Position{
		Quantity:  p.Quantity.Add(e.Quantity),
		CostBasis: p.CostBasis + e.CostBasis,
	}
	if next.Quantity.IsNegative() {
		return p, &InsufficientStockError{Available: p.Quantity, Requested: e.Quantity.Neg()}
	}
	if next.CostBasis < 0 {
		return p, fmt.Errorf("%w: basis %d, change %d", ErrNegativeCostBasis, p.CostBasis, e.CostBasis)
	}
	return next, nil
}

// Reverse removes a previously applied effect from the current position.
func Reverse(p Position, original Effect) (Position, error) {
	return Apply(p, original.Neg())
}

// Replay folds effects in order starting from the empty position.
// Intermediate states are not validated: the log is the source of truth and
// the caller only compares the final result.
func Replay(effects []Effect) Position {
	p := Position{Quantity: decimal.Zero}
	for _, e := range effects {
		p.Quantity = p.Quantity.Add(e.Quantity)
		p.CostBasis += e.CostBasis
	}
	return p
}
