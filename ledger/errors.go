/*
errors.go - Error taxonomy for the ledger

ERROR CATEGORIES:
  1. Validation errors - bad input or an operation that would break an
     invariant. Rejected before anything is written. Not retryable.
  2. Storage errors - the engine is busy or failed. ErrStoreBusy is
     retryable with backoff; anything else is surfaced as-is.
  3. Integrity errors - the stored snapshot disagrees with the log. Fatal
     for automatic operation; the ledger refuses further writes.
  4. ErrNotInitialized - a Ledger was used without New. Programming error.

USAGE:
  if ledger.IsRetryable(err) { backoff and retry }
  if ledger.IsValidation(err) { show to the operator }
  if ledger.IsIntegrity(err) { stop and page someone }

SEE ALSO:
  - costing/costing.go: engine errors re-exported below
  - store/sqlite/sqlite.go: maps SQLite result codes onto these
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/inventory-ledger/costing"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotInitialized is returned by a Ledger that was not built with New.
	ErrNotInitialized = errors.New("ledger not initialized")

	// ErrItemNotFound is returned when a referenced item doesn't exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrItemInactive is returned when recording against a deactivated item.
	ErrItemInactive = errors.New("item is inactive")

	// ErrCategoryNotFound is returned when a referenced category doesn't exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrCategoryDepth is returned when a category would be nested three deep.
	ErrCategoryDepth = errors.New("categories may only be nested one level")

	// ErrTransactionNotFound is returned when a referenced transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAlreadyVoided is returned on a second void of the same transaction.
	ErrAlreadyVoided = errors.New("transaction already voided")

	// ErrCannotVoidCorrection is returned when voiding a CORRECTION row.
	ErrCannotVoidCorrection = errors.New("correction transactions cannot be voided")

	// ErrVoidReasonRequired is returned when a void has no reason.
	ErrVoidReasonRequired = errors.New("void reason is required")

	// ErrDuplicateSKU is returned when creating an item whose SKU exists.
	ErrDuplicateSKU = errors.New("duplicate sku")

	// ErrDuplicateCategory is returned when creating a category whose name exists.
	ErrDuplicateCategory = errors.New("duplicate category")

	// ErrDuplicateIdempotencyKey is returned when a row with the same key exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInvalidItem is returned for a missing SKU/name or negative threshold.
	ErrInvalidItem = errors.New("invalid item")

	// ErrInvalidCategory is returned for a category without a name.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidReason is returned for an unknown distribution reason.
	ErrInvalidReason = errors.New("invalid reason code")

	// ErrInvalidEvent is returned for an event the ledger cannot record.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrConstraint is returned when the storage layer rejects a row on a
	// CHECK constraint. Indicates the application check was bypassed.
	ErrConstraint = errors.New("storage constraint violated")

	// ErrStoreBusy is returned when the write lock could not be acquired in time.
	ErrStoreBusy = errors.New("database busy")

	// ErrStoreRequired is returned when an operation needs an optional store capability.
	ErrStoreRequired = errors.New("operation requires extended store interface")

	// ErrBackupExists is returned when the backup destination already exists.
	ErrBackupExists = errors.New("backup destination already exists")

	// ErrBackupNotFound is returned when a restore source does not exist.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrInvalidBackupName is returned for a backup name that is not a plain
	// file name inside the backup directory.
	ErrInvalidBackupName = errors.New("invalid backup name")

	// ErrIntegrity is the root of all snapshot/log mismatches.
	ErrIntegrity = errors.New("ledger integrity check failed")

	// Engine errors, re-exported so callers need only this package.
	ErrInvalidQuantity   = costing.ErrNonPositiveQuantity
	ErrNegativeCost      = costing.ErrNegativeCost
	ErrInsufficientStock = costing.ErrInsufficientStock
	ErrNegativeCostBasis = costing.ErrNegativeCostBasis
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// VoidError explains why a void was refused.
type VoidError struct {
	TransactionID TransactionID
	Err           error
}

func (e *VoidError) Error() string {
	return fmt.Sprintf("cannot void transaction %d: %v", e.TransactionID, e.Err)
}

func (e *VoidError) Unwrap() error { return e.Err }

// Mismatch is one item whose stored snapshot disagrees with its log.
// Detail is set for log-shape problems (an unpaired void, a bad sign) that
// are not a snapshot difference.
type Mismatch struct {
	ItemID   ItemID
	SKU      string
	Stored   costing.Position
	Replayed costing.Position
	Detail   string
}

func (m Mismatch) String() string {
	if m.Detail != "" {
		return fmt.Sprintf("item %d (%s): %s", m.ItemID, m.SKU, m.Detail)
	}
	return fmt.Sprintf("item %d (%s): stored %s, log %s", m.ItemID, m.SKU, m.Stored, m.Replayed)
}

// IntegrityError lists every mismatch found by CheckIntegrity.
type IntegrityError struct {
	Mismatches []Mismatch
}

func (e *IntegrityError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = m.String()
	}
	return fmt.Sprintf("%v: %d item(s): %s", ErrIntegrity, len(e.Mismatches), strings.Join(parts, "; "))
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreBusy)
}

// IsValidation returns true if the error is due to invalid input or a
// rejected invariant. Nothing was written.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrNegativeCost) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNegativeCostBasis) ||
		errors.Is(err, ErrAlreadyVoided) ||
		errors.Is(err, ErrCannotVoidCorrection) ||
		errors.Is(err, ErrVoidReasonRequired) ||
		errors.Is(err, ErrItemInactive) ||
		errors.Is(err, ErrCategoryDepth) ||
		errors.Is(err, ErrDuplicateSKU) ||
		errors.Is(err, ErrDuplicateCategory) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidItem) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrConstraint) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidBackupName) ||
		IsNotFound(err)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrBackupNotFound)
}

// IsConflict returns true for errors caused by existing state rather than
// the request itself (double void, duplicate keys).
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyVoided) ||
		errors.Is(err, ErrDuplicateSKU) ||
		errors.Is(err, ErrDuplicateCategory) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsIntegrity returns true if the log and snapshot disagree.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}
