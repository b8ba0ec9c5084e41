/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS AND QUANTITIES:
  Money goes in as dollar strings ("2.00", "$1,200.50") and is truncated to
  cents on entry. It comes back twice: as integer cents (*_cents) for
  machines and as a display string in the configured currency.
  Quantities are decimal strings in both directions so "0.1" stays exact.

VALIDATION:
  Request types carry go-playground/validator tags. Handlers run the
  validator before touching the ledger; the ledger still enforces every
  domain rule on its own.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/money"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// MetaRequest is the audit metadata shared by every write.
type MetaRequest struct {
	Actor          string `json:"actor,omitempty" validate:"max=100"`
	Notes          string `json:"notes,omitempty" validate:"max=1000"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=200"`
	OccurredAt     string `json:"occurred_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// CreateItemRequest is the request to register an item.
type CreateItemRequest struct {
	SKU              string `json:"sku" validate:"required,max=64"`
	Name             string `json:"name" validate:"required,max=200"`
	CategoryID       *int64 `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	ReorderThreshold *int64 `json:"reorder_threshold,omitempty" validate:"omitempty,gte=0"`
}

// UpdateItemRequest changes descriptive fields. Omitted fields are kept.
type UpdateItemRequest struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	CategoryID       *int64  `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	ReorderThreshold *int64  `json:"reorder_threshold,omitempty" validate:"omitempty,gte=0"`
}

// PurchaseRequest records stock bought at a per-unit cost.
type PurchaseRequest struct {
	Quantity string `json:"quantity" validate:"required,numeric"`
	UnitCost string `json:"unit_cost" validate:"required"`
	Supplier string `json:"supplier,omitempty" validate:"max=200"`
	MetaRequest
}

// DonationRequest records donated stock with a per-unit fair market value.
type DonationRequest struct {
	Quantity        string `json:"quantity" validate:"required,numeric"`
	FairMarketValue string `json:"fair_market_value" validate:"required"`
	Donor           string `json:"donor,omitempty" validate:"max=200"`
	MetaRequest
}

// DistributionRequest records stock leaving inventory.
type DistributionRequest struct {
	Quantity string `json:"quantity" validate:"required,numeric"`
	Reason   string `json:"reason" validate:"required"`
	MetaRequest
}

// VoidRequest voids a transaction with a mandatory reason.
type VoidRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
	MetaRequest
}

// CreateCategoryRequest creates a category, optionally under a parent.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	ParentID    *int64 `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

// BackupRequest names the new backup file inside the server's backup
// directory. Empty picks a timestamped name.
type BackupRequest struct {
	Name string `json:"name,omitempty" validate:"max=255"`
}

// RestoreRequest names a file in the server's backup directory.
type RestoreRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ItemDTO represents an item and its inventory snapshot.
type ItemDTO struct {
	ID               int64  `json:"id"`
	SKU              string `json:"sku"`
	Name             string `json:"name"`
	CategoryID       *int64 `json:"category_id,omitempty"`
	QuantityOnHand   string `json:"quantity_on_hand"`
	ReorderThreshold int64  `json:"reorder_threshold"`
	BelowThreshold   bool   `json:"below_threshold"`
	CostBasisCents   int64  `json:"cost_basis_cents"`
	CostBasis        string `json:"cost_basis"`
	UnitCostCents    int64  `json:"unit_cost_cents"`
	UnitCost         string `json:"unit_cost"`
	Active           bool   `json:"active"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// TransactionDTO represents one ledger row.
type TransactionDTO struct {
	ID                   int64  `json:"id"`
	ItemID               int64  `json:"item_id"`
	Kind                 string `json:"kind"`
	State                string `json:"state"`
	QuantityChange       string `json:"quantity_change"`
	UnitCostCents        int64  `json:"unit_cost_cents"`
	FairMarketValueCents int64  `json:"fair_market_value_cents"`
	FinancialImpactCents int64  `json:"financial_impact_cents"`
	FinancialImpact      string `json:"financial_impact"`
	COGSCents            int64  `json:"cogs_cents,omitempty"`
	Reason               string `json:"reason,omitempty"`
	Supplier             string `json:"supplier,omitempty"`
	Donor                string `json:"donor,omitempty"`
	Notes                string `json:"notes,omitempty"`
	CorrectsID           *int64 `json:"corrects_id,omitempty"`
	IdempotencyKey       string `json:"idempotency_key"`
	OccurredAt           string `json:"occurred_at"`
	Actor                string `json:"actor"`
}

// ReceiptDTO is the response to a recorded event.
type ReceiptDTO struct {
	Transaction TransactionDTO `json:"transaction"`
	Item        ItemDTO        `json:"item"`
	// Clamped is set when cost of goods was capped at the remaining basis.
	Clamped bool `json:"clamped,omitempty"`
	// ResidualCents is basis left on the books once quantity reaches zero.
	ResidualCents int64 `json:"residual_cents,omitempty"`
}

// VoidResultDTO is the response to a void.
type VoidResultDTO struct {
	Original   TransactionDTO `json:"original"`
	Correction TransactionDTO `json:"correction"`
	Item       ItemDTO        `json:"item"`
}

// CategoryDTO represents a category.
type CategoryDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// TotalsDTO is one line of the summary report.
type TotalsDTO struct {
	Count       int    `json:"count"`
	Quantity    string `json:"quantity"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
}

// SummaryDTO is the activity report for a period.
type SummaryDTO struct {
	From                string               `json:"from,omitempty"`
	To                  string               `json:"to,omitempty"`
	Purchases           TotalsDTO            `json:"purchases"`
	Donations           TotalsDTO            `json:"donations"`
	Distributions       TotalsDTO            `json:"distributions"`
	ByReason            map[string]TotalsDTO `json:"distributions_by_reason"`
	InventoryValueCents int64                `json:"inventory_value_cents"`
	InventoryValue      string               `json:"inventory_value"`
}

// MismatchDTO is one failed reconciliation.
type MismatchDTO struct {
	ItemID                 int64  `json:"item_id"`
	SKU                    string `json:"sku"`
	StoredQuantity         string `json:"stored_quantity"`
	StoredCostBasisCents   int64  `json:"stored_cost_basis_cents"`
	ReplayedQuantity       string `json:"replayed_quantity"`
	ReplayedCostBasisCents int64  `json:"replayed_cost_basis_cents"`
	Detail                 string `json:"detail,omitempty"`
}

// IntegrityDTO is the result of an integrity check.
type IntegrityDTO struct {
	OK bool `json:"ok"`
	// Halted stays true after a failed check until a restart or restore.
	Halted     bool          `json:"halted"`
	Mismatches []MismatchDTO `json:"mismatches,omitempty"`
}

// BackupDTO names a backup file in the backup directory.
type BackupDTO struct {
	Name string `json:"name"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (h *Handler) toItemDTO(it ledger.Item) ItemDTO {
	dto := ItemDTO{
		ID:               int64(it.ID),
		SKU:              it.SKU,
		Name:             it.Name,
		QuantityOnHand:   it.QuantityOnHand.String(),
		ReorderThreshold: it.ReorderThreshold,
		BelowThreshold:   it.BelowThreshold(),
		CostBasisCents:   int64(it.CostBasis),
		CostBasis:        h.format(it.CostBasis),
		UnitCostCents:    int64(it.UnitCost()),
		UnitCost:         h.format(it.UnitCost()),
		Active:           it.Active,
		CreatedAt:        it.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        it.UpdatedAt.Format(time.RFC3339),
	}
	if it.CategoryID != nil {
		id := int64(*it.CategoryID)
		dto.CategoryID = &id
	}
	return dto
}

func (h *Handler) toItemDTOs(items []ledger.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = h.toItemDTO(it)
	}
	return dtos
}

func (h *Handler) toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:                   int64(tx.ID),
		ItemID:               int64(tx.ItemID),
		Kind:                 string(tx.Kind),
		State:                string(tx.State()),
		QuantityChange:       tx.QuantityChange.String(),
		UnitCostCents:        int64(tx.UnitCost),
		FairMarketValueCents: int64(tx.FairMarketValue),
		FinancialImpactCents: int64(tx.FinancialImpact),
		FinancialImpact:      h.format(tx.FinancialImpact),
		COGSCents:            int64(tx.COGS()),
		Reason:               string(tx.Reason),
		Supplier:             tx.Supplier,
		Donor:                tx.Donor,
		Notes:                tx.Notes,
		IdempotencyKey:       tx.IdempotencyKey,
		OccurredAt:           tx.OccurredAt.Format(time.RFC3339Nano),
		Actor:                tx.Actor,
	}
	if tx.CorrectsID != nil {
		id := int64(*tx.CorrectsID)
		dto.CorrectsID = &id
	}
	return dto
}

func (h *Handler) toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = h.toTransactionDTO(tx)
	}
	return dtos
}

func (h *Handler) toReceiptDTO(rc ledger.Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		Transaction: h.toTransactionDTO(rc.Transaction),
		Item:        h.toItemDTO(rc.Item),
	}
	if rc.Depletion != nil {
		dto.Clamped = rc.Depletion.Clamped
		dto.ResidualCents = int64(rc.Depletion.Residual)
	}
	return dto
}

func toCategoryDTO(c ledger.Category) CategoryDTO {
	dto := CategoryDTO{
		ID:          int64(c.ID),
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
	if c.ParentID != nil {
		id := int64(*c.ParentID)
		dto.ParentID = &id
	}
	return dto
}

func (h *Handler) toTotalsDTO(t ledger.Totals) TotalsDTO {
	return TotalsDTO{
		Count:       t.Count,
		Quantity:    t.Quantity.String(),
		AmountCents: int64(t.Amount),
		Amount:      h.format(t.Amount),
	}
}

func (h *Handler) toSummaryDTO(s ledger.Summary) SummaryDTO {
	dto := SummaryDTO{
		Purchases:           h.toTotalsDTO(s.Purchases),
		Donations:           h.toTotalsDTO(s.Donations),
		Distributions:       h.toTotalsDTO(s.Distributions),
		ByReason:            make(map[string]TotalsDTO, len(s.ByReason)),
		InventoryValueCents: int64(s.InventoryValue),
		InventoryValue:      h.format(s.InventoryValue),
	}
	if !s.Range.From.IsZero() {
		dto.From = s.Range.From.Format(time.RFC3339)
	}
	if !s.Range.To.IsZero() {
		dto.To = s.Range.To.Format(time.RFC3339)
	}
	for reason, t := range s.ByReason {
		dto.ByReason[string(reason)] = h.toTotalsDTO(t)
	}
	return dto
}

func toMismatchDTOs(ms []ledger.Mismatch) []MismatchDTO {
	dtos := make([]MismatchDTO, len(ms))
	for i, m := range ms {
		dtos[i] = MismatchDTO{
			ItemID:                 int64(m.ItemID),
			SKU:                    m.SKU,
			StoredQuantity:         m.Stored.Quantity.String(),
			StoredCostBasisCents:   int64(m.Stored.CostBasis),
			ReplayedQuantity:       m.Replayed.Quantity.String(),
			ReplayedCostBasisCents: int64(m.Replayed.CostBasis),
			Detail:                 m.Detail,
		}
	}
	return dtos
}

func (h *Handler) format(c money.Cents) string {
	return money.Format(c, h.Currency)
}
