/*
handlers.go - HTTP API handlers for the inventory ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization and validation, and delegates to ledger.Ledger.

ENDPOINTS:
  Items:
    GET    /api/items                    List items (?active, ?below_threshold, ?category_id)
    POST   /api/items                    Create item
    GET    /api/items/search?q=          Prefix search on SKU or name
    GET    /api/items/low-stock          Active items below reorder threshold
    GET    /api/items/sku/{sku}          Snapshot by SKU
    GET    /api/items/{id}               Snapshot
    PUT    /api/items/{id}               Update descriptive fields
    DELETE /api/items/{id}               Deactivate (soft delete)
    GET    /api/items/{id}/transactions  History, newest first (?limit, ?offset)

  Events:
    POST   /api/items/{id}/purchases
    POST   /api/items/{id}/donations
    POST   /api/items/{id}/distributions

  Transactions:
    GET    /api/transactions             All items, newest first (?from, ?to, ?limit, ?offset)
    GET    /api/transactions/{id}
    POST   /api/transactions/{id}/void

  Categories:
    GET    /api/categories
    POST   /api/categories

  Reports / Admin:
    GET    /api/reports/summary          (?from, ?to as YYYY-MM-DD or RFC3339)
    GET    /api/admin/backups            Backup files in the backup directory
    POST   /api/admin/backup             New backup (file name only, inside --backup-dir)
    POST   /api/admin/restore            Restore a named backup, then re-check
    GET    /api/admin/integrity

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator tags, then money/decimal parsing)
  3. Call the ledger
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, rejected ledger invariant
  - 404: Item, category or transaction not found
  - 409: Conflict (double void, duplicate SKU or idempotency key)
  - 500: Integrity failure, internal errors
  - 501: Operation not supported by the configured store, or no backup
         directory configured
  - 503: Database busy, retry later

SECURITY NOTE:
  No authentication. The actor recorded on a write is whatever the caller
  puts in the body or the X-Actor header. Backup and restore only touch
  plain file names inside BackupDir; callers cannot name other paths.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/money"
)

// ActorHeader supplies the actor when the request body does not.
const ActorHeader = "X-Actor"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger   *ledger.Ledger
	Log      logrus.FieldLogger
	Currency string

	// AllowedOrigins configures CORS. Empty means same-origin only.
	AllowedOrigins []string

	// BackupDir holds backups made or restored over HTTP. Empty disables
	// the backup and restore endpoints.
	BackupDir string

	now      func() time.Time
	validate *validator.Validate
}

// NewHandler creates a new handler serving the given ledger.
func NewHandler(l *ledger.Ledger, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := validator.New()
	// report JSON names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Ledger:   l,
		Log:      log,
		Currency: money.DefaultCurrency,
		now:      time.Now,
		validate: v,
	}
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// ListItems returns items matching the query filters.
// GET /api/items
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.ItemFilter{
		ActiveOnly:     q.Get("active") == "true",
		BelowThreshold: q.Get("below_threshold") == "true",
	}
	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid category_id", err)
			return
		}
		cid := ledger.CategoryID(id)
		filter.CategoryID = &cid
	}

	items, err := h.Ledger.ListItems(r.Context(), filter)
	if err != nil {
		h.writeLedgerError(w, "Failed to list items", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toItemDTOs(items))
}

// CreateItem registers a new item with an empty position.
// POST /api/items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := ledger.NewItem{
		SKU:              req.SKU,
		Name:             req.Name,
		ReorderThreshold: req.ReorderThreshold,
	}
	if req.CategoryID != nil {
		cid := ledger.CategoryID(*req.CategoryID)
		in.CategoryID = &cid
	}

	item, err := h.Ledger.CreateItem(r.Context(), in)
	if err != nil {
		h.writeLedgerError(w, "Failed to create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toItemDTO(item))
}

// SearchItems finds active items whose SKU or name starts with q.
// GET /api/items/search?q=&limit=
func (h *Handler) SearchItems(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	items, err := h.Ledger.SearchByPrefix(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeLedgerError(w, "Failed to search items", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toItemDTOs(items))
}

// LowStock lists active items below their reorder threshold.
// GET /api/items/low-stock
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.Ledger.ItemsBelowThreshold(r.Context())
	if err != nil {
		h.writeLedgerError(w, "Failed to list low-stock items", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toItemDTOs(items))
}

// GetItem returns the current snapshot of one item.
// GET /api/items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	item, err := h.Ledger.GetSnapshot(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, "Failed to get item", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toItemDTO(item))
}

// GetItemBySKU returns the current snapshot of the item with a SKU.
// GET /api/items/sku/{sku}
func (h *Handler) GetItemBySKU(w http.ResponseWriter, r *http.Request) {
	item, err := h.Ledger.GetSnapshotBySKU(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.writeLedgerError(w, "Failed to get item", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toItemDTO(item))
}

// UpdateItem changes an item's name, category or threshold.
// PUT /api/items/{id}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req UpdateItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	upd := ledger.ItemUpdate{Name: req.Name, ReorderThreshold: req.ReorderThreshold}
	if req.CategoryID != nil {
		cid := ledger.CategoryID(*req.CategoryID)
		upd.CategoryID = &cid
	}

	item, err := h.Ledger.UpdateItem(r.Context(), id, upd)
	if err != nil {
		h.writeLedgerError(w, "Failed to update item", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toItemDTO(item))
}

// DeactivateItem soft-deletes an item. Its history is kept.
// DELETE /api/items/{id}
func (h *Handler) DeactivateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	item, err := h.Ledger.DeactivateItem(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, "Failed to deactivate item", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toItemDTO(item))
}

// GetHistory returns an item's transactions, newest first.
// GET /api/items/{id}/transactions?limit=&offset=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset", err)
		return
	}

	txs, err := h.Ledger.GetHistory(r.Context(), id, ledger.Page{Limit: limit, Offset: offset})
	if err != nil {
		h.writeLedgerError(w, "Failed to get history", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toTransactionDTOs(txs))
}

// ListTransactions returns rows of every item in a date range, newest first.
// GET /api/transactions?from=&to=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	rng, err := ledger.ParseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset", err)
		return
	}

	txs, err := h.Ledger.TransactionsInRange(r.Context(), rng, ledger.Page{Limit: limit, Offset: offset})
	if err != nil {
		h.writeLedgerError(w, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toTransactionDTOs(txs))
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// RecordPurchase records stock bought from a supplier.
// POST /api/items/{id}/purchases
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req PurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	qty, ok := parseQuantity(w, req.Quantity)
	if !ok {
		return
	}
	unit, err := money.ParseNonNegative(req.UnitCost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_cost", err)
		return
	}
	meta, ok := h.meta(w, r, req.MetaRequest)
	if !ok {
		return
	}

	rc, err := h.Ledger.RecordPurchase(r.Context(), id, ledger.Purchase{
		Quantity: qty,
		UnitCost: unit,
		Supplier: req.Supplier,
	}, meta)
	if err != nil {
		h.writeLedgerError(w, "Failed to record purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toReceiptDTO(rc))
}

// RecordDonation records donated stock at zero cost.
// POST /api/items/{id}/donations
func (h *Handler) RecordDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req DonationRequest
	if !h.decode(w, r, &req) {
		return
	}
	qty, ok := parseQuantity(w, req.Quantity)
	if !ok {
		return
	}
	fmv, err := money.ParseNonNegative(req.FairMarketValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fair_market_value", err)
		return
	}
	meta, ok := h.meta(w, r, req.MetaRequest)
	if !ok {
		return
	}

	rc, err := h.Ledger.RecordDonation(r.Context(), id, ledger.Donation{
		Quantity:        qty,
		FairMarketValue: fmv,
		Donor:           req.Donor,
	}, meta)
	if err != nil {
		h.writeLedgerError(w, "Failed to record donation", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toReceiptDTO(rc))
}

// RecordDistribution records stock leaving inventory.
// POST /api/items/{id}/distributions
func (h *Handler) RecordDistribution(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req DistributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	qty, ok := parseQuantity(w, req.Quantity)
	if !ok {
		return
	}
	meta, ok := h.meta(w, r, req.MetaRequest)
	if !ok {
		return
	}

	rc, err := h.Ledger.RecordDistribution(r.Context(), id, ledger.Distribution{
		Quantity: qty,
		Reason:   ledger.ReasonCode(req.Reason),
	}, meta)
	if err != nil {
		h.writeLedgerError(w, "Failed to record distribution", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toReceiptDTO(rc))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// GetTransaction returns one ledger row.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}
	tx, err := h.Ledger.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, "Failed to get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toTransactionDTO(tx))
}

// VoidTransaction voids a row by appending its correction.
// POST /api/transactions/{id}/void
func (h *Handler) VoidTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}
	var req VoidRequest
	if !h.decode(w, r, &req) {
		return
	}
	meta, ok := h.meta(w, r, req.MetaRequest)
	if !ok {
		return
	}

	res, err := h.Ledger.VoidTransaction(r.Context(), id, req.Reason, meta)
	if err != nil {
		h.writeLedgerError(w, "Failed to void transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, VoidResultDTO{
		Original:   h.toTransactionDTO(res.Original),
		Correction: h.toTransactionDTO(res.Correction),
		Item:       h.toItemDTO(res.Item),
	})
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns all categories.
// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Ledger.ListCategories(r.Context())
	if err != nil {
		h.writeLedgerError(w, "Failed to list categories", err)
		return
	}
	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory creates a category.
// POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := ledger.Category{Name: req.Name, Description: req.Description}
	if req.ParentID != nil {
		pid := ledger.CategoryID(*req.ParentID)
		c.ParentID = &pid
	}

	created, err := h.Ledger.CreateCategory(r.Context(), c)
	if err != nil {
		h.writeLedgerError(w, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(created))
}

// =============================================================================
// REPORT / ADMIN HANDLERS
// =============================================================================

// GetSummary reports purchases, donations and distributions in a period.
// GET /api/reports/summary?from=&to=
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := ledger.ParseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	s, err := h.Ledger.Summary(r.Context(), rng)
	if err != nil {
		h.writeLedgerError(w, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toSummaryDTO(s))
}

// Backup writes an online backup into BackupDir. An empty name gets a
// timestamped one.
// POST /api/admin/backup
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	var req BackupRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = BackupFileName(h.now())
	}
	path, ok := h.backupPath(w, req.Name)
	if !ok {
		return
	}
	if err := h.Ledger.Backup(r.Context(), path); err != nil {
		h.writeLedgerError(w, "Backup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, BackupDTO{Name: req.Name})
}

// ListBackups lists the backup directory, newest name first.
// GET /api/admin/backups
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if h.BackupDir == "" {
		writeError(w, http.StatusNotImplemented, "No backup directory configured", nil)
		return
	}
	entries, err := os.ReadDir(h.BackupDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read backup directory", err)
		return
	}
	names := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".db" {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	dtos := make([]BackupDTO, len(names))
	for i, n := range names {
		dtos[i] = BackupDTO{Name: n}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Restore replaces the database with a backup from BackupDir and reports
// the integrity check that follows.
// POST /api/admin/restore
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	path, ok := h.backupPath(w, req.Name)
	if !ok {
		return
	}
	err := h.Ledger.Restore(r.Context(), path)
	var ie *ledger.IntegrityError
	switch {
	case err == nil:
		h.Log.WithField("backup", req.Name).Warn("database restored over HTTP")
		writeJSON(w, http.StatusOK, IntegrityDTO{OK: true})
	case errors.As(err, &ie):
		writeJSON(w, http.StatusInternalServerError, IntegrityDTO{
			Halted:     true,
			Mismatches: toMismatchDTOs(ie.Mismatches),
		})
	default:
		h.writeLedgerError(w, "Restore failed", err)
	}
}

// backupPath resolves a client-supplied backup name inside BackupDir.
// Only plain file names are accepted.
func (h *Handler) backupPath(w http.ResponseWriter, name string) (string, bool) {
	if h.BackupDir == "" {
		writeError(w, http.StatusNotImplemented, "No backup directory configured", nil)
		return "", false
	}
	if err := ValidBackupName(name); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid backup name", err)
		return "", false
	}
	return filepath.Join(h.BackupDir, name), true
}

// ValidBackupName accepts a bare file name: no directory part, no leading
// dot, no separators of either platform.
func ValidBackupName(name string) error {
	switch {
	case name == "",
		name != filepath.Base(name),
		strings.ContainsAny(name, `/\:`),
		strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q", ledger.ErrInvalidBackupName, name)
	}
	return nil
}

// CheckIntegrity replays every item's log against its snapshot.
// GET /api/admin/integrity
func (h *Handler) CheckIntegrity(w http.ResponseWriter, r *http.Request) {
	err := h.Ledger.CheckIntegrity(r.Context())
	var ie *ledger.IntegrityError
	switch {
	case err == nil:
		// a clean re-check does not lift an earlier halt
		halted := h.Ledger.Halted() != nil
		writeJSON(w, http.StatusOK, IntegrityDTO{OK: true, Halted: halted})
	case errors.As(err, &ie):
		writeJSON(w, http.StatusInternalServerError, IntegrityDTO{Halted: true, Mismatches: toMismatchDTOs(ie.Mismatches)})
	default:
		h.writeLedgerError(w, "Integrity check failed", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. It writes the error response
// itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "Validation failed",
				Fields: validationFields(ve),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func validationFields(ve validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

func (h *Handler) meta(w http.ResponseWriter, r *http.Request, req MetaRequest) (ledger.Meta, bool) {
	m := ledger.Meta{
		Actor:          req.Actor,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
	if m.Actor == "" {
		m.Actor = r.Header.Get(ActorHeader)
	}
	if req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid occurred_at (use RFC 3339)", err)
			return ledger.Meta{}, false
		}
		m.OccurredAt = t
	}
	return m, true
}

func parseQuantity(w http.ResponseWriter, s string) (decimal.Decimal, bool) {
	q, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return decimal.Zero, false
	}
	return q, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func itemID(w http.ResponseWriter, r *http.Request) (ledger.ItemID, bool) {
	id, ok := pathID(w, r)
	return ledger.ItemID(id), ok
}

func transactionID(w http.ResponseWriter, r *http.Request) (ledger.TransactionID, bool) {
	id, ok := pathID(w, r)
	return ledger.TransactionID(id), ok
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// statusFor maps a ledger error to an HTTP status.
func statusFor(err error) int {
	switch {
	case ledger.IsIntegrity(err):
		return http.StatusInternalServerError
	case ledger.IsRetryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrStoreRequired):
		return http.StatusNotImplemented
	case errors.Is(err, ledger.ErrBackupExists):
		return http.StatusConflict
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsConflict(err):
		return http.StatusConflict
	case ledger.IsValidation(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).WithField("status", status).Error(message)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
