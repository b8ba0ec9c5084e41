// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/inventory-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a ledger.Store held entirely in process memory. WithTx is
// simulated with a snapshot and a rollback on error.
type Memory struct {
	mu sync.RWMutex
	d  *data
}

func NewMemory() *Memory {
	return &Memory{d: newData()}
}

func (m *Memory) Item(ctx context.Context, id ledger.ItemID) (ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Item(ctx, id)
}

func (m *Memory) ItemBySKU(ctx context.Context, sku string) (ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ItemBySKU(ctx, sku)
}

func (m *Memory) Items(ctx context.Context, filter ledger.ItemFilter) ([]ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Items(ctx, filter)
}

func (m *Memory) SearchItems(ctx context.Context, prefix string, limit int) ([]ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.SearchItems(ctx, prefix, limit)
}

func (m *Memory) Transaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Transaction(ctx, id)
}

func (m *Memory) History(ctx context.Context, itemID ledger.ItemID, page ledger.Page) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.History(ctx, itemID, page)
}

func (m *Memory) Transactions(ctx context.Context, itemID ledger.ItemID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Transactions(ctx, itemID)
}

func (m *Memory) TransactionsInRange(ctx context.Context, r ledger.SummaryRange, page ledger.Page) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.TransactionsInRange(ctx, r, page)
}

func (m *Memory) Category(ctx context.Context, id ledger.CategoryID) (ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Category(ctx, id)
}

func (m *Memory) Categories(ctx context.Context) ([]ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Categories(ctx)
}

func (m *Memory) Summary(ctx context.Context, r ledger.SummaryRange) (ledger.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Summary(ctx, r)
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// Tamper applies fn to the raw data outside any ledger rule. Tests use it
// to simulate on-disk corruption for the integrity check.
func (m *Memory) Tamper(fn func(items map[ledger.ItemID]ledger.Item, txs []ledger.Transaction)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.d.items, m.d.txs)
}

// =============================================================================
// DATA - Unlocked state; also the UnitOfWork handed to WithTx
// =============================================================================

type data struct {
	items       map[ledger.ItemID]ledger.Item
	categories  map[ledger.CategoryID]ledger.Category
	txs         []ledger.Transaction // txs[i].ID == i+1
	idempotency map[string]ledger.TransactionID
	nextItem    ledger.ItemID
	nextCat     ledger.CategoryID
}

func newData() *data {
	return &data{
		items:       make(map[ledger.ItemID]ledger.Item),
		categories:  make(map[ledger.CategoryID]ledger.Category),
		idempotency: make(map[string]ledger.TransactionID),
	}
}

func (d *data) clone() *data {
	c := &data{
		items:       make(map[ledger.ItemID]ledger.Item, len(d.items)),
		categories:  make(map[ledger.CategoryID]ledger.Category, len(d.categories)),
		txs:         append([]ledger.Transaction{}, d.txs...),
		idempotency: make(map[string]ledger.TransactionID, len(d.idempotency)),
		nextItem:    d.nextItem,
		nextCat:     d.nextCat,
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.idempotency {
		c.idempotency[k] = v
	}
	return c
}

func (d *data) Item(_ context.Context, id ledger.ItemID) (ledger.Item, error) {
	it, ok := d.items[id]
	if !ok {
		return ledger.Item{}, fmt.Errorf("%w: %d", ledger.ErrItemNotFound, id)
	}
	return it, nil
}

func (d *data) ItemBySKU(_ context.Context, sku string) (ledger.Item, error) {
	for _, it := range d.items {
		if it.SKU == sku {
			return it, nil
		}
	}
	return ledger.Item{}, fmt.Errorf("%w: %s", ledger.ErrItemNotFound, sku)
}

func (d *data) Items(_ context.Context, f ledger.ItemFilter) ([]ledger.Item, error) {
	var out []ledger.Item
	for _, it := range d.items {
		if f.ActiveOnly && !it.Active {
			continue
		}
		if f.BelowThreshold && !it.BelowThreshold() {
			continue
		}
		if f.CategoryID != nil && (it.CategoryID == nil || *it.CategoryID != *f.CategoryID) {
			continue
		}
		out = append(out, it)
	}
	sortBySKU(out)
	return out, nil
}

func (d *data) SearchItems(_ context.Context, prefix string, limit int) ([]ledger.Item, error) {
	p := strings.ToLower(prefix)
	var out []ledger.Item
	for _, it := range d.items {
		if !it.Active {
			continue
		}
		if strings.HasPrefix(strings.ToLower(it.SKU), p) || strings.HasPrefix(strings.ToLower(it.Name), p) {
			out = append(out, it)
		}
	}
	sortBySKU(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortBySKU(items []ledger.Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
}

func (d *data) Transaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	if id < 1 || int(id) > len(d.txs) {
		return ledger.Transaction{}, fmt.Errorf("%w: %d", ledger.ErrTransactionNotFound, id)
	}
	return d.txs[id-1], nil
}

func (d *data) History(ctx context.Context, itemID ledger.ItemID, page ledger.Page) ([]ledger.Transaction, error) {
	txs, _ := d.Transactions(ctx, itemID)
	return newestFirst(txs, page), nil
}

func (d *data) TransactionsInRange(_ context.Context, r ledger.SummaryRange, page ledger.Page) ([]ledger.Transaction, error) {
	var txs []ledger.Transaction
	for _, tx := range d.txs {
		if r.Contains(tx.OccurredAt) {
			txs = append(txs, tx)
		}
	}
	return newestFirst(txs, page), nil
}

// newestFirst sorts txs by OccurredAt then ID, descending, and pages them.
func newestFirst(txs []ledger.Transaction, page ledger.Page) []ledger.Transaction {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].OccurredAt.Equal(txs[j].OccurredAt) {
			return txs[i].OccurredAt.After(txs[j].OccurredAt)
		}
		return txs[i].ID > txs[j].ID
	})
	if page.Offset >= len(txs) {
		return nil
	}
	txs = txs[page.Offset:]
	if page.Limit > 0 && len(txs) > page.Limit {
		txs = txs[:page.Limit]
	}
	return txs
}

func (d *data) Transactions(_ context.Context, itemID ledger.ItemID) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range d.txs {
		if tx.ItemID == itemID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (d *data) Category(_ context.Context, id ledger.CategoryID) (ledger.Category, error) {
	c, ok := d.categories[id]
	if !ok {
		return ledger.Category{}, fmt.Errorf("%w: %d", ledger.ErrCategoryNotFound, id)
	}
	return c, nil
}

func (d *data) Categories(_ context.Context) ([]ledger.Category, error) {
	out := make([]ledger.Category, 0, len(d.categories))
	for _, c := range d.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *data) Summary(_ context.Context, r ledger.SummaryRange) (ledger.Summary, error) {
	items := make([]ledger.Item, 0, len(d.items))
	for _, it := range d.items {
		items = append(items, it)
	}
	return ledger.Summarize(r, d.txs, items), nil
}

func (d *data) InsertItem(ctx context.Context, it ledger.Item) (ledger.Item, error) {
	if _, err := d.ItemBySKU(ctx, it.SKU); err == nil {
		return ledger.Item{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateSKU, it.SKU)
	}
	if !it.Position().Valid() {
		return ledger.Item{}, ledger.ErrConstraint
	}
	d.nextItem++
	it.ID = d.nextItem
	d.items[it.ID] = it
	return it, nil
}

func (d *data) UpdateItem(_ context.Context, it ledger.Item) error {
	prev, ok := d.items[it.ID]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrItemNotFound, it.ID)
	}
	if !it.Position().Valid() {
		return fmt.Errorf("%w: item %d snapshot %s", ledger.ErrConstraint, it.ID, it.Position())
	}
	it.SKU = prev.SKU
	it.CreatedAt = prev.CreatedAt
	d.items[it.ID] = it
	return nil
}

func (d *data) InsertTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if _, ok := d.items[tx.ItemID]; !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: %d", ledger.ErrItemNotFound, tx.ItemID)
	}
	if _, ok := d.idempotency[tx.IdempotencyKey]; ok {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateIdempotencyKey, tx.IdempotencyKey)
	}
	if !tx.Kind.ValidSign(tx.QuantityChange) {
		return ledger.Transaction{}, fmt.Errorf("%w: %s with quantity change %s", ledger.ErrConstraint, tx.Kind, tx.QuantityChange)
	}
	tx.ID = ledger.TransactionID(len(d.txs) + 1)
	tx.Voided = false
	d.txs = append(d.txs, tx)
	d.idempotency[tx.IdempotencyKey] = tx.ID
	return tx, nil
}

func (d *data) MarkVoided(ctx context.Context, id ledger.TransactionID) error {
	tx, err := d.Transaction(ctx, id)
	if err != nil {
		return err
	}
	if tx.Voided {
		return ledger.ErrAlreadyVoided
	}
	d.txs[id-1].Voided = true
	return nil
}

func (d *data) InsertCategory(ctx context.Context, c ledger.Category) (ledger.Category, error) {
	for _, existing := range d.categories {
		if existing.Name == c.Name {
			return ledger.Category{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateCategory, c.Name)
		}
	}
	if c.ParentID != nil {
		if _, err := d.Category(ctx, *c.ParentID); err != nil {
			return ledger.Category{}, err
		}
	}
	d.nextCat++
	c.ID = d.nextCat
	d.categories[c.ID] = c
	return c, nil
}

var (
	_ ledger.Store      = (*Memory)(nil)
	_ ledger.UnitOfWork = (*data)(nil)
)
