package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultSearchLimit caps SearchByPrefix when no limit is given.
const DefaultSearchLimit = 20

// =============================================================================
// ITEMS
// =============================================================================

// CreateItem registers a new SKU with an empty snapshot.
func (l *Ledger) CreateItem(ctx context.Context, in NewItem) (Item, error) {
	sku := strings.TrimSpace(in.SKU)
	name := strings.TrimSpace(in.Name)
	if sku == "" || name == "" {
		return Item{}, fmt.Errorf("%w: sku and name are required", ErrInvalidItem)
	}
	threshold := DefaultReorderThreshold
	if in.ReorderThreshold != nil {
		threshold = *in.ReorderThreshold
	}
	if threshold < 0 {
		return Item{}, fmt.Errorf("%w: reorder threshold %d", ErrInvalidItem, threshold)
	}

	var item Item
	err := l.commit(ctx, func(uow UnitOfWork) error {
		if in.CategoryID != nil {
			if _, err := uow.Category(ctx, *in.CategoryID); err != nil {
				return err
			}
		}
		now := l.timestamp(l.now())
		var err error
		item, err = uow.InsertItem(ctx, Item{
			SKU:              sku,
			Name:             name,
			CategoryID:       in.CategoryID,
			QuantityOnHand:   decimal.Zero,
			ReorderThreshold: threshold,
			Active:           true,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		return err
	})
	if err != nil {
		return Item{}, err
	}
	l.log.WithFields(logrus.Fields{"item_id": item.ID, "sku": item.SKU}).Info("item created")
	return item, nil
}

// UpdateItem changes descriptive attributes. The snapshot is untouched.
func (l *Ledger) UpdateItem(ctx context.Context, id ItemID, in ItemUpdate) (Item, error) {
	var item Item
	err := l.commit(ctx, func(uow UnitOfWork) error {
		var err error
		item, err = uow.Item(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", ErrInvalidItem)
			}
			item.Name = name
		}
		if in.ReorderThreshold != nil {
			if *in.ReorderThreshold < 0 {
				return fmt.Errorf("%w: reorder threshold %d", ErrInvalidItem, *in.ReorderThreshold)
			}
			item.ReorderThreshold = *in.ReorderThreshold
		}
		if in.CategoryID != nil {
			if _, err := uow.Category(ctx, *in.CategoryID); err != nil {
				return err
			}
			item.CategoryID = in.CategoryID
		}
		item.UpdatedAt = l.timestamp(l.now())
		return uow.UpdateItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeactivateItem soft-deletes an item. Its history stays; new intake and
// distribution are refused, voids are still allowed.
func (l *Ledger) DeactivateItem(ctx context.Context, id ItemID) (Item, error) {
	var item Item
	err := l.commit(ctx, func(uow UnitOfWork) error {
		var err error
		item, err = uow.Item(ctx, id)
		if err != nil {
			return err
		}
		if !item.Active {
			return nil
		}
		item.Active = false
		item.UpdatedAt = l.timestamp(l.now())
		return uow.UpdateItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	l.log.WithFields(logrus.Fields{"item_id": item.ID, "sku": item.SKU}).Info("item deactivated")
	return item, nil
}

func (l *Ledger) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.store.Items(ctx, filter)
}

// ItemsBelowThreshold lists active items whose quantity is under their
// reorder threshold.
func (l *Ledger) ItemsBelowThreshold(ctx context.Context) ([]Item, error) {
	return l.ListItems(ctx, ItemFilter{ActiveOnly: true, BelowThreshold: true})
}

// GetSnapshot returns the item's current derived state.
func (l *Ledger) GetSnapshot(ctx context.Context, id ItemID) (Item, error) {
	if err := l.ready(); err != nil {
		return Item{}, err
	}
	return l.store.Item(ctx, id)
}

func (l *Ledger) GetSnapshotBySKU(ctx context.Context, sku string) (Item, error) {
	if err := l.ready(); err != nil {
		return Item{}, err
	}
	return l.store.ItemBySKU(ctx, strings.TrimSpace(sku))
}

// SearchByPrefix is the SKU/name type-ahead. An empty prefix matches nothing.
func (l *Ledger) SearchByPrefix(ctx context.Context, prefix string, limit int) ([]Item, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return l.store.SearchItems(ctx, prefix, limit)
}

// =============================================================================
// CATEGORIES
// =============================================================================

// CreateCategory adds a category. A parent must itself be top-level.
func (l *Ledger) CreateCategory(ctx context.Context, c Category) (Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Category{}, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	err := l.commit(ctx, func(uow UnitOfWork) error {
		if c.ParentID != nil {
			parent, err := uow.Category(ctx, *c.ParentID)
			if err != nil {
				return err
			}
			if parent.ParentID != nil {
				return fmt.Errorf("%w: parent %q is already a subcategory", ErrCategoryDepth, parent.Name)
			}
		}
		c.CreatedAt = l.timestamp(l.now())
		var err error
		c, err = uow.InsertCategory(ctx, c)
		return err
	})
	if err != nil {
		return Category{}, err
	}
	return c, nil
}

func (l *Ledger) ListCategories(ctx context.Context) ([]Category, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.store.Categories(ctx)
}
