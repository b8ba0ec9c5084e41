package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/warp/inventory-ledger/ledger"
)

type ItemCmd struct {
	Add        ItemAddCmd        `cmd:"" help:"Create an item with an empty snapshot."`
	List       ItemListCmd       `cmd:"" help:"List items."`
	Show       ItemShowCmd       `cmd:"" help:"Show one item's snapshot."`
	Update     ItemUpdateCmd     `cmd:"" help:"Change an item's name, category or reorder threshold."`
	Deactivate ItemDeactivateCmd `cmd:"" help:"Hide an item from search; its history stays."`
}

type ItemAddCmd struct {
	SKU       string `arg:"" help:"Unique stock-keeping unit."`
	Name      string `arg:"" help:"Display name."`
	Category  int64  `help:"Category ID." placeholder:"ID"`
	Threshold *int64 `help:"Reorder threshold (default 10)." placeholder:"N"`
}

func (cmd *ItemAddCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	in := ledger.NewItem{SKU: cmd.SKU, Name: cmd.Name, ReorderThreshold: cmd.Threshold}
	if cmd.Category > 0 {
		id := ledger.CategoryID(cmd.Category)
		in.CategoryID = &id
	}
	it, err := s.ledger.CreateItem(context.Background(), in)
	if err != nil {
		return err
	}
	printSuccess(s.out, fmt.Sprintf("created item #%d %s (%s)", it.ID, it.SKU, it.Name))
	return nil
}

type ItemListCmd struct {
	Active   bool  `help:"Only active items."`
	Low      bool  `help:"Only items below their reorder threshold."`
	Category int64 `help:"Only items in this category." placeholder:"ID"`
}

func (cmd *ItemListCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	f := ledger.ItemFilter{ActiveOnly: cmd.Active, BelowThreshold: cmd.Low}
	if cmd.Category > 0 {
		id := ledger.CategoryID(cmd.Category)
		f.CategoryID = &id
	}
	items, err := s.ledger.ListItems(context.Background(), f)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printInfof(s.out, "no items")
		return nil
	}
	s.printItems(items)
	return nil
}

type ItemShowCmd struct {
	Item string `arg:"" help:"SKU or ID."`
}

func (cmd *ItemShowCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	it, err := s.resolveItem(context.Background(), cmd.Item)
	if err != nil {
		return err
	}
	s.printItems([]ledger.Item{it})
	return nil
}

type ItemUpdateCmd struct {
	Item      string  `arg:"" help:"SKU or ID."`
	Name      *string `help:"New display name."`
	Category  *int64  `help:"New category ID." placeholder:"ID"`
	Threshold *int64  `help:"New reorder threshold." placeholder:"N"`
}

func (cmd *ItemUpdateCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	bg := context.Background()
	it, err := s.resolveItem(bg, cmd.Item)
	if err != nil {
		return err
	}
	in := ledger.ItemUpdate{Name: cmd.Name, ReorderThreshold: cmd.Threshold}
	if cmd.Category != nil {
		id := ledger.CategoryID(*cmd.Category)
		in.CategoryID = &id
	}
	it, err = s.ledger.UpdateItem(bg, it.ID, in)
	if err != nil {
		return err
	}
	printSuccess(s.out, "updated "+it.SKU)
	s.printItems([]ledger.Item{it})
	return nil
}

type ItemDeactivateCmd struct {
	Item string `arg:"" help:"SKU or ID."`
}

func (cmd *ItemDeactivateCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	bg := context.Background()
	it, err := s.resolveItem(bg, cmd.Item)
	if err != nil {
		return err
	}
	it, err = s.ledger.DeactivateItem(bg, it.ID)
	if err != nil {
		return err
	}
	printSuccess(s.out, "deactivated "+it.SKU)
	return nil
}

type SearchCmd struct {
	Prefix string `arg:"" help:"SKU or name prefix."`
	Limit  int    `help:"Maximum results." default:"20"`
}

func (cmd *SearchCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.ledger.SearchByPrefix(context.Background(), cmd.Prefix, cmd.Limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printInfof(s.out, "no match for %q", cmd.Prefix)
		return nil
	}
	s.printItems(items)
	return nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

type CategoryCmd struct {
	Add  CategoryAddCmd  `cmd:"" help:"Create a category."`
	List CategoryListCmd `cmd:"" help:"List categories."`
}

type CategoryAddCmd struct {
	Name        string `arg:"" help:"Category name."`
	Parent      int64  `help:"Parent category ID (two levels at most)." placeholder:"ID"`
	Description string `help:"Free-text description."`
}

func (cmd *CategoryAddCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	c := ledger.Category{Name: cmd.Name, Description: cmd.Description}
	if cmd.Parent > 0 {
		id := ledger.CategoryID(cmd.Parent)
		c.ParentID = &id
	}
	c, err = s.ledger.CreateCategory(context.Background(), c)
	if err != nil {
		return err
	}
	printSuccess(s.out, fmt.Sprintf("created category #%d %s", c.ID, c.Name))
	return nil
}

type CategoryListCmd struct{}

func (cmd *CategoryListCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	cats, err := s.ledger.ListCategories(context.Background())
	if err != nil {
		return err
	}
	rows := make([][]string, len(cats))
	for i, c := range cats {
		parent := ""
		if c.ParentID != nil {
			parent = strconv.FormatInt(int64(*c.ParentID), 10)
		}
		rows[i] = []string{strconv.FormatInt(int64(c.ID), 10), c.Name, parent, c.Description}
	}
	printTable(s.out, []string{"ID", "NAME", "PARENT", "DESCRIPTION"}, rows)
	return nil
}
