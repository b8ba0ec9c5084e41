package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/warp/inventory-ledger/ledger"
)

// ErrVoidDeclined is returned when the confirmation prompt is answered no.
var ErrVoidDeclined = errors.New("void cancelled")

// EventFlags are the audit fields every recorded event accepts.
type EventFlags struct {
	Notes string `help:"Free-text notes."`
	Key   string `help:"Idempotency key; a retry with the same key is refused." placeholder:"KEY"`
}

type PurchaseCmd struct {
	Item     string   `arg:"" help:"SKU or ID."`
	Quantity Quantity `arg:"" help:"Units bought (fractions allowed)."`
	UnitCost Amount   `required:"" help:"Cost per unit, e.g. 2.50." placeholder:"AMOUNT"`
	Supplier string   `help:"Supplier name."`
	EventFlags
}

func (cmd *PurchaseCmd) Run(ctx *kong.Context, globals *Globals) error {
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
	rc, err := s.ledger.RecordPurchase(bg, it.ID, ledger.Purchase{
		Quantity: cmd.Quantity.Decimal,
		UnitCost: cmd.UnitCost.Cents,
		Supplier: cmd.Supplier,
	}, s.meta(cmd.Notes, cmd.Key))
	if err != nil {
		return err
	}
	s.printReceipt(rc)
	return nil
}

type DonateCmd struct {
	Item     string   `arg:"" help:"SKU or ID."`
	Quantity Quantity `arg:"" help:"Units received."`
	FMV      Amount   `name:"fmv" help:"Fair market value per unit (reporting only)." placeholder:"AMOUNT"`
	Donor    string   `help:"Donor name."`
	EventFlags
}

func (cmd *DonateCmd) Run(ctx *kong.Context, globals *Globals) error {
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
	rc, err := s.ledger.RecordDonation(bg, it.ID, ledger.Donation{
		Quantity:        cmd.Quantity.Decimal,
		FairMarketValue: cmd.FMV.Cents,
		Donor:           cmd.Donor,
	}, s.meta(cmd.Notes, cmd.Key))
	if err != nil {
		return err
	}
	s.printReceipt(rc)
	return nil
}

type DistributeCmd struct {
	Item     string   `arg:"" help:"SKU or ID."`
	Quantity Quantity `arg:"" help:"Units leaving stock."`
	Reason   string   `required:"" help:"CLIENT, SPOILAGE or INTERNAL."`
	EventFlags
}

func (cmd *DistributeCmd) Run(ctx *kong.Context, globals *Globals) error {
	reason, err := ledger.ParseReason(cmd.Reason)
	if err != nil {
		return err
	}
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
	rc, err := s.ledger.RecordDistribution(bg, it.ID, ledger.Distribution{
		Quantity: cmd.Quantity.Decimal,
		Reason:   reason,
	}, s.meta(cmd.Notes, cmd.Key))
	if err != nil {
		return err
	}
	s.printReceipt(rc)
	return nil
}

type VoidCmd struct {
	Transaction int64  `arg:"" help:"Transaction ID."`
	Reason      string `required:"" help:"Why the transaction is being voided."`
	Yes         bool   `short:"y" help:"Skip the confirmation prompt."`
	Notes       string `help:"Extra notes for the audit trail."`
}

func (cmd *VoidCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	bg := context.Background()
	id := ledger.TransactionID(cmd.Transaction)
	tx, err := s.ledger.GetTransaction(bg, id)
	if err != nil {
		return err
	}

	if !cmd.Yes {
		ok, err := promptYesNo(fmt.Sprintf("Void #%d %s %s (%s)?",
			tx.ID, tx.Kind, tx.QuantityChange, s.format(tx.FinancialImpact)))
		if err != nil {
			return err
		}
		if !ok {
			return ErrVoidDeclined
		}
	}

	res, err := s.ledger.VoidTransaction(bg, id, cmd.Reason, s.meta(cmd.Notes, ""))
	if err != nil {
		return err
	}
	printSuccess(s.out, fmt.Sprintf("voided #%d with correction #%d", res.Original.ID, res.Correction.ID))
	printInfof(s.out, "%s on hand %s, value %s",
		res.Item.SKU, res.Item.QuantityOnHand, s.format(res.Item.CostBasis))
	return nil
}

type HistoryCmd struct {
	Item   string `arg:"" help:"SKU or ID."`
	Limit  int    `help:"Page size." default:"50"`
	Offset int    `help:"Rows to skip."`
}

func (cmd *HistoryCmd) Run(ctx *kong.Context, globals *Globals) error {
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
	txs, err := s.ledger.GetHistory(bg, it.ID, ledger.Page{Limit: cmd.Limit, Offset: cmd.Offset})
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		printInfof(s.out, "no transactions for %s", it.SKU)
		return nil
	}
	s.printTransactions(txs, false)
	return nil
}
