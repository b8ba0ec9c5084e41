package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/warp/inventory-ledger/api"
	"github.com/warp/inventory-ledger/ledger"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type SummaryCmd struct {
	From string `help:"Start date (YYYY-MM-DD or RFC 3339)." placeholder:"DATE"`
	To   string `help:"End date, inclusive." placeholder:"DATE"`
}

func (cmd *SummaryCmd) Run(ctx *kong.Context, globals *Globals) error {
	rng, err := ledger.ParseRange(cmd.From, cmd.To)
	if err != nil {
		return err
	}
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	sum, err := s.ledger.Summary(context.Background(), rng)
	if err != nil {
		return err
	}

	row := func(label string, t ledger.Totals) []string {
		return []string{label, strconv.Itoa(t.Count), t.Quantity.String(), s.format(t.Amount)}
	}
	rows := [][]string{
		row("purchases", sum.Purchases),
		row("donations (fmv)", sum.Donations),
		row("distributions (cogs)", sum.Distributions),
	}
	reasons := maps.Keys(sum.ByReason)
	slices.Sort(reasons)
	for _, r := range reasons {
		rows = append(rows, row("  "+string(r), sum.ByReason[r]))
	}
	printTable(s.out, []string{"", "COUNT", "QUANTITY", "AMOUNT"}, rows)
	printInfof(s.out, "inventory value %s", s.format(sum.InventoryValue))
	return nil
}

type BackupCmd struct {
	Dest string `arg:"" help:"Destination file; must not exist." type:"path"`
}

func (cmd *BackupCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ledger.Backup(context.Background(), cmd.Dest); err != nil {
		return err
	}
	printSuccess(s.out, "backup written to "+cmd.Dest)
	return nil
}

// ErrRestoreDeclined is returned when the restore prompt is answered no.
var ErrRestoreDeclined = errors.New("restore cancelled")

type RestoreCmd struct {
	Src string `arg:"" help:"Backup file to restore." type:"existingfile"`
	Yes bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (cmd *RestoreCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if !cmd.Yes {
		ok, err := promptYesNo(fmt.Sprintf("Replace everything in %s with %s?", globals.DB, cmd.Src))
		if err != nil {
			return err
		}
		if !ok {
			return ErrRestoreDeclined
		}
	}

	err = s.ledger.Restore(context.Background(), cmd.Src)
	var ierr *ledger.IntegrityError
	if errors.As(err, &ierr) {
		for _, m := range ierr.Mismatches {
			printError(s.out, m.String())
		}
		return ledger.ErrIntegrity
	}
	if err != nil {
		return err
	}
	printSuccess(s.out, "restored "+cmd.Src+", ledger matches every snapshot")
	return nil
}

type TransactionsCmd struct {
	From   string `help:"Start date (YYYY-MM-DD or RFC 3339)." placeholder:"DATE"`
	To     string `help:"End date, inclusive." placeholder:"DATE"`
	Limit  int    `help:"Page size." default:"50"`
	Offset int    `help:"Rows to skip."`
}

func (cmd *TransactionsCmd) Run(ctx *kong.Context, globals *Globals) error {
	rng, err := ledger.ParseRange(cmd.From, cmd.To)
	if err != nil {
		return err
	}
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	txs, err := s.ledger.TransactionsInRange(context.Background(), rng, ledger.Page{Limit: cmd.Limit, Offset: cmd.Offset})
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		printInfof(s.out, "no transactions in range")
		return nil
	}
	s.printTransactions(txs, true)
	return nil
}

type CheckCmd struct{}

func (cmd *CheckCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	err = s.ledger.CheckIntegrity(context.Background())
	var ierr *ledger.IntegrityError
	if errors.As(err, &ierr) {
		for _, m := range ierr.Mismatches {
			printError(s.out, m.String())
		}
		return ledger.ErrIntegrity
	}
	if err != nil {
		return err
	}
	printSuccess(s.out, "ledger matches every snapshot")
	return nil
}

type SeedCmd struct {
	Scenario string `arg:"" optional:"" help:"Scenario ID."`
	List     bool   `help:"List the available scenarios."`
}

func (cmd *SeedCmd) Run(ctx *kong.Context, globals *Globals) error {
	if cmd.List || cmd.Scenario == "" {
		rows := [][]string{}
		for _, sc := range api.Scenarios() {
			rows = append(rows, []string{sc.ID, sc.Name, sc.Description})
		}
		printTable(ctx.Stdout, []string{"ID", "NAME", "DESCRIPTION"}, rows)
		return nil
	}

	s, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := api.LoadScenario(context.Background(), s.ledger, cmd.Scenario); err != nil {
		return err
	}
	printSuccess(s.out, "loaded scenario "+cmd.Scenario)
	return nil
}
