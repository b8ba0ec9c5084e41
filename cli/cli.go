package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/money"
	"github.com/warp/inventory-ledger/store/sqlite"
	"golang.org/x/term"
)

// noteWidth caps the notes column in history tables.
const noteWidth = 40

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(successSymbol),
		message,
	)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		errorStyle.Render(errorSymbol),
		errorStyle.Render(message),
	)
}

func printInfof(w io.Writer, format string, args ...interface{}) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		infoStyle.Render(infoSymbol),
		formatted,
	)
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, _ = fmt.Fprintln(w, t.String())
}

// promptYesNo prompts the user with a yes/no question.
// Returns false by default if stdin is not a terminal.
func promptYesNo(question string) (bool, error) {
	if !isTerminal() {
		return false, nil
	}

	var confirm bool

	form := huh.NewConfirm().
		Title(question).
		WithButtonAlignment(lipgloss.Left).
		Value(&confirm)

	if err := form.Run(); err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	return confirm, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// =============================================================================
// ARGUMENT TYPES
// =============================================================================

// Quantity is a decimal command-line value.
type Quantity struct {
	decimal.Decimal
}

// Decode implements kong.MapperValue.
func (q *Quantity) Decode(ctx *kong.DecodeContext) error {
	var raw string
	if err := ctx.Scan.PopValueInto("quantity", &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid quantity %q", raw)
	}
	q.Decimal = d
	return nil
}

// Amount is a non-negative dollar amount ("2.50", "$1,200") held in cents.
type Amount struct {
	Cents money.Cents
}

// Decode implements kong.MapperValue.
func (a *Amount) Decode(ctx *kong.DecodeContext) error {
	var raw string
	if err := ctx.Scan.PopValueInto("amount", &raw); err != nil {
		return err
	}
	c, err := money.ParseNonNegative(raw)
	if err != nil {
		return err
	}
	a.Cents = c
	return nil
}

// =============================================================================
// SESSION
// =============================================================================

// session is an open database and the ledger over it.
type session struct {
	ledger   *ledger.Ledger
	store    *sqlite.Store
	log      *logrus.Logger
	out      io.Writer
	currency string
	actor    string
}

func (g *Globals) logger(w io.Writer, fallback logrus.Level) (*logrus.Logger, error) {
	level := fallback
	if g.LogLevel != "" {
		var err error
		if level, err = logrus.ParseLevel(g.LogLevel); err != nil {
			return nil, err
		}
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	if g.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

// open connects to the database named by --db.
func (g *Globals) open(ctx *kong.Context) (*session, error) {
	return g.connect(ctx.Stdout, ctx.Stderr, logrus.WarnLevel)
}

// connect opens the database; logs go to errOut at fallback unless
// --log-level says otherwise.
func (g *Globals) connect(out, errOut io.Writer, fallback logrus.Level) (*session, error) {
	currency := strings.ToUpper(g.Currency)
	if !money.KnownCurrency(currency) {
		return nil, fmt.Errorf("unknown currency %q", g.Currency)
	}
	log, err := g.logger(errOut, fallback)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(g.DB, sqlite.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", g.DB, err)
	}
	l, err := ledger.New(store, ledger.WithLogger(log))
	if err != nil {
		store.Close()
		return nil, err
	}
	return &session{
		ledger:   l,
		store:    store,
		log:      log,
		out:      out,
		currency: currency,
		actor:    g.Actor,
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

func (s *session) meta(notes, key string) ledger.Meta {
	return ledger.Meta{Actor: s.actor, Notes: notes, IdempotencyKey: key}
}

func (s *session) format(c money.Cents) string {
	return money.Format(c, s.currency)
}

// resolveItem finds an item by SKU, then by numeric ID.
func (s *session) resolveItem(ctx context.Context, ref string) (ledger.Item, error) {
	it, err := s.ledger.GetSnapshotBySKU(ctx, ref)
	if err == nil || !errors.Is(err, ledger.ErrItemNotFound) {
		return it, err
	}
	id, perr := strconv.ParseInt(ref, 10, 64)
	if perr != nil {
		return ledger.Item{}, err
	}
	return s.ledger.GetSnapshot(ctx, ledger.ItemID(id))
}

func (s *session) printItems(items []ledger.Item) {
	rows := make([][]string, len(items))
	for i, it := range items {
		status := ""
		switch {
		case !it.Active:
			status = "inactive"
		case it.BelowThreshold():
			status = "low"
		}
		rows[i] = []string{
			strconv.FormatInt(int64(it.ID), 10),
			it.SKU,
			it.Name,
			it.QuantityOnHand.String(),
			s.format(it.UnitCost()),
			s.format(it.CostBasis),
			status,
		}
	}
	printTable(s.out, []string{"ID", "SKU", "NAME", "ON HAND", "UNIT COST", "VALUE", "STATUS"}, rows)
}

// printTransactions prints a history table; withItem adds the item ID
// column for listings that span items.
func (s *session) printTransactions(txs []ledger.Transaction, withItem bool) {
	rows := make([][]string, len(txs))
	for i, tx := range txs {
		note := tx.Notes
		if tx.CorrectsID != nil {
			note = fmt.Sprintf("corrects #%d: %s", *tx.CorrectsID, tx.Notes)
		}
		note = runewidth.Truncate(note, noteWidth, "…")
		rows[i] = []string{
			strconv.FormatInt(int64(tx.ID), 10),
			strconv.FormatInt(int64(tx.ItemID), 10),
			tx.OccurredAt.Format("2006-01-02 15:04"),
			string(tx.Kind),
			tx.QuantityChange.String(),
			s.format(tx.UnitCost),
			s.format(tx.FinancialImpact),
			string(tx.Reason),
			string(tx.State()),
			tx.Actor,
			note,
		}
	}
	headers := []string{"ID", "ITEM", "WHEN", "KIND", "QTY", "UNIT", "IMPACT", "REASON", "STATE", "ACTOR", "NOTES"}
	if !withItem {
		headers = append(headers[:1], headers[2:]...)
		for i, row := range rows {
			rows[i] = append(row[:1], row[2:]...)
		}
	}
	printTable(s.out, headers, rows)
}

func (s *session) printReceipt(rc ledger.Receipt) {
	printSuccess(s.out, fmt.Sprintf("#%d %s %s %s",
		rc.Transaction.ID, rc.Transaction.Kind, rc.Item.SKU, rc.Transaction.QuantityChange))
	if rc.Depletion != nil {
		printInfof(s.out, "cost of goods %s at %s/unit", s.format(rc.Depletion.COGS), s.format(rc.Depletion.UnitCost))
		if rc.Depletion.Clamped {
			printInfof(s.out, "cost of goods capped at the remaining basis")
		}
		if rc.Depletion.Residual > 0 {
			printInfof(s.out, "%s of basis remains at zero quantity", s.format(rc.Depletion.Residual))
		}
	}
	printInfof(s.out, "%s on hand %s, value %s, unit cost %s",
		rc.Item.SKU, rc.Item.QuantityOnHand, s.format(rc.Item.CostBasis), s.format(rc.Item.UnitCost()))
}
