/*
Package cli implements the inventory command line.

COMMANDS:
  serve                      Run the HTTP API (integrity check first)
  item add|list|show|update|deactivate
  category add|list
  purchase ITEM QTY --unit-cost
  donate ITEM QTY --fmv
  distribute ITEM QTY --reason
  void TX --reason [--yes]
  history ITEM
  transactions [--from] [--to]
  search PREFIX
  summary [--from] [--to]
  backup DEST
  restore SRC [--yes]
  check
  seed SCENARIO

ITEM is a SKU, or a numeric ID when no item has that SKU.

CONFIGURATION:
  Flags, then INVENTORY_* environment variables. A .env file in the working
  directory is loaded before parsing (existing variables win). There is no
  default database: --db or INVENTORY_DB is required.

SEE ALSO:
  - cmd/inventory/main.go: entry point
  - api/: what serve exposes
*/
package cli

import (
	"fmt"

	"github.com/alecthomas/kong"
)

var (
	// Version contains the application version number. It's set via ldflags
	// when building.
	Version = ""

	// CommitSHA contains the SHA of the commit that this application was built
	// against. It's set via ldflags when building.
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	DB        string `help:"SQLite database path (':memory:' for a throwaway database)." env:"INVENTORY_DB" required:"" placeholder:"PATH"`
	LogLevel  string `help:"Log level: debug, info, warn or error (serve defaults to info, other commands to warn)." env:"INVENTORY_LOG_LEVEL" placeholder:"LEVEL"`
	LogFormat string `help:"Log format." enum:"text,json" default:"text" env:"INVENTORY_LOG_FORMAT"`
	Currency  string `help:"ISO 4217 currency used to display amounts." default:"USD" env:"INVENTORY_CURRENCY"`
	Actor     string `help:"Actor recorded on writes." env:"INVENTORY_ACTOR"`
}

type Commands struct {
	Globals

	Serve        ServeCmd        `cmd:"" help:"Serve the HTTP API."`
	Item         ItemCmd         `cmd:"" help:"Manage items."`
	Category     CategoryCmd     `cmd:"" help:"Manage categories."`
	Purchase     PurchaseCmd     `cmd:"" help:"Record a purchase."`
	Donate       DonateCmd       `cmd:"" help:"Record a donation."`
	Distribute   DistributeCmd   `cmd:"" help:"Record a distribution."`
	Void         VoidCmd         `cmd:"" help:"Void a transaction with a compensating correction."`
	History      HistoryCmd      `cmd:"" help:"Show an item's transactions, newest first."`
	Transactions TransactionsCmd `cmd:"" help:"Show transactions of every item in a date range, newest first."`
	Search       SearchCmd       `cmd:"" help:"Find active items by SKU or name prefix."`
	Summary      SummaryCmd      `cmd:"" help:"Report purchases, donations and distributions."`
	Backup       BackupCmd       `cmd:"" help:"Write an online backup to a new file."`
	Restore      RestoreCmd      `cmd:"" help:"Replace the database with a backup, then check it."`
	Check        CheckCmd        `cmd:"" help:"Replay every item's log against its snapshot."`
	Seed         SeedCmd         `cmd:"" help:"Load a demo scenario into an empty database."`
}

// CLI is the root of the command tree.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Commands
}

// New builds the parser for c. Extra options (writers, exit handler) are
// applied last.
func New(c *CLI, opts ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Vars{
			"version": buildVersion(),
		},
		kong.Name("inventory"),
		kong.Description("Weighted-average cost inventory ledger."),
		kong.UsageOnError(),
		kong.Bind(&c.Globals),
	}
	return kong.New(c, append(base, opts...)...)
}

func buildVersion() string {
	version := Version
	if version == "" {
		version = "dev"
	}
	if CommitSHA == "" {
		return version
	}
	return fmt.Sprintf("%s (%s)", version, CommitSHA)
}
