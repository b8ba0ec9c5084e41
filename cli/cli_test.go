package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/money"
)

// exitCalled is panicked by the test exit handler so a stray kong exit
// fails the test instead of killing the binary.
type exitCalled int

type result struct {
	out    string
	errOut string
	err    error
}

// run parses args like the real binary and runs the selected command.
func run(t *testing.T, args ...string) result {
	t.Helper()
	var c CLI
	var out, errOut bytes.Buffer
	parser, err := New(&c,
		kong.Writers(&out, &errOut),
		kong.Exit(func(code int) { panic(exitCalled(code)) }),
	)
	require.NoError(t, err)

	ctx, err := parser.Parse(args)
	if err != nil {
		return result{out: out.String(), errOut: errOut.String(), err: err}
	}
	err = ctx.Run()
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

// dbRunner runs commands against one database file.
func dbRunner(t *testing.T) (string, func(args ...string) result) {
	t.Helper()
	t.Setenv("INVENTORY_ACTOR", "")
	t.Setenv("INVENTORY_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "inventory.db")
	return path, func(args ...string) result {
		return run(t, append([]string{"--db", path}, args...)...)
	}
}

func TestCLI_RecordAndReport(t *testing.T) {
	// GIVEN: an item
	_, inv := dbRunner(t)
	r := inv("item", "add", "PRD-APPLE", "Apples", "--threshold", "5")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "PRD-APPLE")

	// WHEN: buying 10 at $2.50 and handing 4 to clients
	r = inv("--actor", "alice", "purchase", "PRD-APPLE", "10", "--unit-cost", "2.50", "--supplier", "Acme")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "$25.00")

	r = inv("distribute", "PRD-APPLE", "4", "--reason", "client")
	require.NoError(t, r.err, r.errOut)

	// THEN: the cost of goods is 4 x $2.50 and $15.00 stays on the books
	assert.Contains(t, r.out, "$10.00")
	assert.Contains(t, r.out, "$15.00")

	r = inv("item", "show", "PRD-APPLE")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "$15.00")
	assert.Contains(t, r.out, "$2.50")

	// AND: the history lists both rows with the actor that recorded them
	r = inv("history", "PRD-APPLE")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "PURCHASE")
	assert.Contains(t, r.out, "DISTRIBUTION")
	assert.Contains(t, r.out, "alice")

	r = inv("summary")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "CLIENT")
	assert.Contains(t, r.out, "inventory value $15.00")
}

func TestCLI_ItemResolvesByID(t *testing.T) {
	_, inv := dbRunner(t)
	require.NoError(t, inv("item", "add", "SKU-1", "First").err)

	r := inv("donate", "1", "3", "--fmv", "1.00", "--donor", "Neighbor")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "SKU-1")

	r = inv("item", "show", "404")
	assert.ErrorIs(t, r.err, ledger.ErrItemNotFound)
}

func TestCLI_RejectsBadArguments(t *testing.T) {
	_, inv := dbRunner(t)
	require.NoError(t, inv("item", "add", "X", "Thing").err)

	tests := []struct {
		name string
		args []string
	}{
		{"quantity not a number", []string{"purchase", "X", "lots", "--unit-cost", "1"}},
		{"negative unit cost", []string{"purchase", "X", "1", "--unit-cost", "-1"}},
		{"missing unit cost", []string{"purchase", "X", "1"}},
		{"unknown reason", []string{"distribute", "X", "1", "--reason", "theft"}},
		{"more than on hand", []string{"distribute", "X", "1", "--reason", "client"}},
		{"zero quantity", []string{"donate", "X", "0"}},
		{"bad range", []string{"summary", "--from", "yesterday"}},
		{"void without reason", []string{"void", "1", "--yes"}},
		{"unknown currency", []string{"--currency", "ZZZ", "item", "list"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, inv(tt.args...).err)
		})
	}

	r := inv("summary", "--from", "2025-02-01", "--to", "2025-01-01")
	assert.ErrorIs(t, r.err, ledger.ErrInvalidRange)
}

func TestCLI_Void(t *testing.T) {
	// GIVEN: a purchase typed with the wrong quantity
	_, inv := dbRunner(t)
	require.NoError(t, inv("item", "add", "SOAP", "Soap").err)
	require.NoError(t, inv("purchase", "SOAP", "1000", "--unit-cost", "0.75").err)

	// WHEN: voiding without --yes and without a terminal
	r := inv("void", "1", "--reason", "typo")

	// THEN: the prompt defaults to no
	assert.ErrorIs(t, r.err, ErrVoidDeclined)

	// WHEN: voiding with --yes
	r = inv("void", "1", "--reason", "typo", "--yes")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "correction #2")

	// THEN: the snapshot is back to empty and a second void is refused
	r = inv("item", "show", "SOAP")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "$0.00")

	r = inv("void", "1", "--reason", "again", "--yes")
	assert.ErrorIs(t, r.err, ledger.ErrAlreadyVoided)
}

func TestCLI_DuplicateKeyIsRefused(t *testing.T) {
	_, inv := dbRunner(t)
	require.NoError(t, inv("item", "add", "K", "Keyed").err)

	require.NoError(t, inv("purchase", "K", "1", "--unit-cost", "1", "--key", "po-7").err)
	r := inv("purchase", "K", "1", "--unit-cost", "1", "--key", "po-7")
	assert.ErrorIs(t, r.err, ledger.ErrDuplicateIdempotencyKey)
}

func TestCLI_CategoriesSearchAndList(t *testing.T) {
	_, inv := dbRunner(t)
	require.NoError(t, inv("category", "add", "Food").err)
	require.NoError(t, inv("category", "add", "Produce", "--parent", "1").err)
	require.NoError(t, inv("item", "add", "PRD-PEAR", "Pears", "--category", "2").err)
	require.NoError(t, inv("item", "add", "CAN-BEAN", "Beans").err)

	r := inv("category", "list")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Produce")

	r = inv("search", "PRD")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "PRD-PEAR")
	assert.NotContains(t, r.out, "CAN-BEAN")

	r = inv("item", "list", "--category", "2")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "PRD-PEAR")
	assert.NotContains(t, r.out, "CAN-BEAN")

	// both start at zero, under the default threshold
	r = inv("item", "list", "--low")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "low")

	require.NoError(t, inv("item", "update", "CAN-BEAN", "--name", "Black beans", "--threshold", "0").err)
	require.NoError(t, inv("item", "deactivate", "PRD-PEAR").err)

	r = inv("item", "list", "--active")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Black beans")
	assert.NotContains(t, r.out, "PRD-PEAR")

	r = inv("search", "PRD")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "no match")
}

func TestCLI_SeedBackupAndCheck(t *testing.T) {
	// GIVEN: the void-correction scenario
	_, inv := dbRunner(t)
	r := inv("seed", "--list")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "food-pantry")

	require.NoError(t, inv("seed", "void-correction").err)
	assert.Error(t, inv("seed", "food-pantry").err)

	// WHEN: checking and backing up
	r = inv("check")
	require.NoError(t, r.err)

	dest := filepath.Join(t.TempDir(), "copy.db")
	r = inv("backup", dest)
	require.NoError(t, r.err, r.errOut)

	// THEN: the backup is a working database with the same snapshot
	r = run(t, "--db", dest, "item", "show", "HYG-SOAP")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "260")
	assert.Contains(t, r.out, "$195.00")

	assert.Error(t, inv("backup", dest).err)
}

// tamper edits a snapshot behind the ledger's back.
func tamper(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("UPDATE items SET cost_basis_cents = cost_basis_cents + 1")
	require.NoError(t, err)
}

func TestCLI_CheckReportsDrift(t *testing.T) {
	path, inv := dbRunner(t)
	require.NoError(t, inv("item", "add", "DRIFT", "Drifting").err)
	require.NoError(t, inv("purchase", "DRIFT", "2", "--unit-cost", "5").err)
	tamper(t, path)

	r := inv("check")
	assert.ErrorIs(t, r.err, ledger.ErrIntegrity)
	assert.Contains(t, r.out, "DRIFT")
}

func TestCLI_RestoreRepairsDrift(t *testing.T) {
	// GIVEN: a backup at $10.00, then more stock and a drifted snapshot
	path, inv := dbRunner(t)
	require.NoError(t, inv("item", "add", "BACK", "Backed up").err)
	require.NoError(t, inv("purchase", "BACK", "2", "--unit-cost", "5").err)
	dest := filepath.Join(t.TempDir(), "good.db")
	require.NoError(t, inv("backup", dest).err)
	require.NoError(t, inv("purchase", "BACK", "3", "--unit-cost", "5").err)
	tamper(t, path)
	require.ErrorIs(t, inv("check").err, ledger.ErrIntegrity)

	// WHEN: restoring without --yes and without a terminal
	r := inv("restore", dest)

	// THEN: nothing happens
	assert.ErrorIs(t, r.err, ErrRestoreDeclined)

	// WHEN: restoring with --yes
	r = inv("restore", dest, "--yes")
	require.NoError(t, r.err, r.errOut)

	// THEN: the database is back at the backup and checks clean
	assert.NoError(t, inv("check").err)
	r = inv("item", "show", "BACK")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "$10.00")

	// AND: a missing file is refused by the parser
	assert.Error(t, inv("restore", filepath.Join(t.TempDir(), "missing.db"), "--yes").err)
}

func TestCLI_TransactionsAcrossItems(t *testing.T) {
	_, inv := dbRunner(t)
	require.NoError(t, inv("item", "add", "ONE", "One").err)
	require.NoError(t, inv("item", "add", "TWO", "Two").err)
	require.NoError(t, inv("purchase", "ONE", "1", "--unit-cost", "1").err)
	require.NoError(t, inv("donate", "TWO", "4").err)

	r := inv("transactions", "--from", "2000-01-01")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "ITEM")
	assert.Contains(t, r.out, "PURCHASE")
	assert.Contains(t, r.out, "DONATION")

	r = inv("transactions", "--to", "2000-01-01")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "no transactions in range")

	assert.ErrorIs(t, inv("transactions", "--from", "yesterday").err, ledger.ErrInvalidRange)
}

func TestServe_RefusesOnDrift(t *testing.T) {
	path, inv := dbRunner(t)
	require.NoError(t, inv("item", "add", "DRIFT", "Drifting").err)
	require.NoError(t, inv("purchase", "DRIFT", "2", "--unit-cost", "5").err)
	tamper(t, path)

	g := &Globals{DB: path, Currency: money.DefaultCurrency}
	s, err := g.connect(io.Discard, io.Discard, logrus.PanicLevel)
	require.NoError(t, err)
	defer s.Close()

	cmd := &ServeCmd{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}
	err = cmd.serve(context.Background(), s, func(string) { t.Error("server started") })
	assert.ErrorIs(t, err, ledger.ErrIntegrity)
}

func TestServe_ServesAndShutsDown(t *testing.T) {
	// GIVEN: a seeded database
	path, inv := dbRunner(t)
	require.NoError(t, inv("seed", "food-pantry").err)

	g := &Globals{DB: path, Currency: "EUR"}
	s, err := g.connect(io.Discard, io.Discard, logrus.PanicLevel)
	require.NoError(t, err)
	defer s.Close()

	// WHEN: serving on a free port
	ctx, cancel := context.WithCancel(context.Background())
	addrc := make(chan string, 1)
	done := make(chan error, 1)
	backups := t.TempDir()
	cmd := &ServeCmd{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second, BackupDir: backups}
	go func() { done <- cmd.serve(ctx, s, func(addr string) { addrc <- addr }) }()

	var addr string
	select {
	case addr = <-addrc:
	case err := <-done:
		t.Fatalf("serve returned early: %v", err)
	}

	// THEN: the API answers, formatting in the configured currency
	resp, err := http.Get("http://" + addr + "/api/items/sku/PRD-APPLE")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "€")

	// AND: HTTP backups land in the backup directory
	resp, err = http.Post("http://"+addr+"/api/admin/backup", "application/json", strings.NewReader(`{"name":"served.db"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = os.Stat(filepath.Join(backups, "served.db"))
	assert.NoError(t, err)

	// AND: cancelling shuts it down cleanly
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestCLI_RequiresDatabase(t *testing.T) {
	t.Setenv("INVENTORY_DB", "")
	os.Unsetenv("INVENTORY_DB")
	r := run(t, "item", "list")
	assert.Error(t, r.err)
}

func TestQuantityDecode(t *testing.T) {
	var args struct {
		Q Quantity `arg:""`
	}
	parser, err := kong.New(&args, kong.Exit(func(int) { panic("exit") }))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"2.125"})
	require.NoError(t, err)
	assert.Equal(t, "2.125", args.Q.String())

	_, err = parser.Parse([]string{"two"})
	assert.Error(t, err)
}
