package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-ledger/ledger"
	"github.com/warp/inventory-ledger/ledger/store"
	"github.com/warp/inventory-ledger/store/sqlite"
)

func TestScheduler_IntegrityCheckHaltsOnDrift(t *testing.T) {
	// GIVEN: a running scheduler over a ledger whose snapshot drifts
	ctx := context.Background()
	mem := store.NewMemory()
	l, err := ledger.New(mem, ledger.WithLogger(quietLogger()))
	require.NoError(t, err)
	item, err := l.CreateItem(ctx, ledger.NewItem{SKU: "TICK", Name: "Tick"})
	require.NoError(t, err)

	s := NewScheduler(l, quietLogger())
	s.CheckInterval = 10 * time.Millisecond
	s.Start()
	defer s.Stop()

	// WHEN: the stored quantity is corrupted
	mem.Tamper(func(items map[ledger.ItemID]ledger.Item, _ []ledger.Transaction) {
		it := items[item.ID]
		it.QuantityOnHand = decimal.NewFromInt(3)
		items[it.ID] = it
	})

	// THEN: a scheduled check halts the ledger
	assert.Eventually(t, func() bool { return l.Halted() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, ledger.IsIntegrity(l.Halted()))
}

func TestScheduler_WritesTimestampedBackups(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "live.db"), sqlite.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	l, err := ledger.New(db, ledger.WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = l.CreateItem(ctx, ledger.NewItem{SKU: "B", Name: "Backed up"})
	require.NoError(t, err)

	backups := filepath.Join(dir, "backups")
	require.NoError(t, os.Mkdir(backups, 0o755))

	s := NewScheduler(l, quietLogger())
	s.BackupInterval = 10 * time.Millisecond
	s.BackupDir = backups
	s.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }
	s.Start()

	want := filepath.Join(backups, "inventory-20250301-093000.db")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(want)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	// later ticks hit the same name and are refused, never overwritten
	entries, err := os.ReadDir(backups)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScheduler_NoJobsDoesNotStart(t *testing.T) {
	l, err := ledger.New(store.NewMemory(), ledger.WithLogger(quietLogger()))
	require.NoError(t, err)

	s := NewScheduler(l, quietLogger())
	s.BackupInterval = time.Second // no dir
	s.Start()

	assert.Nil(t, s.cancel)
	s.Stop()
}

func TestScheduler_CountsConsecutiveBackupFailures(t *testing.T) {
	// GIVEN: a store that cannot back up
	l, err := ledger.New(store.NewMemory(), ledger.WithLogger(quietLogger()))
	require.NoError(t, err)
	s := NewScheduler(l, quietLogger())
	s.BackupDir = t.TempDir()
	ctx := context.Background()

	// WHEN: two backups run
	s.backup(ctx)
	s.backup(ctx)

	// THEN: both failures are counted
	assert.Equal(t, 2, s.backupFailures)
}

func TestScheduler_SuccessfulBackupResetsFailures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "live.db"), sqlite.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	l, err := ledger.New(db, ledger.WithLogger(quietLogger()))
	require.NoError(t, err)

	s := NewScheduler(l, quietLogger())
	s.BackupDir = dir
	s.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }
	s.backupFailures = 3

	s.backup(ctx)
	assert.Equal(t, 0, s.backupFailures)

	// same second, same name: refused and counted
	s.backup(ctx)
	assert.Equal(t, 1, s.backupFailures)
}
