/*
scheduler.go - Periodic integrity checks and backups

PURPOSE:
  While the server runs, periodically replays every item's log against its
  snapshot and, when a backup directory is configured, writes an online
  backup next to the previous ones.

DESIGN:
  - One background goroutine, one ticker per job
  - A failed integrity check halts ledger writes (the Ledger does that
    itself); the scheduler only logs it and keeps serving reads
  - Jobs log their own failures; backup failures are counted and the
    count is logged until a backup succeeds again
  - Backups are named inventory-YYYYMMDD-HHMMSS.db and never overwrite

CONFIGURATION:
  - CheckInterval:  How often to run the integrity check (0 disables)
  - BackupInterval: How often to back up (0 disables)
  - BackupDir:      Where backups go (required for backups)

USAGE:
  s := NewScheduler(l, log)
  s.CheckInterval = time.Hour
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - handlers.go: CheckIntegrity and Backup endpoints (manual runs)
  - ledger/reconcile.go: the check itself
*/
package api

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/ledger"
)

// BackupTimeLayout names scheduled backup files.
const BackupTimeLayout = "20060102-150405"

// BackupFileName is the name a backup taken at t gets by default.
func BackupFileName(t time.Time) string {
	return "inventory-" + t.UTC().Format(BackupTimeLayout) + ".db"
}

// Scheduler runs integrity checks and backups in the background.
type Scheduler struct {
	Ledger         *ledger.Ledger
	Log            logrus.FieldLogger
	CheckInterval  time.Duration
	BackupInterval time.Duration
	BackupDir      string

	now            func() time.Time
	backupFailures int // consecutive; touched only by the backup goroutine
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	mu             sync.Mutex
}

// NewScheduler creates a scheduler with both jobs disabled.
func NewScheduler(l *ledger.Ledger, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		Ledger: l,
		Log:    log.WithField("component", "scheduler"),
		now:    time.Now,
	}
}

// Start begins the scheduler. It is a no-op when no job is enabled or the
// scheduler is already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	backups := s.BackupInterval > 0 && s.BackupDir != ""
	if s.CheckInterval <= 0 && !backups {
		s.Log.Debug("no scheduled jobs, not starting")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.CheckInterval > 0 {
		s.wg.Add(1)
		go s.every(ctx, s.CheckInterval, s.check)
	}
	if backups {
		s.wg.Add(1)
		go s.every(ctx, s.BackupInterval, s.backup)
	}

	s.Log.WithFields(logrus.Fields{
		"check_interval":  s.CheckInterval.String(),
		"backup_interval": s.BackupInterval.String(),
		"backup_dir":      s.BackupDir,
	}).Info("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.Log.Info("scheduler stopped")
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, job func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			job(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	start := s.now()
	err := s.Ledger.CheckIntegrity(ctx)
	entry := s.Log.WithField("duration", s.now().Sub(start).String())
	if err != nil {
		entry.WithError(err).Error("scheduled integrity check failed")
		return
	}
	entry.Debug("scheduled integrity check passed")
}

func (s *Scheduler) backup(ctx context.Context) {
	dest := filepath.Join(s.BackupDir, BackupFileName(s.now()))
	if err := s.Ledger.Backup(ctx, dest); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.backupFailures++
		s.Log.WithError(err).WithFields(logrus.Fields{
			"dest":                 dest,
			"consecutive_failures": s.backupFailures,
		}).Error("scheduled backup failed")
		return
	}
	if s.backupFailures > 0 {
		s.Log.WithField("after_failures", s.backupFailures).Info("scheduled backups recovered")
	}
	s.backupFailures = 0
	s.Log.WithField("dest", dest).Info("scheduled backup written")
}
