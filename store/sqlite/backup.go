package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/ledger"
)

// tmpSuffix marks a backup that has not been verified yet.
const tmpSuffix = ".tmp"

// Backup copies the live database into a new file at dest using SQLite's
// online backup API. The copy is taken in one step under a read
// transaction, so it is a single point in time even while the WAL holds
// uncheckpointed frames. A file copy of the main database would not be.
//
// The copy is written to dest+".tmp" in the same directory, verified, and
// only then renamed to dest, so dest is either absent or a complete,
// verified database. dest must not exist.
func (s *Store) Backup(ctx context.Context, dest string) error {
	if dest == "" {
		return errors.New("backup destination is required")
	}
	if s.isLive(dest) {
		return fmt.Errorf("%w: %s is the live database", ledger.ErrBackupExists, dest)
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s", ledger.ErrBackupExists, dest)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat backup destination: %w", err)
	}

	tmp := dest + tmpSuffix
	// left behind by a crash mid-backup
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear stale backup: %w", err)
	}

	if err := s.backupTo(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := verify(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s", ledger.ErrBackupExists, dest)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move backup into place: %w", err)
	}

	s.log.WithFields(logrus.Fields{"src": s.path, "dest": dest}).Debug("online backup complete")
	return nil
}

// Restore overwrites the live database with the one at src, page by page,
// through the same online backup API run in the other direction. src is
// checked with PRAGMA integrity_check first; the live database is not
// touched when that fails. Open connections see the restored contents on
// their next query.
func (s *Store) Restore(ctx context.Context, src string) error {
	if src == "" {
		return errors.New("restore source is required")
	}
	if s.isLive(src) {
		return fmt.Errorf("%w: %s is the live database", ledger.ErrInvalidBackupName, src)
	}
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ledger.ErrBackupNotFound, src)
	} else if err != nil {
		return fmt.Errorf("failed to stat restore source: %w", err)
	}
	if err := verify(ctx, src); err != nil {
		return err
	}

	srcDB, err := sql.Open("sqlite3", src)
	if err != nil {
		return fmt.Errorf("failed to open restore source: %w", err)
	}
	defer srcDB.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := copyDatabase(ctx, s.db, srcDB); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"src": src, "dest": s.path}).Debug("restore complete")
	return nil
}

func (s *Store) isLive(path string) bool {
	if s.path == ":memory:" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	live, err := filepath.Abs(s.path)
	return err == nil && live == abs
}

func (s *Store) backupTo(ctx context.Context, dest string) error {
	destDB, err := sql.Open("sqlite3", dest)
	if err != nil {
		return fmt.Errorf("failed to open backup destination: %w", err)
	}
	defer destDB.Close()
	return copyDatabase(ctx, destDB, s.db)
}

// copyDatabase copies every page of from's main database into to's.
func copyDatabase(ctx context.Context, to, from *sql.DB) error {
	destConn, err := to.Conn(ctx)
	if err != nil {
		return mapError(fmt.Errorf("failed to connect to backup destination: %w", err))
	}
	defer destConn.Close()

	srcConn, err := from.Conn(ctx)
	if err != nil {
		return mapError(fmt.Errorf("failed to connect to backup source: %w", err))
	}
	defer srcConn.Close()

	return destConn.Raw(func(destRaw any) error {
		return srcConn.Raw(func(srcRaw any) error {
			dst, ok := destRaw.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected destination driver connection %T", destRaw)
			}
			src, ok := srcRaw.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected source driver connection %T", srcRaw)
			}

			b, err := dst.Backup("main", src, "main")
			if err != nil {
				return mapError(fmt.Errorf("failed to start backup: %w", err))
			}
			done, err := b.Step(-1)
			if err != nil {
				b.Finish()
				return mapError(fmt.Errorf("backup step failed: %w", err))
			}
			if !done {
				b.Finish()
				return errors.New("backup did not complete in one step")
			}
			if err := b.Finish(); err != nil {
				return fmt.Errorf("failed to finish backup: %w", err)
			}
			return nil
		})
	})
}

// verify runs SQLite's integrity check on the file at path.
func verify(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open backup for verification: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to verify backup: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("backup failed integrity check: %s", result)
	}
	return nil
}
