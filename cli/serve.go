/*
serve.go - HTTP server command

STARTUP SEQUENCE:
  1. Open the SQLite store and build the Ledger
  2. Replay every item's log; refuse to start on any mismatch
  3. Build the API handler and router
  4. Start the scheduler (periodic checks, optional backups)
  5. Serve until SIGINT/SIGTERM

GRACEFUL SHUTDOWN:
  1. Stop accepting new connections
  2. Wait for active requests to complete (--shutdown-timeout)
  3. Stop the scheduler
  4. Close the database

EXAMPLES:
  inventory --db=./data/inventory.db serve
  inventory --db=":memory:" serve --addr=:3000
  INVENTORY_DB=inv.db inventory serve --backup-dir=./backups

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background jobs
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-ledger/api"
)

type ServeCmd struct {
	Addr            string        `help:"Listen address." default:":8080" env:"INVENTORY_ADDR"`
	AllowedOrigins  []string      `help:"CORS origins; none disables CORS." env:"INVENTORY_ALLOWED_ORIGINS"`
	CheckInterval   time.Duration `help:"Integrity check interval (0 disables)." default:"1h" env:"INVENTORY_CHECK_INTERVAL"`
	BackupDir       string        `help:"Directory for scheduled backups and the only place HTTP backup and restore may touch." env:"INVENTORY_BACKUP_DIR" type:"existingdir"`
	BackupInterval  time.Duration `help:"Scheduled backup interval." default:"24h" env:"INVENTORY_BACKUP_INTERVAL"`
	ShutdownTimeout time.Duration `help:"How long to wait for in-flight requests." default:"30s"`
}

func (cmd *ServeCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.connect(ctx.Stdout, ctx.Stderr, logrus.InfoLevel)
	if err != nil {
		return err
	}
	defer s.Close()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return cmd.serve(sigCtx, s, nil)
}

// serve runs until ctx is done. ready, if set, receives the bound address.
func (cmd *ServeCmd) serve(ctx context.Context, s *session, ready func(addr string)) error {
	if err := s.ledger.CheckIntegrity(ctx); err != nil {
		return fmt.Errorf("refusing to serve: %w", err)
	}

	handler := api.NewHandler(s.ledger, s.log)
	handler.Currency = s.currency
	handler.AllowedOrigins = cmd.AllowedOrigins
	handler.BackupDir = cmd.BackupDir
	router := api.NewRouter(handler)

	sched := api.NewScheduler(s.ledger, s.log)
	sched.CheckInterval = cmd.CheckInterval
	sched.BackupInterval = cmd.BackupInterval
	sched.BackupDir = cmd.BackupDir
	sched.Start()
	defer sched.Stop()

	ln, err := net.Listen("tcp", cmd.Addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{
			"addr":     ln.Addr().String(),
			"currency": s.currency,
		}).Info("server starting")
		errc <- server.Serve(ln)
	}()
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cmd.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}
