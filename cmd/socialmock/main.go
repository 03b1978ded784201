// Command socialmock serves the REST and live-channel contract of the social
// backend on top of a local sqlite file.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/socialsync/internal/backend"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/store"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "listen address")
	dbPath := flag.String("db", "socialmock.db", "sqlite database file")
	reset := flag.Bool("reset", false, "drop all data before starting")
	debug := flag.Bool("debug", false, "log requests and frames at debug level")
	flag.Parse()

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.Console("socialmock", *debug)
	defer func() { _ = logger.Sync() }()

	if err := run(logger, *addr, *dbPath, *reset); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *zap.Logger, addr, dbPath string, reset bool) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if reset {
		if err := db.Reset(); err != nil {
			return err
		}
		logger.Info("database reset", zap.String("path", dbPath))
	}
	result, err := db.Migrate()
	if err != nil {
		return err
	}
	logger.Info("store ready", zap.String("path", dbPath), zap.Uint("version", result.Version), zap.Bool("migrated", result.Changed))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := backend.New(db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
