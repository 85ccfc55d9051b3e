// Command posmock serves an in-process POS backend for local pos-qa runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pos-qa/internal/postwin"
)

func main() {
	var (
		port      = flag.Int("port", 3000, "listen port")
		dbPath    = flag.String("db", ":memory:", "SQLite database path")
		jwtSecret = flag.String("jwt-secret", "", "HS256 signing secret (built-in development secret if empty)")
		verbose   = flag.Bool("verbose", false, "log every request")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *port, *dbPath, *jwtSecret, *verbose); err != nil {
		logger.Error("posmock stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, port int, dbPath, secret string, verbose bool) error {
	store, err := postwin.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           postwin.New(store, postwin.Config{JWTSecret: secret, Verbose: verbose}, logger),
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("posmock listening", "addr", srv.Addr, "db", dbPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
