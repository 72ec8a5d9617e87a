// Command api serves the scrapequeue HTTP API.
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

	"github.com/gin-gonic/gin"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/api"
	"github.com/alex-monroe/scrapequeue/client"
	"github.com/alex-monroe/scrapequeue/engine"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := scrapequeue.LoadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := engine.NewLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := engine.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", scrapequeue.ErrMigrationFailed, err)
	}

	c := client.New(s, client.WithConfig(cfg), client.WithLogger(logger))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(s, c, api.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", cfg.HTTPAddr), slog.String("store", cfg.Store))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("api shutting down")
	return srv.Shutdown(shutdownCtx)
}
