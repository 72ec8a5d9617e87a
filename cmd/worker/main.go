// Command worker runs the job scheduler. By default it drains the queue
// and exits; with --poll it keeps polling until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/engine"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := scrapequeue.LoadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.BoolVar(&cfg.Poll, "poll", cfg.Poll, "keep polling for new jobs instead of exiting when the queue drains")
	fs.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "poll interval")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "number of jobs to run at once")
	fs.DurationVar(&cfg.JobTimeout, "timeout", cfg.JobTimeout, "per-job timeout")
	fs.StringVar(&cfg.BatchSchedule, "batch-schedule", cfg.BatchSchedule, "cron expression for enqueueing batches (poll mode)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := engine.NewLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}()

	logger.Info("worker starting",
		slog.String("store", cfg.Store),
		slog.Bool("poll", cfg.Poll),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("job_timeout", cfg.JobTimeout),
	)
	if err := eng.Run(ctx); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
