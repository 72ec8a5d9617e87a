package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	scrapequeue "github.com/alex-monroe/scrapequeue"
	"github.com/alex-monroe/scrapequeue/backoff"
	"github.com/alex-monroe/scrapequeue/browser"
	"github.com/alex-monroe/scrapequeue/client"
	"github.com/alex-monroe/scrapequeue/cron"
	mw "github.com/alex-monroe/scrapequeue/middleware"
	"github.com/alex-monroe/scrapequeue/nflverse"
	"github.com/alex-monroe/scrapequeue/ottoneu"
	"github.com/alex-monroe/scrapequeue/store"
	"github.com/alex-monroe/scrapequeue/task"
	"github.com/alex-monroe/scrapequeue/tasks"
	"github.com/alex-monroe/scrapequeue/throttle"
	"github.com/alex-monroe/scrapequeue/worker"
)

// BatchCronName is the name of the cron entry that enqueues batches.
const BatchCronName = "batch"

// instrumentationName is the OTel scope used with custom providers.
const instrumentationName = "github.com/alex-monroe/scrapequeue"

// Engine owns every subsystem of one process.
type Engine struct {
	cfg    scrapequeue.Config
	logger *slog.Logger

	store     store.Store
	ownsStore bool
	registry  *task.Registry
	browsers  *browser.Manager
	throttle  *throttle.Manager
	scheduler *worker.Scheduler
	client    *client.Client
	cron      *cron.Scheduler

	// Overrides set by options.
	launcher browser.Launcher
	stats    tasks.StatsSource
	scraper  *ottoneu.Scraper
	mws      []mw.Middleware

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStore uses s instead of opening Config.Store. The caller keeps
// ownership: Close does not close s.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLauncher replaces the chromedp launcher.
func WithLauncher(l browser.Launcher) Option {
	return func(e *Engine) { e.launcher = l }
}

// WithStatsSource replaces the nflverse client.
func WithStatsSource(s tasks.StatsSource) Option {
	return func(e *Engine) { e.stats = s }
}

// WithScraper replaces the Ottoneu scraper.
func WithScraper(s *ottoneu.Scraper) Option {
	return func(e *Engine) { e.scraper = s }
}

// WithMiddleware adds middleware inside the default chain, just before
// the per-job timeout.
func WithMiddleware(m ...mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m...) }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware. If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New validates cfg and builds an Engine. Unless WithStore is given, the
// configured store is opened and migrated.
func New(ctx context.Context, cfg scrapequeue.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng := &Engine{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		s, err := OpenStore(ctx, cfg, eng.logger)
		if err != nil {
			return nil, err
		}
		eng.store = s
		eng.ownsStore = true
	}

	if err := eng.build(ctx); err != nil {
		if eng.ownsStore {
			_ = eng.store.Close()
		}
		return nil, err
	}
	return eng, nil
}

func (eng *Engine) build(ctx context.Context) error {
	cfg := eng.cfg
	logger := eng.logger

	if eng.ownsStore {
		if err := eng.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", scrapequeue.ErrMigrationFailed, err)
		}
	}

	// Task handlers.
	if eng.stats == nil {
		eng.stats = nflverse.New(
			nflverse.WithBaseURL(cfg.StatsBaseURL),
			nflverse.WithLogger(logger),
		)
	}
	if eng.scraper == nil {
		eng.scraper = ottoneu.NewScraper()
	}
	eng.registry = task.NewRegistry()
	tasks.New(eng.store, eng.stats, eng.scraper,
		tasks.WithDefaultSeasons(cfg.HistoricalSeasons),
	).Register(eng.registry)
	if err := eng.registry.Validate(); err != nil {
		return err
	}

	bo, err := backoff.Parse(cfg.Backoff)
	if err != nil {
		return fmt.Errorf("engine: backoff: %w", err)
	}

	limits, err := throttle.ParseConfigs(cfg.TaskLimits)
	if err != nil {
		return fmt.Errorf("engine: task limits: %w", err)
	}

	// Shared browser.
	launcher := eng.launcher
	if launcher == nil {
		launcher = browser.NewChromeLauncher(
			browser.WithHeadless(cfg.BrowserHeadless),
			browser.WithUserAgent(cfg.BrowserUserAgent),
		)
	}
	eng.browsers = browser.NewManager(
		browser.WithLauncher(launcher),
		browser.WithRate(cfg.BrowserRate),
		browser.WithLogger(logger),
	)

	// Middleware stack inside the executor's recover:
	// tracing → metrics → logging → throttle → custom → timeout.
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}
	chain := []mw.Middleware{tracingMw, metricsMw, mw.Logging(logger)}
	if len(limits) > 0 {
		eng.throttle = throttle.NewManager(limits...)
		chain = append(chain, mw.Throttle(eng.throttle))
	}
	chain = append(chain, eng.mws...)
	chain = append(chain, mw.Timeout(logger, cfg.JobTimeout))

	executor := worker.NewExecutor(eng.registry, eng.store, eng.browsers, logger,
		worker.WithBackoff(bo),
		worker.WithMiddleware(chain...),
		worker.WithChildMaxAttempts(cfg.MaxAttempts),
	)
	eng.scheduler = worker.NewScheduler(eng.store, executor, eng.browsers, logger,
		worker.WithMode(worker.ParseMode(cfg.Poll)),
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithPollInterval(cfg.PollInterval),
		worker.WithHeartbeatInterval(cfg.HeartbeatInterval),
		worker.WithStaleJobThreshold(cfg.StaleJobThreshold),
	)

	eng.client = client.New(eng.store,
		client.WithConfig(cfg),
		client.WithLogger(logger),
	)

	if cfg.BatchSchedule != "" {
		eng.cron = cron.NewScheduler(cron.WithLogger(logger))
		err := eng.cron.Register(BatchCronName, cfg.BatchSchedule, func(ctx context.Context) (string, error) {
			b, err := eng.client.Batch(ctx, client.BatchRequest{})
			if err != nil {
				return "", err
			}
			return b.ID.String(), nil
		})
		if err != nil {
			return fmt.Errorf("engine: batch schedule: %w", err)
		}
	}
	return nil
}

// Run processes jobs until the queue drains, or until ctx is cancelled in
// poll mode. The batch cron, when configured, runs alongside. An Engine
// runs once: the browser is torn down when Run returns.
func (eng *Engine) Run(ctx context.Context) error {
	if eng.cron != nil {
		if err := eng.cron.Start(ctx); err != nil {
			return fmt.Errorf("engine: start cron: %w", err)
		}
		defer func() {
			if err := eng.cron.Stop(context.WithoutCancel(ctx)); err != nil {
				eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
			}
		}()
	}
	return eng.scheduler.Run(ctx)
}

// Close releases the browser and, when the engine opened it, the store.
func (eng *Engine) Close() error {
	var errs []error
	if err := eng.browsers.Close(); err != nil {
		errs = append(errs, err)
	}
	if eng.ownsStore {
		if err := eng.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the engine was built from.
func (eng *Engine) Config() scrapequeue.Config { return eng.cfg }

// Store returns the store.
func (eng *Engine) Store() store.Store { return eng.store }

// Client returns the enqueue client.
func (eng *Engine) Client() *client.Client { return eng.client }

// Registry returns the task registry.
func (eng *Engine) Registry() *task.Registry { return eng.registry }

// Scheduler returns the worker scheduler.
func (eng *Engine) Scheduler() *worker.Scheduler { return eng.scheduler }

// Browsers returns the shared browser manager.
func (eng *Engine) Browsers() *browser.Manager { return eng.browsers }

// Cron returns the batch cron scheduler, or nil when no schedule is set.
func (eng *Engine) Cron() *cron.Scheduler { return eng.cron }

// Throttle returns the per-task-type limiter, or nil when no limits are
// configured.
func (eng *Engine) Throttle() *throttle.Manager { return eng.throttle }
