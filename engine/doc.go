// Package engine wires the scrapequeue subsystems together from a
// scrapequeue.Config: the store, the task registry and handlers, the
// middleware chain, the shared browser, the worker scheduler, the enqueue
// client and the optional batch cron.
//
// The engine package exists to break an import cycle: the root package
// defines Config and the sentinel errors imported by every subsystem and so
// cannot import those subsystems back. Engine sits above them and below the
// cmd binaries and the HTTP API.
//
// # Building an Engine
//
//	cfg, err := scrapequeue.LoadConfig()
//	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
//	defer eng.Close()
//
// # Enqueuing and Running
//
//	batch, err := eng.Client().Batch(ctx, client.BatchRequest{})
//	err = eng.Run(ctx)
//
// # Options
//
//   - [WithStore]: use an already opened store instead of Config.Store
//   - [WithLauncher]: replace the chromedp browser launcher
//   - [WithStatsSource]: replace the nflverse client
//   - [WithScraper]: replace the Ottoneu scraper
//   - [WithMiddleware]: add middleware inside the default chain
//   - [WithTracerProvider] and [WithMeterProvider]: OpenTelemetry providers
package engine
