package collector

import (
	"context"
	"fmt"
	"time"

	"orderbookfeed/config"
	"orderbookfeed/internal/orderbook/api"
	"orderbookfeed/internal/orderbook/job"
	"orderbookfeed/internal/orderbook/memorystore"
	"orderbookfeed/internal/orderbook/scheduler"
	"orderbookfeed/internal/orderbook/snapshot"
	"orderbookfeed/internal/orderbook/stream"
	"orderbookfeed/pkg/feed"
	"orderbookfeed/pkg/storage"
	"orderbookfeed/pkg/storage/memory"
	"orderbookfeed/pkg/storage/postgres"

	"go.uber.org/zap"
)

const cacheLogInterval = 30 * time.Second

// Run wires the live feed, the history store and the HTTP surface, and blocks until
// ctx is done or the HTTP server fails.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	env := cfg.Log.Environment

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Live side: supervisor -> handler -> cache + hub
	cache := memorystore.NewSnapshotStore()
	hub := stream.NewHub(cfg.Feed.SubscriberBuffer, logger.Named("hub"))
	hub.Subscribe(func(s memorystore.Snapshot) {
		logger.Debug("snapshot received",
			zap.String("coin", s.Symbol),
			zap.Int64("timestamp", s.Timestamp),
			zap.Int("bids", len(s.Bids)),
			zap.Int("asks", len(s.Asks)),
		)
	})

	dialer := feed.NewWebsocketDialer(cfg.Feed.HandshakeTimeout)
	sup := feed.NewSupervisor(feed.SupervisorConfig{
		URL:            cfg.Feed.URL,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		MaxRetries:     cfg.Feed.MaxRetries,
	}, dialer, logger.Named("feed"))
	sup.SetMessageHandler(stream.MakeMessageHandler(logger, cache, hub))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sup.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start feed supervisor: %w", err)
	}

	// On-demand side: fresh connection per run
	fetcher := snapshot.NewFetcher(snapshot.FetchOptions{
		URL:           cfg.Feed.URL,
		Symbols:       cfg.Feed.Fetch.Symbols,
		ExpectedCount: cfg.Feed.Fetch.ExpectedCount,
		Timeout:       cfg.Feed.Fetch.Timeout,
	}, dialer, logger.Named("fetcher"))
	fetchJob := job.NewFetchJob(fetcher, store, cfg.Cron.MaxRecords, logger.Named("job"))

	var schedDone <-chan struct{}
	if cfg.Cron.Interval > 0 {
		sched := &scheduler.Interval{
			Every: cfg.Cron.Interval,
			Job: func(ctx context.Context) error {
				_, err := fetchJob.Run(ctx)
				return err
			},
			Logger:     logger.Named("scheduler"),
			JobTimeout: cfg.Cron.JobTimeout,
		}
		schedDone = sched.Start(runCtx)
		logger.Info("fetch job scheduled", zap.Duration("every", cfg.Cron.Interval))
	}

	// Periodically print cached symbol count for visibility
	go func() {
		ticker := time.NewTicker(cacheLogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				logger.Info("current cached snapshots",
					zap.Int("count", cache.Len()),
					zap.String("feed", sup.State().String()),
				)
			}
		}
	}()

	server := api.New(api.Deps{
		Live:       cache,
		Feed:       sup,
		Store:      store,
		Job:        fetchJob,
		CronSecret: cfg.Cron.ResolveSecret(env),
		JobTimeout: cfg.Cron.JobTimeout,
	}, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		errCh <- server.Listen(cfg.HTTP.Addr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http server forced to shutdown", zap.Error(err))
	}

	cancel()
	sup.Stop()
	if schedDone != nil {
		<-schedDone
	}
	hub.Close()

	return runErr
}

// openStore returns the history store and its release function.
func openStore(cfg *config.Config, logger *zap.Logger) (storage.Store, func(), error) {
	if !cfg.Postgres.Enabled {
		logger.Warn("postgres disabled, history is kept in memory only")
		return memory.NewMemoryStore(), func() {}, nil
	}

	client, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close DB", zap.Error(err))
		}
	}
	return client, closeFn, nil
}
