package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fullbook/api/rest"
	"fullbook/feed"
	"fullbook/feed/coinbase"
	"fullbook/feed/kafkafeed"
	"fullbook/infra/config"
	"fullbook/infra/log"
	"fullbook/infra/metrics"
	"fullbook/jobs/broadcaster"
	"fullbook/recorder"
	"fullbook/service"
	"fullbook/snapshot"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg)
	reg := metrics.Init(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---------------- Journal ----------------

	var journal *recorder.Journal
	if cfg.Journal.Enabled {
		var err error
		journal, err = recorder.Open(cfg.Journal.Dir)
		if err != nil {
			logger.Fatal().Err(err).Str("dir", cfg.Journal.Dir).Msg("journal init failed")
		}
		defer journal.Close()
	}

	// ---------------- Replica ----------------

	loader := snapshot.NewHTTPLoader(
		cfg.Snapshot.BaseURL,
		cfg.Product,
		time.Duration(cfg.Snapshot.TimeoutSeconds)*time.Second,
	)

	var rec service.Recorder
	if journal != nil {
		rec = journal
	}
	replica := service.NewReplica(loader, rec, cfg.Replica.Strict, logger)
	replica.Register(service.NewSpreadLogger(replica, logger).Observe)

	// ---------------- Feed ----------------

	var src feed.Source
	switch cfg.Feed.Source {
	case "kafka":
		src = kafkafeed.New(kafkafeed.Config{
			Brokers: cfg.Feed.Kafka.Brokers,
			Topic:   cfg.Feed.Kafka.Topic,
			GroupID: cfg.Feed.Kafka.GroupID,
		}, logger)
	default:
		src = coinbase.New(coinbase.Config{
			URL:     cfg.Feed.WSURL,
			Product: cfg.Product,
		}, logger)
	}

	// ---------------- Broadcaster ----------------

	if cfg.Broadcast.Enabled && journal != nil {
		bc, err := broadcaster.New(
			journal,
			cfg.Broadcast.Brokers,
			cfg.Broadcast.Topic,
			time.Duration(cfg.Broadcast.IntervalMS)*time.Millisecond,
			logger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("broadcaster init failed")
		}
		defer bc.Close()
		go bc.Run(ctx)
	}

	// ---------------- Query API ----------------

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      rest.NewRouter(replica, reg, logger),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("query api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("query api failed")
		}
	}()
	defer srv.Shutdown(context.Background())

	// ---------------- Event loop ----------------

	go func() {
		if err := src.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("feed transport stopped")
			cancel()
		}
	}()

	logger.Info().Str("product", cfg.Product).Str("source", cfg.Feed.Source).Msg("replica running")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return
		case ev, ok := <-src.Events():
			if !ok {
				logger.Info().Msg("feed closed")
				return
			}
			if err := replica.Apply(ctx, ev); err != nil && ctx.Err() == nil {
				// Resync failures: the transport keeps delivering and
				// the gate will force another attempt on the next event.
				logger.Warn().Err(err).Msg("apply failed")
			}
		}
	}
}
