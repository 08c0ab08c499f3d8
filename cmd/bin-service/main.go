package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poubelles/poubelles-backend/internal/bins/consumers"
	"github.com/poubelles/poubelles-backend/internal/bins/events"
	"github.com/poubelles/poubelles-backend/internal/bins/handler"
	"github.com/poubelles/poubelles-backend/internal/bins/repository"
	"github.com/poubelles/poubelles-backend/internal/bins/service"
	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/poubelles/poubelles-backend/pkg/messaging"
	"github.com/poubelles/poubelles-backend/pkg/metrics"
	"github.com/poubelles/poubelles-backend/pkg/permissions"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().
		Str("driver", cfg.Database.Driver).
		Bool("read_only", cfg.Database.ReadOnly).
		Bool("ingest", cfg.Ingest.Enabled).
		Msg("starting Bin Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(serviceName)
	repo := repository.NewBinRepository(db, m)
	opts := service.Options{
		Metrics:      m,
		QueryTimeout: cfg.Server.QueryTimeout,
	}

	var rmq *messaging.RabbitMQ
	if cfg.Ingest.Enabled {
		rmq, err = messaging.New(ctx, &cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare dead letter queue")
		}

		publisher, err := events.NewBinEventPublisher(rmq, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		policy, err := permissions.NewPolicy(cfg.Ingest.Grants)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid ingest grants")
		}
		opts.Publisher = publisher
		opts.Authorizer = policy
	}

	binService := service.NewBinService(db, repo, log, opts)

	deps := routerDeps{
		cfg:     cfg,
		db:      db,
		bins:    handler.NewBinHandler(binService, log),
		metrics: m,
		logger:  log,
	}
	if rmq != nil {
		deps.broker = rmq
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if rmq != nil {
		levelConsumer, err := consumers.NewLevelReportConsumer(rmq, cfg.Ingest.Queue, binService, m, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create level report consumer")
		}
		g.Go(func() error {
			return levelConsumer.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("bin service stopped with error")
		return
	}
	log.Info().Msg("server stopped")
}
