package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/poubelles/poubelles-backend/internal/dashboard/client"
	"github.com/poubelles/poubelles-backend/internal/dashboard/handler"
	"github.com/poubelles/poubelles-backend/internal/dashboard/poller"
	"github.com/poubelles/poubelles-backend/internal/dashboard/state"
	"github.com/poubelles/poubelles-backend/internal/dashboard/view"
	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/poubelles/poubelles-backend/pkg/httputil"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/poubelles/poubelles-backend/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const serviceName = "dashboard"

func main() {
	cfg, err := config.Load(serviceName)
	if err == nil {
		err = cfg.Dashboard.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().
		Str("service_url", cfg.Dashboard.ServiceURL).
		Dur("poll_interval", cfg.Dashboard.PollInterval).
		Msg("starting Dashboard")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(serviceName)
	dash := state.New(cfg.Dashboard.ViewportWidth)
	binClient := client.NewBinClient(cfg.Dashboard.ServiceURL, cfg.Dashboard.RequestTimeout, log)

	p := poller.New(binClient, dash, log, poller.Options{
		Interval: cfg.Dashboard.PollInterval,
		Metrics:  m,
		OnUpdate: func(s state.Snapshot) {
			var buf bytes.Buffer
			if err := view.RenderText(&buf, view.Build(s)); err != nil {
				log.Error().Err(err).Msg("failed to render view")
				return
			}
			log.Info().
				Int("total", s.Stats.Total).
				Int("pleines", s.Stats.Pleines).
				Int("moyen_remplissage", s.Stats.MoyenRemplissage).
				Str("view", buf.String()).
				Msg("dashboard updated")
		},
	})

	widths := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(m.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := p.Status()
		body := map[string]interface{}{
			"status":               "healthy",
			"service":              serviceName,
			"polling":              status.Running,
			"consecutive_failures": status.ConsecutiveFailures,
			"bins":                 dash.Len(),
		}
		if !status.LastSuccess.IsZero() {
			body["last_success"] = status.LastSuccess
		}
		if status.LastError != nil {
			body["last_error"] = status.LastError.Error()
		}
		httputil.JSON(w, http.StatusOK, body)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	handler.NewViewHandler(dash, widths, gctx.Done(), log).Routes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		return p.Run(gctx)
	})

	g.Go(func() error {
		dash.Follow(gctx, widths, func(l state.Layout) {
			log.Debug().Int("width", l.Width).Bool("compact", l.IsCompact()).Msg("viewport resized")
		})
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("dashboard stopped with error")
		return
	}
	log.Info().Msg("dashboard stopped")
}
