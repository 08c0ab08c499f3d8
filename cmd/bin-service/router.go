package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/poubelles/poubelles-backend/internal/bins/handler"
	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/httputil"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/poubelles/poubelles-backend/pkg/metrics"
)

const serviceName = "bin-service"

// brokerHealth is satisfied by *messaging.RabbitMQ
type brokerHealth interface {
	Health() map[string]string
}

type routerDeps struct {
	cfg     *config.Config
	db      *database.DB
	broker  brokerHealth
	bins    *handler.BinHandler
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(d.logger))
	r.Use(httputil.Recoverer(d.logger))
	r.Use(httputil.SecureHeaders(d.cfg.Server.Environment))
	r.Use(httputil.CORS(d.cfg.CORS))
	r.Use(d.metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": d.db.Health(r.Context()),
		}
		if d.broker != nil {
			body["rabbitmq"] = d.broker.Health()
		}
		httputil.JSON(w, http.StatusOK, body)
	})

	r.Method(http.MethodGet, "/metrics", d.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(httputil.RateLimit(d.cfg.RateLimit.RequestsPerMinute))
		d.bins.Routes(r)
	})

	return r
}
