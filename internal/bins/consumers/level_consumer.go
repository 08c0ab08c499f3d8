package consumers

import (
	"context"
	"net/http"

	"github.com/poubelles/poubelles-backend/internal/bins/service"
	"github.com/poubelles/poubelles-backend/pkg/errors"
	"github.com/poubelles/poubelles-backend/pkg/httputil"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/poubelles/poubelles-backend/pkg/messaging"
	"github.com/poubelles/poubelles-backend/pkg/metrics"
)

// Outcome labels for consumed level reports
const (
	OutcomeApplied   = "applied"
	OutcomeNotFound  = "not_found"
	OutcomeForbidden = "forbidden"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// LevelReportConsumer applies fill-level reports published by sensor gateways
type LevelReportConsumer struct {
	consumer *messaging.Consumer
	service  *service.BinService
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewLevelReportConsumer declares queue, binds it to the bin exchange and registers the handler
func NewLevelReportConsumer(rmq *messaging.RabbitMQ, queue string, svc *service.BinService, m *metrics.Metrics, log *logger.Logger) (*LevelReportConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, queue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeBinEvents, messaging.RoutingLevelReports); err != nil {
		return nil, err
	}

	c := &LevelReportConsumer{
		consumer: consumer,
		service:  svc,
		metrics:  m,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventLevelReported, c.handleLevelReported)

	return c, nil
}

// Run consumes until ctx is cancelled
func (c *LevelReportConsumer) Run(ctx context.Context) error {
	return c.consumer.Run(ctx)
}

func (c *LevelReportConsumer) handleLevelReported(ctx context.Context, event *messaging.Event) error {
	var data messaging.LevelReportedData
	if err := event.UnmarshalData(&data); err != nil {
		c.metrics.LevelReport(OutcomeInvalid)
		return messaging.Permanent(err)
	}
	if err := httputil.Validate(data); err != nil {
		c.metrics.LevelReport(OutcomeInvalid)
		return messaging.Permanent(err)
	}

	log := c.logger.WithCorrelationID(event.CorrelationID)

	_, err := c.service.ApplyLevelReport(ctx, event.Source, data)
	if err == nil {
		c.metrics.LevelReport(OutcomeApplied)
		return nil
	}

	var appErr *errors.AppError
	switch {
	case errors.Is(err, errors.ErrNotFound):
		// Nothing to retry; the bin may have been removed since the reading was taken.
		log.Warn().
			Int64("bin_id", data.BinID).
			Str("source", event.Source).
			Msg("level report for unknown bin dropped")
		c.metrics.LevelReport(OutcomeNotFound)
		return nil

	case errors.Is(err, errors.ErrForbidden):
		c.metrics.LevelReport(OutcomeForbidden)
		return messaging.Permanent(err)

	case errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError:
		c.metrics.LevelReport(OutcomeInvalid)
		return messaging.Permanent(err)

	default:
		c.metrics.LevelReport(OutcomeError)
		return err
	}
}
