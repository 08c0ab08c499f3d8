package events

import (
	"context"

	"github.com/poubelles/poubelles-backend/internal/bins/domain"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/poubelles/poubelles-backend/pkg/messaging"
)

// Publisher is the transport the bin events go out on. *messaging.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// BinEventPublisher publishes bin-related events. A nil publisher drops everything,
// which is how the read-only deployment runs.
type BinEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewBinEventPublisher declares the bin exchange and returns a publisher on it
func NewBinEventPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*BinEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeBinEvents, source, log)
	if err != nil {
		return nil, err
	}
	return NewBinEventPublisherWith(publisher, log), nil
}

// NewBinEventPublisherWith wraps an existing transport
func NewBinEventPublisherWith(publisher Publisher, log *logger.Logger) *BinEventPublisher {
	return &BinEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishBinFull announces that bin has just entered the critical band.
// Failures are logged, not returned: the level update has already committed.
func (p *BinEventPublisher) PublishBinFull(ctx context.Context, bin domain.BinRecord, previous int) {
	if p == nil {
		return
	}

	data := messaging.BinFullData{
		BinID:     bin.ID,
		Nom:       bin.Nom,
		Niveau:    bin.Niveau,
		Previous:  previous,
		Latitude:  bin.Latitude,
		Longitude: bin.Longitude,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBinFull, data); err != nil {
		p.logger.Error().Err(err).Int64("bin_id", bin.ID).Msg("failed to publish bin full event")
	}
}
