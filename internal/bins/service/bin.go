package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/poubelles/poubelles-backend/internal/bins/domain"
	"github.com/poubelles/poubelles-backend/internal/bins/events"
	"github.com/poubelles/poubelles-backend/internal/bins/repository"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/errors"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/poubelles/poubelles-backend/pkg/messaging"
	"github.com/poubelles/poubelles-backend/pkg/metrics"
	"github.com/poubelles/poubelles-backend/pkg/permissions"
)

// ListFailedMessage is the only detail callers get when the store read fails
const ListFailedMessage = "failed to retrieve bins"

// Authorizer decides whether an event source may perform an action.
// *permissions.Policy implements it.
type Authorizer interface {
	Allows(source, permission string) bool
}

// LevelChange describes an applied fill-level report
type LevelChange struct {
	Previous domain.BinRecord
	Current  domain.BinRecord
}

// BecameFull reports whether the change moved the bin into the critical band
func (c LevelChange) BecameFull() bool {
	return !c.Previous.IsFull() && c.Current.IsFull()
}

// BinService handles bin business logic
type BinService struct {
	db           *database.DB
	repo         *repository.BinRepository
	publisher    *events.BinEventPublisher
	authorizer   Authorizer
	metrics      *metrics.Metrics
	logger       *logger.Logger
	queryTimeout time.Duration
}

// Options carries the optional collaborators of BinService
type Options struct {
	Publisher    *events.BinEventPublisher
	Authorizer   Authorizer
	Metrics      *metrics.Metrics
	QueryTimeout time.Duration
}

// NewBinService creates a new bin service
func NewBinService(db *database.DB, repo *repository.BinRepository, log *logger.Logger, opts Options) *BinService {
	return &BinService{
		db:           db,
		repo:         repo,
		publisher:    opts.Publisher,
		authorizer:   opts.Authorizer,
		metrics:      opts.Metrics,
		logger:       log,
		queryTimeout: opts.QueryTimeout,
	}
}

// ListBins returns the current snapshot of every bin, straight from the store.
// Any store failure becomes a StoreUnavailable error; an empty fleet is not a failure.
func (s *BinService) ListBins(ctx context.Context) ([]domain.BinRecord, error) {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	bins, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.StoreUnavailable(ListFailedMessage, err)
	}
	return bins, nil
}

// ApplyLevelReport writes a reported fill level for the source that sent it.
// It needs a writable store and a source holding bins.level.write.
func (s *BinService) ApplyLevelReport(ctx context.Context, source string, report messaging.LevelReportedData) (*LevelChange, error) {
	if s.db.ReadOnly() {
		return nil, errors.Forbidden("store is opened read-only")
	}
	if s.authorizer == nil || !s.authorizer.Allows(source, permissions.BinsLevelWrite) {
		return nil, errors.Forbidden("source " + source + " may not report fill levels")
	}

	var change LevelChange
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		previous, err := s.repo.GetForUpdate(ctx, tx, report.BinID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateLevel(ctx, tx, report.BinID, report.Niveau); err != nil {
			return err
		}

		change.Previous = *previous
		change.Current = *previous
		change.Current.Niveau = report.Niveau
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("bin_id", change.Current.ID).
		Int("previous_niveau", change.Previous.Niveau).
		Int("niveau", change.Current.Niveau).
		Str("source", source).
		Msg("fill level updated")

	if change.BecameFull() {
		s.metrics.BinFull()
		s.publisher.PublishBinFull(ctx, change.Current, change.Previous.Niveau)
	}

	return &change, nil
}
