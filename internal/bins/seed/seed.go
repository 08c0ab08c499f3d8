// Package seed loads the demo fleet into an empty store.
package seed

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/poubelles/poubelles-backend/internal/bins/domain"
	"github.com/poubelles/poubelles-backend/internal/bins/repository"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/errors"
	"github.com/poubelles/poubelles-backend/pkg/logger"
)

// DemoFleet returns three bins around central Paris, one per severity
func DemoFleet() []domain.BinRecord {
	return []domain.BinRecord{
		{Nom: "Poubelle Paris A", Niveau: 30, Latitude: 48.8566, Longitude: 2.3522},
		{Nom: "Poubelle Paris B", Niveau: 80, Latitude: 48.8584, Longitude: 2.2945},
		{Nom: "Poubelle Paris C", Niveau: 100, Latitude: 48.8606, Longitude: 2.3376},
	}
}

// Run creates the table if needed and inserts bins when the table is empty.
// It returns how many rows were inserted.
func Run(ctx context.Context, db *database.DB, repo *repository.BinRepository, bins []domain.BinRecord, log *logger.Logger) (int, error) {
	if db.ReadOnly() {
		return 0, errors.Forbidden("store is opened read-only; set POUBELLES_DATABASE_READ_ONLY=false to seed")
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	existing, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		log.Info().Int("existing", existing).Msg("store already holds bins, nothing to seed")
		return 0, nil
	}

	err = db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for i := range bins {
			if err := repo.Insert(ctx, tx, &bins[i]); err != nil {
				return fmt.Errorf("seed %q: %w", bins[i].Nom, err)
			}
			log.Debug().Int64("id", bins[i].ID).Str("nom", bins[i].Nom).Msg("bin seeded")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int("inserted", len(bins)).Msg("demo fleet seeded")
	return len(bins), nil
}
