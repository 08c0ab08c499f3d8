package testutil

import (
	"context"
	"fmt"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

// BinColumns are the columns the bin repository selects, in order
var BinColumns = []string{"id", "nom", "niveau", "latitude", "longitude"}

// BinFixture represents test bin data
type BinFixture struct {
	ID        int64
	Nom       string
	Niveau    int
	Latitude  float64
	Longitude float64
}

// ParisBins returns the demo fleet: one normal, one warning, one critical bin
func ParisBins() []BinFixture {
	return []BinFixture{
		{ID: 1, Nom: "Poubelle Paris A", Niveau: 30, Latitude: 48.8566, Longitude: 2.3522},
		{ID: 2, Nom: "Poubelle Paris B", Niveau: 80, Latitude: 48.8584, Longitude: 2.2945},
		{ID: 3, Nom: "Poubelle Paris C", Niveau: 100, Latitude: 48.8606, Longitude: 2.3376},
	}
}

// NewBinFixture creates a bin fixture at the Paris map centre
func NewBinFixture(id int64, niveau int) BinFixture {
	return BinFixture{
		ID:        id,
		Nom:       fmt.Sprintf("Poubelle %d", id),
		Niveau:    niveau,
		Latitude:  48.8566,
		Longitude: 2.3522,
	}
}

// BinRows builds sqlmock rows for the given fixtures
func BinRows(bins ...BinFixture) *sqlmock.Rows {
	rows := sqlmock.NewRows(BinColumns)
	for _, b := range bins {
		rows.AddRow(b.ID, b.Nom, b.Niveau, b.Latitude, b.Longitude)
	}
	return rows
}

// InsertBins writes fixtures with their explicit ids into a real database
func InsertBins(ctx context.Context, db *sqlx.DB, bins ...BinFixture) error {
	query := db.Rebind(`INSERT INTO poubelles (id, nom, niveau, latitude, longitude) VALUES (?, ?, ?, ?, ?)`)
	for _, b := range bins {
		if _, err := db.ExecContext(ctx, query, b.ID, b.Nom, b.Niveau, b.Latitude, b.Longitude); err != nil {
			return fmt.Errorf("failed to insert bin %d: %w", b.ID, err)
		}
	}
	return nil
}
