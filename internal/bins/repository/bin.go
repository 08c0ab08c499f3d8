package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/poubelles/poubelles-backend/internal/bins/domain"
	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/errors"
	"github.com/poubelles/poubelles-backend/pkg/metrics"
)

// Columns are selected by name so that columns added later are ignored.
const selectBins = `SELECT id, nom, niveau, latitude, longitude FROM poubelles`

var schemas = map[string]string{
	config.DriverPostgres: `
		CREATE TABLE IF NOT EXISTS poubelles (
			id SERIAL PRIMARY KEY,
			nom TEXT NOT NULL,
			niveau INTEGER DEFAULT 0,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION
		)`,
	config.DriverSQLite: `
		CREATE TABLE IF NOT EXISTS poubelles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nom TEXT NOT NULL,
			niveau INTEGER DEFAULT 0,
			latitude REAL,
			longitude REAL
		)`,
}

// binRow mirrors the table, whose level and coordinate columns are nullable
type binRow struct {
	ID        int64           `db:"id"`
	Nom       string          `db:"nom"`
	Niveau    sql.NullInt64   `db:"niveau"`
	Latitude  sql.NullFloat64 `db:"latitude"`
	Longitude sql.NullFloat64 `db:"longitude"`
}

// located reports whether the row has both coordinates
func (r binRow) located() bool {
	return r.Latitude.Valid && r.Longitude.Valid
}

// record maps the row to a BinRecord. A NULL level reads as 0, the column default.
func (r binRow) record() domain.BinRecord {
	return domain.BinRecord{
		ID:        r.ID,
		Nom:       r.Nom,
		Niveau:    int(r.Niveau.Int64),
		Latitude:  r.Latitude.Float64,
		Longitude: r.Longitude.Float64,
	}
}

// BinRepository handles access to the poubelles table
type BinRepository struct {
	db      *database.DB
	metrics *metrics.Metrics
}

// NewBinRepository creates a new bin repository. m may be nil.
func NewBinRepository(db *database.DB, m *metrics.Metrics) *BinRepository {
	return &BinRepository{db: db, metrics: m}
}

// List returns every locatable bin in store order. Rows missing a coordinate
// are left out and counted. An empty table yields an empty, non-nil slice.
func (r *BinRepository) List(ctx context.Context) (bins []domain.BinRecord, err error) {
	defer r.observe("list", time.Now(), &err)

	var rows []binRow
	if err := r.db.SelectContext(ctx, &rows, selectBins); err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}

	bins = make([]domain.BinRecord, 0, len(rows))
	for _, row := range rows {
		if !row.located() {
			continue
		}
		bins = append(bins, row.record())
	}
	r.metrics.SkippedRows("list", len(rows)-len(bins))
	return bins, nil
}

// Get returns one bin by id
func (r *BinRepository) Get(ctx context.Context, id int64) (*domain.BinRecord, error) {
	return r.get(ctx, r.db, id, false)
}

// GetForUpdate reads a bin inside tx, locking the row where the engine supports it
func (r *BinRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*domain.BinRecord, error) {
	return r.get(ctx, tx, id, r.db.DriverName() == config.DriverPostgres)
}

func (r *BinRepository) get(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (bin *domain.BinRecord, err error) {
	defer r.observe("get", time.Now(), &err)

	query := selectBins + ` WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}

	var row binRow
	if err := sqlx.GetContext(ctx, q, &row, r.db.Rebind(query), id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("bin")
		}
		return nil, fmt.Errorf("get bin %d: %w", id, err)
	}
	b := row.record()
	return &b, nil
}

// UpdateLevel sets the fill level of bin id inside tx
func (r *BinRepository) UpdateLevel(ctx context.Context, tx *sqlx.Tx, id int64, niveau int) (err error) {
	defer r.observe("update_level", time.Now(), &err)

	result, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE poubelles SET niveau = ? WHERE id = ?`), niveau, id)
	if err != nil {
		if appErr := database.MapStoreError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("update bin %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bin %d: %w", id, err)
	}
	if rows == 0 {
		return errors.NotFound("bin")
	}
	return nil
}

// Insert adds a bin and fills in its generated id
func (r *BinRepository) Insert(ctx context.Context, tx *sqlx.Tx, bin *domain.BinRecord) (err error) {
	defer r.observe("insert", time.Now(), &err)

	query := r.db.Rebind(`INSERT INTO poubelles (nom, niveau, latitude, longitude) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRowxContext(ctx, query, bin.Nom, bin.Niveau, bin.Latitude, bin.Longitude).Scan(&bin.ID); err != nil {
		if appErr := database.MapStoreError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("insert bin %q: %w", bin.Nom, err)
	}
	return nil
}

// Count returns the number of bins
func (r *BinRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM poubelles`); err != nil {
		return 0, fmt.Errorf("count bins: %w", err)
	}
	return n, nil
}

// EnsureSchema creates the poubelles table if it does not exist
func (r *BinRepository) EnsureSchema(ctx context.Context) error {
	ddl, ok := schemas[r.db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", r.db.DriverName())
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create poubelles table: %w", err)
	}
	return nil
}

func (r *BinRepository) observe(op string, started time.Time, err *error) {
	r.metrics.ObserveStore(op, started, *err)
}
