//go:build integration

package repository

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/errors"
	"github.com/poubelles/poubelles-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutil.TerminateShared(context.Background())
	os.Exit(code)
}

func setupPostgres(t *testing.T) (*database.DB, *database.DB) {
	t.Helper()
	testutil.SkipIfShort(t)
	testutil.SkipIfNoDocker(t)

	ctx := testutil.DefaultTestContext(t)
	container, err := testutil.SharedPostgres(ctx)
	require.NoError(t, err)

	rw, err := container.ConnectDB(ctx, false)
	require.NoError(t, err)
	t.Cleanup(func() { rw.Close() })

	repo := NewBinRepository(rw, nil)
	require.NoError(t, repo.EnsureSchema(ctx))
	_, err = rw.ExecContext(ctx, `TRUNCATE poubelles RESTART IDENTITY`)
	require.NoError(t, err)
	require.NoError(t, testutil.InsertBins(ctx, rw.DB, testutil.ParisBins()...))

	ro, err := container.ConnectDB(ctx, true)
	require.NoError(t, err)
	t.Cleanup(func() { ro.Close() })

	return rw, ro
}

func TestIntegration_ListAgainstPostgres(t *testing.T) {
	_, ro := setupPostgres(t)
	ctx := testutil.DefaultTestContext(t)

	bins, err := NewBinRepository(ro, nil).List(ctx)

	require.NoError(t, err)
	require.Len(t, bins, 3)

	byID := make(map[int64]int, len(bins))
	for _, b := range bins {
		byID[b.ID] = b.Niveau
	}
	assert.Equal(t, map[int64]int{1: 30, 2: 80, 3: 100}, byID)
}

func TestIntegration_ReadOnlySessionRejectsWrites(t *testing.T) {
	_, ro := setupPostgres(t)
	ctx := testutil.DefaultTestContext(t)
	repo := NewBinRepository(ro, nil)

	err := ro.Transaction(ctx, func(tx *sqlx.Tx) error {
		return repo.UpdateLevel(ctx, tx, 1, 90)
	})

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, appErr.StatusCode)
}

func TestIntegration_ExtraColumnsAreIgnored(t *testing.T) {
	rw, _ := setupPostgres(t)
	ctx := testutil.DefaultTestContext(t)

	_, err := rw.ExecContext(ctx, `ALTER TABLE poubelles ADD COLUMN IF NOT EXISTS capacite_litres INTEGER DEFAULT 240`)
	require.NoError(t, err)
	t.Cleanup(func() {
		rw.ExecContext(context.Background(), `ALTER TABLE poubelles DROP COLUMN IF EXISTS capacite_litres`)
	})

	bins, err := NewBinRepository(rw, nil).List(ctx)
	require.NoError(t, err)
	assert.Len(t, bins, 3)
}
