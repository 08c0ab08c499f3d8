package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/poubelles/poubelles-backend/internal/bins/events"
	"github.com/poubelles/poubelles-backend/internal/bins/repository"
	"github.com/poubelles/poubelles-backend/internal/bins/service"
	"github.com/poubelles/poubelles-backend/pkg/errors"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/poubelles/poubelles-backend/pkg/messaging"
	"github.com/poubelles/poubelles-backend/pkg/permissions"
	"github.com/poubelles/poubelles-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selectForUpdate = "SELECT id, nom, niveau, latitude, longitude FROM poubelles WHERE id = $1 FOR UPDATE"
	updateLevel     = "UPDATE poubelles SET niveau = $1 WHERE id = $2"
)

func newTestConsumer(t *testing.T) (*LevelReportConsumer, *testutil.MockDB, *testutil.MockPublisher) {
	t.Helper()

	mockDB := testutil.NewMockDB(t)
	policy, err := permissions.NewPolicy(map[string][]string{"gateway-north": {"bins.level.*"}})
	require.NoError(t, err)

	pub := testutil.NewMockPublisher()
	svc := service.NewBinService(mockDB.DB, repository.NewBinRepository(mockDB.DB, nil), logger.Nop(), service.Options{
		Publisher:  events.NewBinEventPublisherWith(pub, logger.Nop()),
		Authorizer: policy,
	})

	return &LevelReportConsumer{service: svc, logger: logger.Nop()}, mockDB, pub
}

func levelEvent(t *testing.T, source string, data interface{}) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventLevelReported, source, "corr-1", data)
	require.NoError(t, err)
	return event
}

func TestHandleLevelReported_Applies(t *testing.T) {
	c, mockDB, pub := newTestConsumer(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(selectForUpdate).WithArgs(int64(1)).WillReturnRows(testutil.BinRows(testutil.ParisBins()[0]))
	mockDB.ExpectExec(updateLevel).WithArgs(90, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := c.handleLevelReported(context.Background(), levelEvent(t, "gateway-north", messaging.LevelReportedData{BinID: 1, Niveau: 90}))

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
	pub.AssertEventPublished(t, messaging.EventBinFull)
}

func TestHandleLevelReported_UnknownBinIsAcked(t *testing.T) {
	c, mockDB, pub := newTestConsumer(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(selectForUpdate).WithArgs(int64(77)).WillReturnRows(testutil.BinRows())
	mockDB.ExpectRollback()

	err := c.handleLevelReported(context.Background(), levelEvent(t, "gateway-north", messaging.LevelReportedData{BinID: 77, Niveau: 90}))

	assert.NoError(t, err)
	pub.AssertNoEventsPublished(t)
}

func TestHandleLevelReported_PermanentFailures(t *testing.T) {
	tests := []struct {
		name   string
		source string
		data   interface{}
	}{
		{name: "missing bin id", source: "gateway-north", data: map[string]int{"niveau": 40}},
		{name: "wrong payload type", source: "gateway-north", data: map[string]string{"bin_id": "three"}},
		{name: "unauthorised source", source: "gateway-south", data: messaging.LevelReportedData{BinID: 1, Niveau: 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mockDB, _ := newTestConsumer(t)

			err := c.handleLevelReported(context.Background(), levelEvent(t, tt.source, tt.data))

			assert.True(t, errors.Is(err, messaging.ErrPermanent), "got %v", err)
			mockDB.ExpectationsWereMet(t)
		})
	}
}

func TestHandleLevelReported_StoreConstraintIsPermanent(t *testing.T) {
	c, mockDB, _ := newTestConsumer(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(selectForUpdate).WithArgs(int64(1)).WillReturnRows(testutil.BinRows(testutil.ParisBins()[0]))
	mockDB.ExpectExec(updateLevel).WithArgs(400, int64(1)).WillReturnError(&pq.Error{Code: "23514", Constraint: "niveau_range"})
	mockDB.ExpectRollback()

	err := c.handleLevelReported(context.Background(), levelEvent(t, "gateway-north", messaging.LevelReportedData{BinID: 1, Niveau: 400}))

	assert.True(t, errors.Is(err, messaging.ErrPermanent), "got %v", err)
}

func TestHandleLevelReported_TransientStoreErrorIsRetried(t *testing.T) {
	c, mockDB, _ := newTestConsumer(t)

	mockDB.ExpectBegin().WillReturnError(fmt.Errorf("database is locked"))

	err := c.handleLevelReported(context.Background(), levelEvent(t, "gateway-north", messaging.LevelReportedData{BinID: 1, Niveau: 40}))

	require.Error(t, err)
	assert.False(t, errors.Is(err, messaging.ErrPermanent))
}

func TestHandleLevelReported_RawPayloadShape(t *testing.T) {
	c, mockDB, _ := newTestConsumer(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(selectForUpdate).WithArgs(int64(2)).WillReturnRows(testutil.BinRows(testutil.ParisBins()[1]))
	mockDB.ExpectExec(updateLevel).WithArgs(10, int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	event := levelEvent(t, "gateway-north", nil)
	event.Data = json.RawMessage(`{"bin_id":2,"niveau":10}`)

	assert.NoError(t, c.handleLevelReported(context.Background(), event))
	mockDB.ExpectationsWereMet(t)
}
