package testutil

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/logger"
)

// MockDB wraps sqlmock for easier testing
type MockDB struct {
	DB   *database.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a writable mock database for unit testing.
// The connection is closed automatically when the test ends.
//
// Usage:
//
//	mockDB := testutil.NewMockDB(t)
//	mockDB.ExpectQuery("SELECT id, nom").WillReturnRows(testutil.BinRows(testutil.ParisBins()...))
//
//	repo := repository.NewBinRepository(mockDB.DB, nil)
func NewMockDB(t *testing.T) *MockDB {
	return newMockDB(t, false)
}

// NewReadOnlyMockDB is NewMockDB with the handle flagged read-only
func NewReadOnlyMockDB(t *testing.T) *MockDB {
	return newMockDB(t, true)
}

func newMockDB(t *testing.T, readOnly bool) *MockDB {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &MockDB{
		DB:   database.Wrap(sqlx.NewDb(db, "postgres"), readOnly, logger.Nop()),
		Mock: mock,
	}
}

// ExpectQuery sets up an expected query, matched literally
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec sets up an expected exec, matched literally
func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectBegin sets up an expected transaction begin
func (m *MockDB) ExpectBegin() *sqlmock.ExpectedBegin {
	return m.Mock.ExpectBegin()
}

// ExpectCommit sets up an expected commit
func (m *MockDB) ExpectCommit() *sqlmock.ExpectedCommit {
	return m.Mock.ExpectCommit()
}

// ExpectRollback sets up an expected rollback
func (m *MockDB) ExpectRollback() *sqlmock.ExpectedRollback {
	return m.Mock.ExpectRollback()
}

// ExpectationsWereMet verifies all expectations were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime is a matcher for any time.Time value
type AnyTime struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// MockPublisher records published events. Safe for use from consumer goroutines.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	Err    error
}

// PublishedEvent represents an event that was published
type PublishedEvent struct {
	Type    string
	Payload interface{}
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records an event, or returns Err when set
func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, PublishedEvent{Type: eventType, Payload: payload})
	return nil
}

// Events returns a copy of everything published so far
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.events...)
}

// AssertEventPublished checks if an event of the given type was published
func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) {
	t.Helper()
	for _, e := range m.Events() {
		if e.Type == eventType {
			return
		}
	}
	t.Errorf("expected event %q to be published, but it wasn't", eventType)
}

// AssertNoEventsPublished checks that no events were published
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	if events := m.Events(); len(events) > 0 {
		t.Errorf("expected no events, but got %d: %+v", len(events), events)
	}
}
