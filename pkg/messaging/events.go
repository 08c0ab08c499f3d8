package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// EventLevelReported carries a fill-level reading from a bin sensor gateway
	EventLevelReported = "bins.level.reported"
	// EventBinFull is published when a bin crosses into the critical band
	EventBinFull = "bins.bin.full"
)

// Exchange names and routing patterns
const (
	ExchangeBinEvents   = "bins.events"
	RoutingLevelReports = "bins.level.#"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// LevelReportedData is the payload of EventLevelReported.
// Niveau is not range-checked; the store decides what it accepts.
type LevelReportedData struct {
	BinID  int64 `json:"bin_id" validate:"required"`
	Niveau int   `json:"niveau"`
}

// BinFullData is the payload of EventBinFull
type BinFullData struct {
	BinID     int64   `json:"bin_id"`
	Nom       string  `json:"nom"`
	Niveau    int     `json:"niveau"`
	Previous  int     `json:"previous_niveau"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
