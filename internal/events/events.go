// Package events publishes inventory notifications to RabbitMQ.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
)

// Routing keys.
const (
	TypeReorderAlert   = "inventory.reorder_alert"
	TypeRecordsChanged = "inventory.records_changed"
)

// Source identifies this service in published envelopes.
const Source = "rawmat-dashboard"

// Event is the envelope for every published message.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh ID.
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ReorderAlertEvent is published when current stock is at or below the
// reorder point.
type ReorderAlertEvent struct {
	Material       string          `json:"material"`
	Status         domain.Status   `json:"status"`
	CurrentStock   decimal.Decimal `json:"current_stock"`
	ReorderPoint   decimal.Decimal `json:"reorder_point"`
	SafetyStock    decimal.Decimal `json:"safety_stock"`
	LeadTimeDays   int             `json:"lead_time_days"`
	LastRecordDate time.Time       `json:"last_record_date"`
	Message        string          `json:"message"`
}

// NewReorderAlert builds the alert payload from a snapshot.
func NewReorderAlert(snap *policy.Snapshot) ReorderAlertEvent {
	return ReorderAlertEvent{
		Material:       snap.Material,
		Status:         snap.Status,
		CurrentStock:   snap.CurrentStock,
		ReorderPoint:   snap.ReorderPoint,
		SafetyStock:    snap.SafetyStock,
		LeadTimeDays:   snap.Parameters.LeadTimeDays,
		LastRecordDate: snap.LastRecordDate,
		Message:        domain.AlertMessage(snap.ReorderAlert),
	}
}

// RecordsChangedEvent is published after records are appended or updated.
type RecordsChangedEvent struct {
	Operation string   `json:"operation"`
	Materials []string `json:"materials"`
	Count     int      `json:"count"`
}
