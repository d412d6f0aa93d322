package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequestID     int64                  `json:"request_id,omitempty"`
	TripID        int64                  `json:"trip_id,omitempty"`
	RecipientIDs  []int64                `json:"recipient_ids,omitempty"`
	Addresses     []string               `json:"addresses,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, requestID, tripID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, requestID, tripID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, requestID, tripID int64, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequestID:     requestID,
		TripID:        tripID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// FromNotice wraps a notice decided by the domain into an event. All notices
// produced by one mutating call share correlationID.
func FromNotice(n entity.Notice, correlationID string) (*Event, error) {
	t, ok := TypeForKind(n.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	evt := NewEventWithCorrelation(t, n.RequestID, n.TripID, copyPayload(n.Payload, 0), correlationID)
	evt.RecipientIDs = append([]int64(nil), n.RecipientIDs...)
	evt.Addresses = append([]string(nil), n.Addresses...)
	return evt, nil
}

// Notice turns a notice event back into the notice it carries
func (e *Event) Notice() (entity.Notice, error) {
	kind, ok := e.Type.Kind()
	if !ok {
		return entity.Notice{}, fmt.Errorf("event %s does not carry a notice", e.Type)
	}
	return entity.Notice{
		Kind:         kind,
		RequestID:    e.RequestID,
		TripID:       e.TripID,
		RecipientIDs: e.RecipientIDs,
		Addresses:    e.Addresses,
		Payload:      e.Payload,
	}, nil
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	cp := *e
	cp.Payload = copyPayload(e.Payload, 1)
	cp.Payload[key] = value
	return &cp
}

func copyPayload(src map[string]interface{}, extra int) map[string]interface{} {
	dst := make(map[string]interface{}, len(src)+extra)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload.
// Payloads decoded from JSON carry float64 numbers.
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}
