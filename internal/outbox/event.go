package outbox

import (
	"encoding/json"
	"time"
)

// Topics consumed by the notification collaborator. The Kafka topic equals
// the event type.
const (
	TopicAppointmentCreated       = "appointment.created.v1"
	TopicAppointmentCancelled     = "appointment.cancelled.v1"
	TopicAppointmentStatusChanged = "appointment.status_changed.v1"
)

const AggregateAppointment = "appointment"

// Event is the envelope written to the outbox table in the same transaction
// as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Record is an outbox row waiting to be relayed.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// NewEvent marshals payload into an event for aggregateID.
func NewEvent(eventType, aggregateType, aggregateID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}, nil
}
