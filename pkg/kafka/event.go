package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix is the namespace shared by all catalog topics.
const TopicPrefix = "catalog"

// Topic constructs a fully-qualified topic name, e.g. catalog.courses.published.
func Topic(entity, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, entity, action)
}

// Event is the envelope carried by every catalog message.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Key           string            `json:"key"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates an event with a generated ID and the current UTC time.
// The key decides the partition the event lands on.
func NewEvent(eventType, key, source string, data any) (*Event, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		raw = b
	}

	return &Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Key:       key,
		Version:   1,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Data:      raw,
		Metadata:  make(map[string]string),
	}, nil
}

// WithCorrelationID sets the correlation ID on the event.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithMetadata adds a key-value pair to the event metadata.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an event from JSON bytes. An envelope without
// an event type is rejected.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("decode event: missing event_type")
	}
	return &event, nil
}

// UnmarshalData deserializes the event data payload into the given target.
// An event without payload leaves target untouched.
func (e *Event) UnmarshalData(target any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, target)
}
