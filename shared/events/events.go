package events

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
)

var (
	ErrInvalidTopic    = errors.New("invalid topic")
	ErrInvalidReceiver = errors.New("receiver should be a pointer")
)

// Topic represents an event topic with pattern matching support.
//
// Patterns are dot separated. "*" matches exactly one segment, a leading
// and/or trailing "#" matches by suffix, prefix or substring.
type Topic string

func NewTopic(topic string) (Topic, error) {
	if strings.TrimSpace(topic) == "" {
		return "", ErrInvalidTopic
	}
	return Topic(topic), nil
}

func (t Topic) Matches(pattern Topic) bool {
	topicStr := t.String()
	patternStr := pattern.String()

	if patternStr == "#" {
		return true
	}

	hasPrefix := strings.HasPrefix(patternStr, "#")
	hasSuffix := strings.HasSuffix(patternStr, "#")
	core := strings.TrimSuffix(strings.TrimPrefix(patternStr, "#"), "#")

	switch {
	case hasPrefix && hasSuffix:
		return strings.Contains(topicStr, core)
	case hasPrefix:
		return strings.HasSuffix(topicStr, core)
	case hasSuffix:
		return strings.HasPrefix(topicStr, core)
	}

	return matchSegments(strings.Split(patternStr, "."), strings.Split(topicStr, "."))
}

func (t Topic) String() string {
	return string(t)
}

func matchSegments(pattern, topic []string) bool {
	if len(pattern) != len(topic) {
		return false
	}
	for i := range pattern {
		if pattern[i] != "*" && pattern[i] != topic[i] {
			return false
		}
	}
	return true
}

// Metadata represents event metadata
type Metadata map[string]string

func (m Metadata) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Metadata) Set(key, value string) {
	m[key] = value
}

func (m Metadata) Matches(o Metadata) bool {
	for k, v := range o {
		if m[k] != v {
			return false
		}
	}
	return true
}

// Event represents a domain event
type Event struct {
	ID            models.ID   `json:"id"`
	AggregateID   models.ID   `json:"aggregate_id"`
	Topic         Topic       `json:"topic"`
	Version       string      `json:"version"`
	Data          interface{} `json:"data"`
	Metadata      Metadata    `json:"metadata"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID models.ID   `json:"correlation_id,omitempty"`
}

// Publisher publishes events
type Publisher interface {
	Publish(ctx context.Context, events ...*Event) error
}

// EventHandler handles domain events
type EventHandler interface {
	Handle(ctx context.Context, event *Event) error
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc func(ctx context.Context, event *Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventStore stores and retrieves events
type EventStore interface {
	SaveEvents(ctx context.Context, aggregateID models.ID, events []*Event, expectedVersion int) error
	AppendEvents(ctx context.Context, aggregateID models.ID, events []*Event) error
	GetEvents(ctx context.Context, aggregateID models.ID) ([]*Event, error)
	GetEventsByTopic(ctx context.Context, topic Topic, offset, limit int) ([]*Event, error)
}

// NewEvent creates a new domain event
func NewEvent(aggregateID models.ID, topic Topic, data interface{}) *Event {
	return &Event{
		ID:          models.GenerateUUID(),
		AggregateID: aggregateID,
		Topic:       topic,
		Version:     "1.0",
		Data:        data,
		Metadata:    make(Metadata),
		Timestamp:   time.Now().UTC(),
	}
}

// WithCorrelationID sets correlation ID
func (e *Event) WithCorrelationID(correlationID models.ID) *Event {
	e.CorrelationID = correlationID
	return e
}

// WithMetadata adds metadata
func (e *Event) WithMetadata(key string, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(Metadata)
	}
	e.Metadata[key] = value
	return e
}

// MarshalPayload marshals the event payload
func (e *Event) MarshalPayload() (json.RawMessage, error) {
	switch b := e.Data.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}

	return json.Marshal(e.Data)
}

// UnmarshalPayload unmarshals the event payload into the given pointer
func (e *Event) UnmarshalPayload(v interface{}) error {
	vValue := reflect.ValueOf(v)
	if vValue.Kind() != reflect.Ptr || vValue.IsNil() {
		return ErrInvalidReceiver
	}

	vValue = vValue.Elem()
	if e.Data != nil {
		payloadValue := reflect.ValueOf(e.Data)
		if vValue.Type() == payloadValue.Type() {
			vValue.Set(payloadValue)
			return nil
		}
	}

	raw, err := e.MarshalPayload()
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	return json.Unmarshal(raw, v)
}

// Matches checks if the event matches the given topic pattern and metadata
func (e *Event) Matches(topicPattern Topic, metadata Metadata) bool {
	return e.Topic.Matches(topicPattern) && e.Metadata.Matches(metadata)
}

// Event topics
const (
	// Travel booking
	TravelBookingRequestedEvent          Topic = "travel.booking.requested"
	TravelBookingCreatedEvent            Topic = "travel.booking.created"
	TravelBookingCompensatedEvent        Topic = "travel.booking.compensated"
	TravelBookingCompensationFailedEvent Topic = "travel.booking.compensation_failed"

	// Transaction lifecycle
	TransactionCreatedEvent             Topic = "transaction.created"
	TransactionProcessingEvent          Topic = "transaction.processing"
	TransactionCompletedEvent           Topic = "transaction.completed"
	TransactionErrorEvent               Topic = "transaction.error"
	TransactionCanceledEvent            Topic = "transaction.canceled"
	TransactionTransitionRequestedEvent Topic = "transaction.transition.requested"
)
