package infrastructure

import (
	"encoding/json"
	"time"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
)

// snsMessage is the wire envelope every service publishes and consumes
type snsMessage struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Metadata      events.Metadata `json:"metadata"`
	Topic         string          `json:"topic"`
	Version       string          `json:"version"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

// snsNotification is what SQS receives from an SNS subscription without raw delivery
type snsNotification struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId"`
	Message   string `json:"Message"`
}

// EncodeMessage serializes an event into the wire envelope
func EncodeMessage(event *events.Event) ([]byte, error) {
	payload, err := event.MarshalPayload()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	msg := &snsMessage{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		CorrelationID: event.CorrelationID.String(),
		Metadata:      event.Metadata,
		Topic:         event.Topic.String(),
		Version:       event.Version,
		Payload:       payload,
		Timestamp:     event.Timestamp,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}

	return body, nil
}

// DecodeMessage parses a message body, unwrapping an SNS notification if present.
// The payload is left as raw JSON for handlers to unmarshal.
func DecodeMessage(body []byte) (*events.Event, error) {
	var notification snsNotification
	if err := json.Unmarshal(body, &notification); err == nil && notification.Type == "Notification" {
		body = []byte(notification.Message)
	}

	var msg snsMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message")
	}

	topic, err := events.NewTopic(msg.Topic)
	if err != nil {
		return nil, errors.Wrap(err, "message has no topic")
	}

	metadata := msg.Metadata
	if metadata == nil {
		metadata = make(events.Metadata)
	}

	return &events.Event{
		ID:            models.ID(msg.ID),
		AggregateID:   models.ID(msg.AggregateID),
		CorrelationID: models.ID(msg.CorrelationID),
		Topic:         topic,
		Version:       msg.Version,
		Data:          msg.Payload,
		Metadata:      metadata,
		Timestamp:     msg.Timestamp,
	}, nil
}
