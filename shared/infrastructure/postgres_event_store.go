package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var _ events.EventStore = (*PostgresEventStore)(nil)

// ErrConcurrencyConflict is returned when another writer advanced the stream first
var ErrConcurrencyConflict = errors.New("event stream concurrency conflict")

const uniqueViolation = "23505"

// EventStreamSchema creates the event_stream table used by PostgresEventStore
const EventStreamSchema = `
CREATE TABLE IF NOT EXISTS event_stream (
	id             UUID PRIMARY KEY,
	aggregate_id   TEXT        NOT NULL,
	topic          TEXT        NOT NULL,
	version        TEXT        NOT NULL,
	data           JSONB       NOT NULL,
	metadata       JSONB       NOT NULL,
	timestamp      TIMESTAMPTZ NOT NULL,
	correlation_id TEXT        NOT NULL DEFAULT '',
	stream_version INTEGER     NOT NULL,
	UNIQUE (aggregate_id, stream_version)
);
CREATE INDEX IF NOT EXISTS event_stream_topic_idx ON event_stream (topic, timestamp);
`

const insertEventQuery = `
	INSERT INTO event_stream (
		id, aggregate_id, topic, version, data, metadata,
		timestamp, correlation_id, stream_version
	) VALUES (
		:id, :aggregate_id, :topic, :version, :data, :metadata,
		:timestamp, :correlation_id, :stream_version
	)`

const selectEventColumns = `
	SELECT id, aggregate_id, topic, version, data, metadata,
		   timestamp, correlation_id, stream_version
	FROM event_stream`

// PostgresEventStore implements EventStore using PostgreSQL
type PostgresEventStore struct {
	db *sqlx.DB
}

// NewPostgresEventStore creates a new PostgresEventStore
func NewPostgresEventStore(db *sqlx.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

// postgresEvent represents event in database
type postgresEvent struct {
	ID            string    `db:"id"`
	AggregateID   string    `db:"aggregate_id"`
	Topic         string    `db:"topic"`
	Version       string    `db:"version"`
	Data          []byte    `db:"data"`
	Metadata      []byte    `db:"metadata"`
	Timestamp     time.Time `db:"timestamp"`
	CorrelationID string    `db:"correlation_id"`
	StreamVersion int       `db:"stream_version"`
}

// EnsureSchema creates the table if missing
func (es *PostgresEventStore) EnsureSchema(ctx context.Context) error {
	if _, err := es.db.ExecContext(ctx, EventStreamSchema); err != nil {
		return errors.Wrap(err, "failed to create event_stream schema")
	}
	return nil
}

// SaveEvents saves events, failing if the stream is not at expectedVersion
func (es *PostgresEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event, expectedVersion int) error {
	if len(evts) == 0 {
		return nil
	}

	return es.withTx(ctx, func(tx *sqlx.Tx) error {
		currentVersion, err := es.currentVersion(ctx, tx, aggregateID)
		if err != nil {
			return err
		}

		if currentVersion != expectedVersion {
			return errors.Wrapf(ErrConcurrencyConflict, "expected version %d, got %d", expectedVersion, currentVersion)
		}

		return es.insert(ctx, tx, evts, currentVersion)
	})
}

// AppendEvents appends events at the end of the stream regardless of its version
func (es *PostgresEventStore) AppendEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	const maxAttempts = 3

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = es.withTx(ctx, func(tx *sqlx.Tx) error {
			currentVersion, err := es.currentVersion(ctx, tx, aggregateID)
			if err != nil {
				return err
			}
			return es.insert(ctx, tx, evts, currentVersion)
		})
		if !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
	}

	return err
}

// GetEvents retrieves all events for an aggregate
func (es *PostgresEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	query := selectEventColumns + `
		WHERE aggregate_id = $1
		ORDER BY stream_version ASC`

	var pgEvents []postgresEvent
	if err := es.db.SelectContext(ctx, &pgEvents, query, aggregateID.String()); err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}

	return es.toDomainList(pgEvents)
}

// GetEventsByTopic retrieves events by topic with pagination
func (es *PostgresEventStore) GetEventsByTopic(ctx context.Context, topic events.Topic, offset, limit int) ([]*events.Event, error) {
	query := selectEventColumns + `
		WHERE topic = $1
		ORDER BY timestamp ASC
		LIMIT $2 OFFSET $3`

	var pgEvents []postgresEvent
	if err := es.db.SelectContext(ctx, &pgEvents, query, topic.String(), limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to get events by topic")
	}

	return es.toDomainList(pgEvents)
}

func (es *PostgresEventStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := es.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return translatePQError(err, "failed to commit events")
	}
	return nil
}

func (es *PostgresEventStore) currentVersion(ctx context.Context, tx *sqlx.Tx, aggregateID models.ID) (int, error) {
	var currentVersion int
	err := tx.GetContext(ctx, &currentVersion,
		"SELECT COALESCE(MAX(stream_version), 0) FROM event_stream WHERE aggregate_id = $1",
		aggregateID.String())
	if err != nil && err != sql.ErrNoRows {
		return 0, errors.Wrap(err, "failed to get current version")
	}
	return currentVersion, nil
}

func (es *PostgresEventStore) insert(ctx context.Context, tx *sqlx.Tx, evts []*events.Event, currentVersion int) error {
	for i, event := range evts {
		pgEvent, err := es.toPostgres(event, currentVersion+i+1)
		if err != nil {
			return errors.Wrap(err, "failed to convert event")
		}

		if _, err := tx.NamedExecContext(ctx, insertEventQuery, pgEvent); err != nil {
			return translatePQError(err, "failed to insert event")
		}
	}
	return nil
}

// translatePQError maps a unique violation on the stream version to ErrConcurrencyConflict
func translatePQError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.Wrap(ErrConcurrencyConflict, msg)
	}
	return errors.Wrap(err, msg)
}

// toPostgres converts domain event to postgres model
func (es *PostgresEventStore) toPostgres(event *events.Event, streamVersion int) (*postgresEvent, error) {
	data, err := event.MarshalPayload()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event data")
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event metadata")
	}

	return &postgresEvent{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		Topic:         event.Topic.String(),
		Version:       event.Version,
		Data:          data,
		Metadata:      metadata,
		Timestamp:     event.Timestamp,
		CorrelationID: event.CorrelationID.String(),
		StreamVersion: streamVersion,
	}, nil
}

func (es *PostgresEventStore) toDomainList(pgEvents []postgresEvent) ([]*events.Event, error) {
	result := make([]*events.Event, len(pgEvents))
	for i := range pgEvents {
		event, err := es.toDomain(&pgEvents[i])
		if err != nil {
			return nil, err
		}
		result[i] = event
	}
	return result, nil
}

// toDomain converts postgres model to domain event; the payload stays raw JSON
func (es *PostgresEventStore) toDomain(pgEvent *postgresEvent) (*events.Event, error) {
	metadata := make(events.Metadata)
	if len(pgEvent.Metadata) > 0 {
		if err := json.Unmarshal(pgEvent.Metadata, &metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal event metadata")
		}
	}

	topic, err := events.NewTopic(pgEvent.Topic)
	if err != nil {
		return nil, errors.Wrapf(err, "event %s", pgEvent.ID)
	}

	return &events.Event{
		ID:            models.ID(pgEvent.ID),
		AggregateID:   models.ID(pgEvent.AggregateID),
		Topic:         topic,
		Version:       pgEvent.Version,
		Data:          json.RawMessage(pgEvent.Data),
		Metadata:      metadata,
		Timestamp:     pgEvent.Timestamp,
		CorrelationID: models.ID(pgEvent.CorrelationID),
	}, nil
}
