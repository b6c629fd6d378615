package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/draftea/booking-system/booking-service/application"
	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/draftea/booking-system/booking-service/handlers"
	"github.com/draftea/booking-system/booking-service/infrastructure"
	"github.com/draftea/booking-system/shared/events"
	sharedinfra "github.com/draftea/booking-system/shared/infrastructure"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/draftea/booking-system/shared/saga"
	"github.com/draftea/booking-system/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Dependencies struct {
	Logger *slog.Logger

	// Database
	DB         *sqlx.DB
	EventStore *sharedinfra.PostgresEventStore

	// Use Cases
	BookTravel *application.BookTravel

	// HTTP Handlers
	BookingHandlers *handlers.BookingHandlers

	// Event Handlers
	EventRouter *saga.ChoreographyEventRouter

	// Infrastructure
	SNSPublisher    *sharedinfra.SNSPublisherAdapter
	EventPublisher  *events.AsyncPublisher
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logging.New(config.Logging).With("service", config.ServiceName),
	}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.BookingServiceConfig.
			WithOTLPEndpoint(config.Telemetry.OTLPEndpoint).
			WithVersion(config.Telemetry.Version)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			// Continue without telemetry rather than failing
			deps.Logger.WarnContext(ctx, "failed to initialize telemetry", "error", err)
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize event store
	if config.EventStore.Enabled {
		db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		deps.DB = db

		deps.EventStore = sharedinfra.NewPostgresEventStore(db)
		if err := deps.EventStore.EnsureSchema(ctx); err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to prepare event store: %w", err)
		}
	}

	// Initialize AWS infrastructure
	var broker events.Publisher = sharedinfra.NewLogEventPublisher(deps.Logger)
	if config.AWS.TopicArn != "" {
		snsPublisher, err := sharedinfra.NewSNSPublisherAdapter(ctx, config.AWS, deps.Logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
		}
		deps.SNSPublisher = snsPublisher
		broker = snsPublisher
	}

	if deps.EventStore != nil {
		broker = sharedinfra.NewRecordingPublisher(deps.EventStore, broker)
	}

	deps.EventPublisher = events.NewAsyncPublisher(broker, deps.Logger,
		events.WithQueueSize(config.Publisher.QueueSize),
		events.WithPublishWorkers(config.Publisher.Workers),
		events.WithPublishTimeout(config.Publisher.PublishTimeout),
	)

	if config.AWS.QueueURL != "" {
		deps.EventSubscriber = sharedinfra.NewSQSSubscriberAdapter(config.AWS, deps.Logger, config.Subscriber.Options()...)
	}

	// Initialize use cases
	deps.BookTravel = application.NewBookTravel(
		reservationSteps(config, deps.Logger),
		deps.EventPublisher,
		deps.Logger,
	)

	// Initialize handlers
	var history handlers.BookingHistory
	if deps.EventStore != nil {
		history = deps.EventStore
	}
	deps.BookingHandlers = handlers.NewBookingHandlers(deps.BookTravel, history, deps.Logger)

	deps.EventRouter = saga.NewChoreographyEventRouter(deps.Logger)
	deps.EventRouter.RegisterHandler(events.TravelBookingRequestedEvent, handlers.NewBookingEventHandlers(deps.BookTravel, deps.Logger))

	return deps, nil
}

// reservationSteps builds the flight, hotel, car capabilities in booking order
func reservationSteps(config *Config, logger *slog.Logger) []application.ResourceStep {
	endpoints := map[domain.ResourceKind]infrastructure.HTTPReservationConfig{
		domain.ResourceFlight: config.Reservations.Flight,
		domain.ResourceHotel:  config.Reservations.Hotel,
		domain.ResourceCar:    config.Reservations.Car,
	}

	steps := make([]application.ResourceStep, 0, len(domain.BookingOrder))
	for _, kind := range domain.BookingOrder {
		var capability domain.ReservationCapability
		if cfg := endpoints[kind]; cfg.Endpoint != "" {
			capability = infrastructure.NewHTTPReservationClient(kind, cfg, logger)
		} else {
			capability = infrastructure.NewSimulatedReservationService(kind, config.Simulation, logger)
		}
		steps = append(steps, application.ResourceStep{Kind: kind, Capability: capability})
	}

	return steps
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	// drains queued events before the store and broker go away
	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.SNSPublisher != nil {
		if err := d.SNSPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close SNS publisher: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
