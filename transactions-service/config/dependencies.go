package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/draftea/booking-system/shared/events"
	sharedinfra "github.com/draftea/booking-system/shared/infrastructure"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/draftea/booking-system/shared/saga"
	"github.com/draftea/booking-system/shared/telemetry"
	"github.com/draftea/booking-system/transactions-service/application"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/draftea/booking-system/transactions-service/handlers"
	"github.com/draftea/booking-system/transactions-service/infrastructure"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Dependencies struct {
	Logger *slog.Logger

	// Storage
	DB                    *sqlx.DB
	TransactionRepository domain.TransactionRepository

	// Use Cases
	CreateTransaction     *application.CreateTransaction
	GetTransaction        *application.GetTransaction
	ListUserTransactions  *application.ListUserTransactions
	TransitionTransaction *application.TransitionTransaction

	// HTTP Handlers
	TransactionHandlers *handlers.TransactionHandlers

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

	if config.Telemetry.Enabled {
		telConfig := telemetry.TransactionsServiceConfig.
			WithOTLPEndpoint(config.Telemetry.OTLPEndpoint).
			WithVersion(config.Telemetry.Version)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			deps.Logger.WarnContext(ctx, "failed to initialize telemetry", "error", err)
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	repo, err := deps.buildRepository(ctx, config)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.TransactionRepository = repo

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

	deps.EventPublisher = events.NewAsyncPublisher(broker, deps.Logger,
		events.WithQueueSize(config.Publisher.QueueSize),
		events.WithPublishWorkers(config.Publisher.Workers),
		events.WithPublishTimeout(config.Publisher.PublishTimeout),
	)

	if config.AWS.QueueURL != "" {
		deps.EventSubscriber = sharedinfra.NewSQSSubscriberAdapter(config.AWS, deps.Logger, config.Subscriber.Options()...)
	}

	// Initialize use cases
	deps.CreateTransaction = application.NewCreateTransaction(repo, deps.EventPublisher, deps.Logger)
	deps.GetTransaction = application.NewGetTransaction(repo)
	deps.ListUserTransactions = application.NewListUserTransactions(repo)
	deps.TransitionTransaction = application.NewTransitionTransaction(repo, deps.EventPublisher, config.Transition.MaxAttempts, deps.Logger)

	// Initialize handlers
	deps.TransactionHandlers = handlers.NewTransactionHandlers(
		deps.CreateTransaction,
		deps.GetTransaction,
		deps.ListUserTransactions,
		deps.TransitionTransaction,
		deps.Logger,
	)

	eventHandlers := handlers.NewTransactionEventHandlers(deps.CreateTransaction, deps.TransitionTransaction, deps.Logger)
	deps.EventRouter = saga.NewChoreographyEventRouter(deps.Logger)
	deps.EventRouter.RegisterHandler(events.TravelBookingCreatedEvent, eventHandlers)
	deps.EventRouter.RegisterHandler(events.TransactionTransitionRequestedEvent, eventHandlers)

	return deps, nil
}

func (d *Dependencies) buildRepository(ctx context.Context, config *Config) (domain.TransactionRepository, error) {
	switch config.Store.Driver {
	case DriverMemory:
		d.Logger.WarnContext(ctx, "using in-memory transaction store")
		return infrastructure.NewMemoryTransactionRepository(), nil

	case DriverDynamoDB:
		awsConfig := config.AWS
		if config.Store.DynamoDB.Endpoint != "" {
			awsConfig.Endpoint = config.Store.DynamoDB.Endpoint
		}
		awsCfg, err := sharedinfra.LoadAWSConfig(ctx, awsConfig)
		if err != nil {
			return nil, err
		}
		return infrastructure.NewDynamoDBTransactionRepository(dynamodb.NewFromConfig(awsCfg), config.Store.DynamoDB.Table), nil
	}

	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	d.DB = db

	repo := infrastructure.NewPostgresTransactionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare transactions table: %w", err)
	}
	return repo, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

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
