package main

import (
	"context"
	"log"
	"log/slog"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/draftea/booking-system/booking-service/config"
	"github.com/draftea/booking-system/shared/events"
	sharedinfra "github.com/draftea/booking-system/shared/infrastructure"
	"github.com/draftea/booking-system/shared/telemetry"
)

type flusher interface {
	Flush(ctx context.Context) error
}

// sqsHandler runs booking requests delivered by an SQS event source mapping.
// Failed records are reported individually so only they are redelivered.
type sqsHandler struct {
	router    events.EventHandler
	publisher flusher
	tel       *telemetry.Telemetry
	logger    *slog.Logger
}

func (h *sqsHandler) Handle(ctx context.Context, sqsEvent awsevents.SQSEvent) (awsevents.SQSEventResponse, error) {
	var response awsevents.SQSEventResponse

	if h.tel != nil {
		ctx = telemetry.WithTelemetry(ctx, h.tel)
	}

	for _, record := range sqsEvent.Records {
		event, err := sharedinfra.DecodeMessage([]byte(record.Body))
		if err != nil {
			h.logger.WarnContext(ctx, "skipping malformed message", "message_id", record.MessageId, "error", err)
			continue
		}
		event.Metadata.Set(sharedinfra.SQSMessageIDKey, record.MessageId)

		if err := h.router.Handle(ctx, event); err != nil {
			h.logger.ErrorContext(ctx, "event handling failed",
				"message_id", record.MessageId,
				"topic", event.Topic.String(),
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures, awsevents.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	// the execution environment may freeze once we return
	if err := h.publisher.Flush(ctx); err != nil {
		h.logger.ErrorContext(ctx, "failed to flush booking events", "error", err)
	}

	return response, nil
}

func main() {
	cfg, err := config.ReadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	deps, err := config.BuildDependencies(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to build dependencies: %v", err)
	}
	defer deps.Close()

	handler := &sqsHandler{
		router:    deps.EventRouter,
		publisher: deps.EventPublisher,
		tel:       deps.Telemetry,
		logger:    deps.Logger,
	}

	lambda.Start(handler.Handle)
}
