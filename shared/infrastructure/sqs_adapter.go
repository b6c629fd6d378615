package infrastructure

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
)

// SQSSubscriberAdapter owns the SQS client and the running subscriber
type SQSSubscriberAdapter struct {
	cfg           AWSConfig
	logger        *slog.Logger
	opts          []SQSSubscriberOption
	sqsSubscriber *SQSEventSubscriber
}

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter for cfg.QueueURL
func NewSQSSubscriberAdapter(cfg AWSConfig, logger *slog.Logger, opts ...SQSSubscriberOption) *SQSSubscriberAdapter {
	return &SQSSubscriberAdapter{
		cfg:    cfg,
		logger: logger,
		opts:   opts,
	}
}

// Subscribe starts consuming the queue, dispatching every event to handler
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, handler EventHandler) error {
	if s.sqsSubscriber != nil {
		return errors.New("subscriber is already running")
	}

	awsCfg, err := LoadAWSConfig(ctx, s.cfg)
	if err != nil {
		return err
	}

	s.sqsSubscriber = NewSQSEventSubscriber(sqs.NewFromConfig(awsCfg), s.cfg.QueueURL, handler, s.logger, s.opts...)

	if err := s.sqsSubscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	return nil
}

// Close stops the subscriber
func (s *SQSSubscriberAdapter) Close() error {
	if s.sqsSubscriber == nil {
		return nil
	}

	if err := s.sqsSubscriber.Stop(context.Background()); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.sqsSubscriber = nil
	return nil
}
