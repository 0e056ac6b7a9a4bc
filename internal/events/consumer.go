package events

import (
	"context"
	"encoding/json"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
	"github.com/segmentio/kafka-go"
)

// ProfileEventHandler processes one profile change event. A returned error
// leaves the message uncommitted so it is redelivered.
type ProfileEventHandler func(event *types.ProfileUpdatedEvent) error

// ProfileConsumer consumes profile.updated events and dispatches them to a
// handler, replacing the browser-side window-event signaling with a typed
// broker subscription.
type ProfileConsumer struct {
	reader  *kafka.Reader
	handler ProfileEventHandler
	logger  *logger.Logger
}

// NewProfileConsumer creates a consumer group member for the profile topic
func NewProfileConsumer(cfg *config.KafkaConfig, handler ProfileEventHandler, log *logger.Logger) *ProfileConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.ProfileTopic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})

	return &ProfileConsumer{
		reader:  reader,
		handler: handler,
		logger:  log,
	}
}

// Run consumes events until the context is cancelled
func (c *ProfileConsumer) Run(ctx context.Context) error {
	c.logger.WithField("topic", c.reader.Config().Topic).Info("Profile event consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var event types.ProfileUpdatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// Malformed events are committed and dropped; redelivery
			// cannot fix them.
			c.logger.WithError(err).Warn("Dropping malformed profile event")
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}

		if err := c.handler(&event); err != nil {
			c.logger.WithError(err).WithField("patient_id", event.PatientID).
				Error("Profile event handler failed, leaving message uncommitted")
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// Close closes the underlying reader
func (c *ProfileConsumer) Close() error {
	return c.reader.Close()
}
