package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
	"github.com/segmentio/kafka-go"
)

// ProfilePublisher publishes profile.updated events to the broker. Events
// are keyed by patient ID so updates for one patient stay ordered within a
// partition.
type ProfilePublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewProfilePublisher creates a publisher for the profile event topic
func NewProfilePublisher(cfg *config.KafkaConfig, log *logger.Logger) interfaces.ProfileEventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.ProfileTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &ProfilePublisher{
		writer: writer,
		logger: log,
	}
}

// PublishProfileUpdated publishes one profile change event
func (p *ProfilePublisher) PublishProfileUpdated(event *types.ProfileUpdatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal profile event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PatientID),
		Value: payload,
	})
	if err != nil {
		p.logger.WithError(err).Error("Failed to publish profile event")
		return fmt.Errorf("failed to publish profile event: %w", err)
	}

	p.logger.WithField("patient_id", event.PatientID).Info("Published profile.updated event")
	return nil
}

// Close flushes and closes the underlying writer
func (p *ProfilePublisher) Close() error {
	return p.writer.Close()
}
