package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lankaconnect/events-backend/config"
)

var kafkaWriter *kafka.Writer

// Registration event types published to the stream. The notification
// consumer dispatches on these.
const (
	EventRegistrationConfirmed = "registration.confirmed"
	EventPaymentCompleted      = "payment.completed"
)

// RegistrationEvent is the wire payload of the registration stream.
type RegistrationEvent struct {
	Type           string    `json:"type"`
	EventID        string    `json:"event_id"`
	RegistrationID string    `json:"registration_id"`
	Email          string    `json:"email"`
	AttendeeCount  int       `json:"attendee_count"`
	AmountPaid     float64   `json:"amount_paid"`
	PaymentRef     string    `json:"payment_ref,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// InitializeKafka sets up the shared writer for the registration stream.
// Publishing degrades to a log line when brokers are not configured.
func InitializeKafka(cfg *config.Config) {
	if cfg.KafkaBrokers == "" {
		log.Println("Kafka brokers not configured, registration events will not be published")
		return
	}

	kafkaWriter = &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.KafkaBrokers, ",")...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

// PublishRegistrationEvent writes one event to the registration stream.
// Failures are returned, not fatal; callers treat publishing as best-effort.
func PublishRegistrationEvent(ctx context.Context, evt RegistrationEvent) error {
	if kafkaWriter == nil {
		log.Printf("kafka disabled, dropping %s for registration %s", evt.Type, evt.RegistrationID)
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal registration event: %w", err)
	}

	return kafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.EventID),
		Value: payload,
	})
}

// NewRegistrationReader builds a consumer-group reader over the registration
// stream for the notification worker.
func NewRegistrationReader(cfg *config.Config) *kafka.Reader {
	if cfg.KafkaBrokers == "" {
		return nil
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// CloseKafka flushes and closes the shared writer.
func CloseKafka() {
	if kafkaWriter != nil {
		_ = kafkaWriter.Close()
	}
}
