package provisioning

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers provisioning events downstream.
type Publisher interface {
	// Publish writes all events or returns an error; the relay leaves them unsent on error.
	Publish(ctx context.Context, events []*Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

// message is the JSON envelope written to Kafka.
type message struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	PersonID     int64           `json:"co_person_id"`
	IdentifierID int64           `json:"identifier_id"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// KafkaPublisher implements Publisher using segmentio/kafka-go.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPublisher creates a publisher writing to topic. Returns nil when brokers or topic are empty.
// Call Close when shutting down.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Publish serializes events as JSON keyed by person id so events for one person stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, events []*Event) error {
	if p == nil || p.writer == nil || len(events) == 0 {
		return nil
	}
	msgs, err := encodeMessages(events)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, msgs...)
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeMessages(events []*Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(message{
			ID:           e.ID.String(),
			Type:         e.Type,
			PersonID:     e.PersonID,
			IdentifierID: e.IdentifierID,
			Payload:      json.RawMessage(e.Payload),
			CreatedAt:    e.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(e.PersonID, 10)),
			Value: value,
		})
	}
	return msgs, nil
}
