package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Assigner is the part of Service the consumer drives.
type Assigner interface {
	Assign(ctx context.Context, req Request) (*Result, error)
}

// Consumer reads JSON assignment requests from Kafka and runs each through the service.
// Failed assignments are logged and audited by the service; the consumer moves on.
type Consumer struct {
	reader  MessageReader
	svc     Assigner
	timeout time.Duration
	logger  *zap.Logger
}

// NewConsumer returns a Consumer. timeout bounds each assignment; <= 0 means 60s.
func NewConsumer(reader MessageReader, svc Assigner, timeout time.Duration, logger *zap.Logger) *Consumer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: reader, svc: svc, timeout: timeout, logger: logger}
}

// NewKafkaReader returns a consumer-group reader for topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("assignment consumer: kafka read error", zap.Error(err))
			continue
		}
		c.Handle(ctx, msg)
	}
}

// Handle processes one message. It returns the assignment result, or nil when the message was
// malformed or the assignment failed.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) *Result {
	req, err := DecodeRequest(msg.Value)
	if err != nil {
		c.logger.Warn("assignment consumer: dropping malformed request",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	res, err := c.svc.Assign(runCtx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		c.logger.Info("assignment consumer: request not assigned",
			zap.Int64("record_id", req.RecordID),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	return res
}
