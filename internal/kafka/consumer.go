package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
)

// PaymentEvent is what the external payment collaborator publishes when a
// purchase settles out-of-band.
type PaymentEvent struct {
	PaymentGroupRef string `json:"payment_group_ref"`
	Status          string `json:"status"`
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads settled-payment events and hands them to the booking core,
// so a payment confirmed by the gateway flips the whole group without an
// HTTP round trip.
type Consumer struct {
	reader messageReader
	topic  string
	// backoff throttles the loop after a failed read so a dead broker does
	// not spin it hot.
	backoff time.Duration
	log     *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, topic: topic, backoff: time.Second, log: log}
}

// Start consumes until the context is cancelled. Malformed messages are
// logged and skipped; the handler owns retries for everything else.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, event PaymentEvent)) {
	if c.log != nil {
		c.log.LogKafka("CONSUME", c.topic, "consumer started")
	}

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if c.log != nil {
				c.log.Warn("KAFKA", "read message: "+err.Error())
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		var event PaymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			if c.log != nil {
				c.log.Warn("KAFKA", "unmarshal payment event: "+err.Error())
			}
			continue
		}
		handler(ctx, event)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
