package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Producer streams booking lifecycle events. In mock mode nothing leaves the
// process; events are only logged, which keeps local development free of a
// broker requirement.
type Producer struct {
	writers  map[string]*kafka.Writer
	topics   config.TopicConfig
	mockMode bool
	log      *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	p := &Producer{
		writers:  make(map[string]*kafka.Writer),
		topics:   cfg.Topics,
		mockMode: cfg.MockMode,
		log:      log,
	}
	if !cfg.MockMode {
		for _, topic := range []string{cfg.Topics.TicketsIssued, cfg.Topics.PaymentConfirmed, cfg.Topics.TicketCheckedIn, cfg.Topics.GroupCancelled} {
			p.writers[topic] = kafka.NewWriter(kafka.WriterConfig{
				Brokers: cfg.Brokers,
				Topic:   topic,
			})
		}
	}
	return p
}

type groupEvent struct {
	PaymentGroupRef string          `json:"payment_group_ref"`
	Tickets         []models.Ticket `json:"tickets"`
	At              time.Time       `json:"at"`
}

func (p *Producer) PublishTicketsIssued(groupRef string, tickets []models.Ticket) error {
	return p.publishGroup(p.topics.TicketsIssued, groupRef, tickets)
}

func (p *Producer) PublishPaymentConfirmed(groupRef string, tickets []models.Ticket) error {
	return p.publishGroup(p.topics.PaymentConfirmed, groupRef, tickets)
}

func (p *Producer) PublishGroupCancelled(groupRef string, tickets []models.Ticket) error {
	return p.publishGroup(p.topics.GroupCancelled, groupRef, tickets)
}

func (p *Producer) PublishTicketCheckedIn(ticket models.Ticket) error {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return p.publish(p.topics.TicketCheckedIn, ticket.TicketCode, payload)
}

func (p *Producer) publishGroup(topic, groupRef string, tickets []models.Ticket) error {
	payload, err := json.Marshal(groupEvent{
		PaymentGroupRef: groupRef,
		Tickets:         tickets,
		At:              time.Now(),
	})
	if err != nil {
		return err
	}
	return p.publish(topic, groupRef, payload)
}

func (p *Producer) publish(topic, key string, payload []byte) error {
	if p.mockMode {
		if p.log != nil {
			p.log.LogKafka("MOCK", topic, string(payload))
		}
		return nil
	}
	writer, ok := p.writers[topic]
	if !ok {
		return nil
	}
	if p.log != nil {
		p.log.LogKafka("PUBLISH", topic, key)
	}
	return writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
}

// Close shuts down every topic writer.
func (p *Producer) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
