package service

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/pkg/circuit_breaker"
	"github.com/Maruda-Patryk/api-library/pkg/kafka"
)

// EventPublisher announces committed catalog changes. Publishing never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.CatalogEvent)
}

func NewEvent(typ kafka.EventType, serialNumber, cardNumber string) kafka.CatalogEvent {
	return kafka.CatalogEvent{
		ID:           uuid.NewString(),
		Type:         typ,
		SerialNumber: serialNumber,
		CardNumber:   cardNumber,
		Timestamp:    time.Now().UTC(),
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, kafka.CatalogEvent) {}

var errQueueFull = errors.New("producer queue is full")

type kafkaPublisher struct {
	producer sarama.AsyncProducer
	cb       circuit_breaker.CircuitBreaker
	topic    string
	log      *zap.Logger
	done     chan struct{}
}

// NewKafkaPublisher sends events through producer. Delivery errors reported by the
// producer count against the breaker, and an open breaker drops events.
func NewKafkaPublisher(producer sarama.AsyncProducer, cb circuit_breaker.CircuitBreaker, log *zap.Logger) *kafkaPublisher {
	p := &kafkaPublisher{
		producer: producer,
		cb:       cb,
		topic:    kafka.CatalogEventsTopic,
		log:      log.Named("events"),
		done:     make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

func (p *kafkaPublisher) Publish(_ context.Context, event kafka.CatalogEvent) {
	err := p.cb.Call(func() error {
		data, err := event.Encode()
		if err != nil {
			return err
		}
		msg := &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(event.SerialNumber),
			Value: sarama.ByteEncoder(data),
		}
		select {
		case p.producer.Input() <- msg:
			return nil
		default:
			return errQueueFull
		}
	})
	if err != nil {
		p.log.Warn("event dropped",
			zap.String("type", string(event.Type)),
			zap.String("serial_number", event.SerialNumber),
			zap.Stringer("breaker", p.cb.Status()),
			zap.Error(err))
	}
}

func (p *kafkaPublisher) drainErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		_ = p.cb.Call(func() error { return perr.Err }) //nolint:errcheck
		p.log.Error("event delivery", zap.String("topic", perr.Msg.Topic), zap.Error(perr.Err))
	}
}

// Close flushes pending events and stops the producer.
func (p *kafkaPublisher) Close() error {
	p.producer.AsyncClose()
	<-p.done
	return nil
}
