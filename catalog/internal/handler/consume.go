package handler

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
	"github.com/Maruda-Patryk/api-library/pkg/kafka"
	"github.com/Maruda-Patryk/api-library/pkg/retry"
)

type applyTransition func(ctx context.Context, serialNumber string, req model.TransitionRequest) (model.BookView, error)

// Consumer applies transition commands read from kafka.
//
// Rejected and malformed commands are marked and dropped. A command that keeps
// failing with a storage outage ends the claim at its own offset, so no later
// message is marked past it and the next session reads it again.
type Consumer struct {
	apply     applyTransition
	log       *zap.Logger
	retryOpts []retry.Option
	ready     chan struct{}
	readyOnce sync.Once
}

func NewConsumer(apply applyTransition, log *zap.Logger, retryOpts ...retry.Option) *Consumer {
	opts := []retry.Option{
		retry.WithRetryable(func(err error) bool { return errors.Is(err, errs.ErrStorageUnavailable) }),
	}
	return &Consumer{
		apply:     apply,
		log:       log.Named("consumer"),
		retryOpts: append(opts, retryOpts...),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the first session is set up.
func (consumer *Consumer) Ready() <-chan struct{} {
	return consumer.ready
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	consumer.readyOnce.Do(func() { close(consumer.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			if !consumer.handle(session.Context(), message) {
				session.ResetOffset(message.Topic, message.Partition, message.Offset, "")
				if session.Context().Err() != nil {
					return nil
				}
				return errors.Errorf("claim %s/%d stopped at offset %d", message.Topic, message.Partition, message.Offset)
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// handle reports whether message is done with and may be marked.
func (consumer *Consumer) handle(ctx context.Context, message *sarama.ConsumerMessage) bool {
	cmd, err := kafka.DecodeTransitionCommand(message.Value)
	if err != nil {
		consumer.log.Error("decode command", zap.Error(err), zap.ByteString("value", message.Value))
		return true
	}
	req, err := model.ParseTransitionRequest(cmd.Changes)
	if err != nil {
		consumer.log.Error("parse changes", zap.String("serial_number", cmd.SerialNumber), zap.Error(err))
		return true
	}

	err = retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		_, err := consumer.apply(ctx, cmd.SerialNumber, req)
		return err
	}, consumer.retryOpts...)
	switch {
	case err == nil:
		consumer.log.Debug("transition applied",
			zap.String("serial_number", cmd.SerialNumber),
			zap.Time("timestamp", message.Timestamp),
			zap.String("topic", message.Topic))
		return true
	case errors.Is(err, errs.ErrStorageUnavailable), ctx.Err() != nil:
		consumer.log.Error("transition not applied, leaving for redelivery",
			zap.String("serial_number", cmd.SerialNumber), zap.Error(err))
		return false
	default:
		consumer.log.Warn("transition refused",
			zap.String("serial_number", cmd.SerialNumber),
			zap.String("reason", errs.ReasonCode(err)),
			zap.Error(err))
		return true
	}
}
