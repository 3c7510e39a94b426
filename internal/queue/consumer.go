package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/service"
)

// Ingester stores analysis results.
type Ingester interface {
	SubmitResults(ctx context.Context, in []service.ResultInput) (int, error)
}

// Consumer reads analysis results from a durable queue. Messages that can
// never succeed are rejected without requeue; transient failures are
// requeued.
type Consumer struct {
	url    string
	queue  string
	ingest Ingester
	log    *zap.Logger
}

// NewConsumer builds a consumer for queue.
func NewConsumer(url, queue string, ingest Ingester, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, queue: queue, ingest: ingest, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := dialBroker(c.url)
		if err != nil {
			c.log.Warn("analysis consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("analysis consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("analysis consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("analysis consumer started", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

// acknowledger is the part of amqp.Delivery the consumer settles through.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	c.settle(ctx, d.MessageId, d.Body, &d)
}

func (c *Consumer) settle(ctx context.Context, id string, body []byte, ack acknowledger) {
	n, err := c.handle(ctx, body)
	switch {
	case err == nil:
		c.log.Debug("analysis results stored", zap.String("message_id", id), zap.Int("count", n))
		_ = ack.Ack(false)
	case permanent(err):
		c.log.Warn("analysis message rejected", zap.String("message_id", id), zap.Error(err))
		_ = ack.Nack(false, false)
	default:
		c.log.Error("analysis message failed, requeueing", zap.String("message_id", id), zap.Error(err))
		_ = ack.Nack(false, true)
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) (int, error) {
	results, err := decodeAnalysis(body)
	if err != nil {
		return 0, &decodeError{err}
	}
	return c.ingest.SubmitResults(ctx, results)
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode analysis message: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	var de *decodeError
	return errors.As(err, &de) ||
		errors.Is(err, service.ErrValidationFailed) ||
		errors.Is(err, service.ErrNotFound)
}
