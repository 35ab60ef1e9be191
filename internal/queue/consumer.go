package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/events"
)

// Consumer drains the activity queue into a handler, normally the
// activity logger.  Messages are acked only after the handler succeeds.
type Consumer struct {
	url    string
	queue  string
	handle events.Handler
	log    *zap.Logger
}

func NewConsumer(url, queue string, handle events.Handler, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, queue: queue, handle: handle, log: log.Named("amqp-consumer")}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
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
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set qos failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("consuming", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.process(ctx, d)
		}
	}
}

// process acks on success.  A failed first delivery is requeued once;
// undecodable or twice-failed messages are rejected so they cannot loop.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	e, err := decode(d.Body)
	if err != nil {
		c.log.Error("rejecting malformed message", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := c.handle(ctx, e); err != nil {
		requeue := !d.Redelivered
		c.log.Warn("handler failed", zap.String("id", e.ID), zap.Bool("requeue", requeue), zap.Error(err))
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
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
