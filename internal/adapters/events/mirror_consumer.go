package events

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mwynne/curio/internal/domain/mirror"
	pkgevents "github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

const mirrorQueue = "mirror_transactions"

// MirrorConsumer consumes every engine event and mirrors its receipt into
// the relational store
type MirrorConsumer struct {
	conn    *amqp.Connection
	service *mirror.Service
	logger  *slog.Logger
}

// NewMirrorConsumer creates a new mirror consumer
func NewMirrorConsumer(conn *amqp.Connection, service *mirror.Service, logger *slog.Logger) *MirrorConsumer {
	return &MirrorConsumer{
		conn:    conn,
		service: service,
		logger:  logger,
	}
}

// Run starts the consumer loop
func (c *MirrorConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		mirrorQueue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for messages...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}

			envelope, parseErr := ledger.ParseEnvelope(d.Body)
			if parseErr != nil {
				c.logger.Error("Failed to parse envelope", "routing_key", d.RoutingKey, "error", parseErr)
				// Unparseable now means unparseable forever: drop it.
				if nackErr := d.Nack(false, false); nackErr != nil {
					c.logger.Error("Failed to Nack message", "error", nackErr)
				}
				continue
			}

			// Idempotent: redeliveries are detected by tx hash and acked.
			if err := c.service.ProcessEnvelope(ctx, envelope); err != nil {
				c.logger.Error("Failed to process event", "event_type", envelope.EventType, "error", err)
				// Nack(requeue) to retry later
				if nackErr := d.Nack(false, true); nackErr != nil {
					c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
				}
			} else {
				if ackErr := d.Ack(false); ackErr != nil {
					c.logger.Error("Failed to Ack message", "error", ackErr)
				}
				c.logger.Info("Mirrored event", "event_type", envelope.EventType, "tx_hash", envelope.Receipt.TxHash.Hex())
			}
		}
	}
}

func (c *MirrorConsumer) setupRabbitMQ(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		pkgevents.Exchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		mirrorQueue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return err
	}

	// The mirror records every operation, so it binds to the whole stream.
	return ch.QueueBind(
		q.Name,             // queue name
		"#",                // routing key
		pkgevents.Exchange, // exchange
		false,
		nil,
	)
}
