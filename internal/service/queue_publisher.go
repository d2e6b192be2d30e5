// Package service contains outbound integrations invoked from the
// request path.  Errors are logged and returned so callers can ignore
// failures without interrupting the main flow.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/parking-reservation-bot/internal/queue"
)

// ReservationQueueName is the durable queue confirmed reservations are
// published to and the background consumer reads from.
const ReservationQueueName = "reservation.confirmed"

// QueuePublisher publishes domain events to RabbitMQ.  Each publish
// dials its own short-lived connection; confirmations are rare enough
// that connection reuse is not worth a reconnect-aware channel pool.
type QueuePublisher struct {
	url    string
	logger *slog.Logger
}

// NewQueuePublisher returns a publisher for the given broker URL.
func NewQueuePublisher(url string, logger *slog.Logger) *QueuePublisher {
	return &QueuePublisher{url: url, logger: logger}
}

// PublishReservationConfirmed publishes the event to the
// reservation.confirmed queue.  It never panics; any error is logged
// and returned so the caller can treat publishing as best effort.
// Messages are marked persistent.
func (p *QueuePublisher) PublishReservationConfirmed(ctx context.Context, event q.ReservationConfirmedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Error("rabbitmq dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Error("rabbitmq channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Declare is idempotent.  Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		ReservationQueueName, // name
		true,                 // durable
		false,                // autoDelete
		false,                // exclusive
		false,                // noWait
		nil,                  // args
	); err != nil {
		p.logger.Error("rabbitmq queue declare failed", "err", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event failed", "err", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                   // default exchange
		ReservationQueueName, // routing key = queue name
		false,                // mandatory
		false,                // immediate
		pub,
	); err != nil {
		p.logger.Error("rabbitmq publish failed", "err", err)
		return err
	}

	return nil
}
