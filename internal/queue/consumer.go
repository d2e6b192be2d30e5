package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const reservationQueueName = "reservation.confirmed"

// StartReservationConsumer connects to RabbitMQ, declares the durable
// reservation.confirmed queue and starts consuming.  Each message is
// appended to logs/reservation.log in a single-line, human-friendly
// format.  The function runs a reconnect loop forever: broker outages
// are logged and retried with backoff, and a message that cannot be
// processed is rejected without requeue so a poison message cannot
// wedge the queue.
func StartReservationConsumer(url string, logger *slog.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("reservation-consumer dial failed", "err", err, "retry_in", backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, logger); err != nil {
			logger.Warn("reservation-consumer loop ended, reconnecting", "err", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("reservation-consumer set QoS failed", "err", err)
	}

	_, err = ch.QueueDeclare(reservationQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(reservationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			logger.Error("reservation-consumer handle message failed", "err", err)
			_ = d.Nack(false, false) // reject, do not requeue
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev ReservationConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "reservation.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	rail := ev.Rail
	if rail == "" {
		rail = "FREE"
	}
	line := fmt.Sprintf("[%s] Reservation confirmed | reference=%s | space=%q (id=%d) | zone=%q (id=%d) | chat_id=%d | plate=%s | rail=%s | amount=%d | until=%s\n",
		ev.ConfirmedAt, ev.Reference, ev.SpaceLabel, ev.SpaceID, ev.ZoneName, ev.ZoneID, ev.ChatID, ev.LicensePlate, rail, ev.Amount, ev.EndsAt)

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
