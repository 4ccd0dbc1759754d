package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes account events to a RabbitMQ topic exchange so
// downstream consumers (mailers, audit trails) can react to them. Publish
// failures are logged and swallowed; the auth flow never blocks on the
// broker.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

func NewAMQPNotifier(url, exchange string, logger *slog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	return &AMQPNotifier{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (n *AMQPNotifier) Publish(ctx context.Context, e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		n.logger.ErrorContext(ctx, "marshal account event", "kind", e.Kind, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.channel.PublishWithContext(ctx, n.exchange, "auth."+e.Kind, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   e.At,
		Body:        body,
	})
	if err != nil {
		n.logger.ErrorContext(ctx, "publish account event", "kind", e.Kind, "error", err)
	}
}

func (n *AMQPNotifier) Close() error {
	if err := n.channel.Close(); err != nil {
		return err
	}
	return n.conn.Close()
}
