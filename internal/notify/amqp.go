package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"
)

const (
	// DefaultExchange is the topic exchange milestones are published to.
	DefaultExchange = "liveledger.notifications"

	// RoutingKey is the routing key of every milestone message.
	RoutingKey = "match.milestone"
)

// Channel is the part of *amqp.Channel the notifier publishes through.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Message is the JSON body of a published notification.
type Message struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
}

// AMQPNotifier publishes notifications to a topic exchange, where a push
// gateway picks them up.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
	now      func() time.Time
}

// DialAMQP connects to the broker at url, opens a channel and declares a
// durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPNotifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 30 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	slog.Info("amqp notifier connected", "exchange", exchange)
	n := NewAMQP(ch, exchange)
	n.conn = conn
	return n, nil
}

// NewAMQP publishes through an already open channel.
func NewAMQP(ch Channel, exchange string) *AMQPNotifier {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPNotifier{ch: ch, exchange: exchange, now: time.Now}
}

// Notify publishes one persistent JSON message.
func (n *AMQPNotifier) Notify(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sent := n.now().UTC()
	payload, err := json.Marshal(Message{Title: title, Body: body, SentAt: sent})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	err = n.ch.Publish(n.exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    sent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close closes the channel and, if the notifier dialed it, the connection.
func (n *AMQPNotifier) Close() error {
	err := n.ch.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
