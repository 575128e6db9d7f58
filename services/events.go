package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// EventOrderPlaced is the routing key published after a successful checkout
const EventOrderPlaced = "order.placed"

// Publisher sends domain events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// OrderPlacedEvent is the payload of EventOrderPlaced
type OrderPlacedEvent struct {
	OrderNumber string          `json:"order_number"`
	UserID      uint            `json:"user_id"`
	Email       string          `json:"email"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	PlacedAt    time.Time       `json:"placed_at"`
}

// eventEnvelope is the message body written to the exchange
type eventEnvelope struct {
	Pattern string      `json:"pattern"`
	Data    interface{} `json:"data"`
}

var publisherInstance Publisher = LogPublisher{}

// GetPublisher returns the configured event publisher
func GetPublisher() Publisher {
	return publisherInstance
}

// SetPublisher replaces the event publisher (nil restores the logging publisher)
func SetPublisher(p Publisher) {
	if p == nil {
		p = LogPublisher{}
	}
	publisherInstance = p
}

// AMQPPublisher publishes events to a RabbitMQ topic exchange
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials amqpURL and declares a durable topic exchange
func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// Publish writes payload as a persistent JSON message under routingKey
func (p *AMQPPublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(eventEnvelope{Pattern: routingKey, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	logrus.WithFields(logrus.Fields{"exchange": p.exchange, "routing_key": routingKey}).Debug("Published event")
	return nil
}

// Close shuts the channel and connection down
func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	logrus.WithFields(logrus.Fields{"routing_key": routingKey, "payload": payload}).Info("Event")
	return nil
}
