package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

const (
	DefaultExchange = "fulfillment"

	// Routing keys
	OutcomeRoutingKeyPrefix = "outcome."
	ReportRoutingKey        = "report.business"
)

type RabbitMQConfig struct {
	URL      string
	Exchange string
	Retries  int
}

// OutcomeMessage is the body published for every closed request.
type OutcomeMessage struct {
	Outcome domain.Outcome `json:"outcome"`
	Message string         `json:"message"`
}

// RabbitPublisher publishes outcomes and reports to a topic exchange.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitPublisher dials with retry and declares the exchange.
func NewRabbitPublisher(cfg RabbitMQConfig, logger *zap.Logger) (*RabbitPublisher, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 5
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < cfg.Retries; i++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		retryTime := time.Duration(i*i)*time.Second + time.Second
		logger.Warn("failed to connect to RabbitMQ, retrying", zap.Duration("retry_in", retryTime), zap.Error(err))
		time.Sleep(retryTime)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}
	logger.Info("declared exchange", zap.String("exchange", cfg.Exchange))

	return &RabbitPublisher{conn: conn, channel: channel, exchange: cfg.Exchange, logger: logger}, nil
}

func (p *RabbitPublisher) PublishOutcome(ctx context.Context, o domain.Outcome, message string) error {
	return p.publish(ctx, OutcomeRoutingKey(o.Status), OutcomeMessage{Outcome: o, Message: message})
}

func (p *RabbitPublisher) PublishReport(ctx context.Context, r domain.BusinessReport) error {
	return p.publish(ctx, ReportRoutingKey, r)
}

func (p *RabbitPublisher) publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to exchange %s with routing key %s: %w", p.exchange, routingKey, err)
	}

	p.logger.Debug("published message", zap.String("exchange", p.exchange), zap.String("routing_key", routingKey))
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func OutcomeRoutingKey(s domain.Status) string {
	return OutcomeRoutingKeyPrefix + string(s)
}
