package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const DefaultExchange = "cctp.transfers"

// Publisher announces persisted transfer transitions to downstream consumers.
type Publisher interface {
	PublishTransfer(ctx context.Context, rec *types.TransferRecord) error
	Close()
}

// RoutingKey is transfer.<direction>.<status>, e.g. transfer.withdraw.completed.
func RoutingKey(rec *types.TransferRecord) string {
	return fmt.Sprintf("transfer.%s.%s", rec.Direction, rec.Status)
}

// New returns an AMQP publisher, or a no-op publisher when no broker is
// configured or the broker cannot be reached at startup.
func New(cfg types.EventsSettings, logger log.Logger) Publisher {
	if cfg.AMQPURL == "" {
		logger.Info("No amqp url configured, transfer events are disabled")
		return NopPublisher{}
	}
	p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		logger.Error("Unable to connect to event broker, transfer events are disabled", "err", err)
		return NopPublisher{}
	}
	return p
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishTransfer(context.Context, *types.TransferRecord) error { return nil }

func (NopPublisher) Close() {}

// AMQPPublisher publishes JSON transfer records to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   log.Logger
}

func NewAMQPPublisher(url, exchange string, logger log.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp: %w", err)
	}

	p := &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		logger:   logger.With("component", "events", "exchange", exchange),
	}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// openChannel must be called with mu held or before the publisher is shared.
func (p *AMQPPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.channel = ch
	return nil
}

func (p *AMQPPublisher) PublishTransfer(ctx context.Context, rec *types.TransferRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode transfer %s: %w", rec.ID, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s:%s", rec.ID, rec.Status),
		Timestamp:    time.Now(),
		Body:         body,
	}
	key := RoutingKey(rec)

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	if err == nil {
		return nil
	}

	// one retry on a fresh channel
	p.logger.Info("Publish failed, reopening channel", "routing_key", key, "err", err)
	if chErr := p.openChannel(); chErr != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
