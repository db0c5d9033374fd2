package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"storefront-checkout-service/internal/service"
)

// Publisher manda eventos de órdenes a un exchange topic, ruteados por tipo.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp091.Channel
	exchange string
}

// NewPublisher declara el exchange una vez al arrancar.
func NewPublisher(ch *amqp091.Channel, exchange string) (*Publisher, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev service.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    ev.OrderID + ":" + ev.Type + ":" + string(ev.OrderStatus),
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	}

	// un canal no soporta publishes concurrentes
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
