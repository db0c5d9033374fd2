package rabbit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	paymentApprovedKey = "payment.approved"
	consumerPrefetch   = 20
	handleTimeout      = 15 * time.Second
)

type ConsumerConfig struct {
	Exchange string
	Queue    string
}

// DeadLetterExchange y DeadLetterQueue reciben los mensajes que agotaron su
// reintento; quedan ahí para conciliación manual.
func (c ConsumerConfig) DeadLetterExchange() string { return c.Queue + ".dlx" }
func (c ConsumerConfig) DeadLetterQueue() string { return c.Queue + ".dead" }

// SetupConsumers declara el exchange de pagos, nuestra cola y su dead-letter,
// y consume payment.approved con ack manual hasta que el canal se cierre.
func SetupConsumers(ch *amqp091.Channel, cfg ConsumerConfig, consumer *PaymentApprovedConsumer, log *slog.Logger) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := declareDeadLetter(ch, cfg); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp091.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange()},
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(q.Name, paymentApprovedKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	go func() {
		for d := range msgs {
			deliver(d, consumer, log)
		}
		log.Warn("payment consumer stopped", "queue", q.Name)
	}()

	log.Info("subscribed to payment approvals", "exchange", cfg.Exchange, "queue", q.Name)
	return nil
}

func declareDeadLetter(ch *amqp091.Channel, cfg ConsumerConfig) error {
	dlx := cfg.DeadLetterExchange()
	if err := ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dlx, err)
	}
	dq, err := ch.QueueDeclare(cfg.DeadLetterQueue(), true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.DeadLetterQueue(), err)
	}
	if err := ch.QueueBind(dq.Name, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", dq.Name, err)
	}
	return nil
}

// Acknowledger es la parte de amqp091.Delivery que necesita dispatch.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func deliver(d amqp091.Delivery, consumer *PaymentApprovedConsumer, log *slog.Logger) {
	dispatch(d.Body, d.Redelivered, &d, consumer, log)
}

func dispatch(body []byte, redelivered bool, ack Acknowledger, consumer *PaymentApprovedConsumer, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	err := consumer.Handle(ctx, body)
	if err == nil {
		_ = ack.Ack(false)
		return
	}

	// un solo reintento: si la entrega ya vino reencolada, va al dead-letter
	requeue := Requeue(err) && !redelivered
	if requeue {
		log.Warn("payment.approved no procesado, se reencola", "error", err)
	} else {
		log.Error("payment.approved descartado al dead-letter", "error", err, "redelivered", redelivered)
	}
	_ = ack.Nack(false, requeue)
}
