package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shopmesh/marketplace/internal/model"
)

// Publisher sends domain events to RabbitMQ.  Each publish dials its own
// short-lived connection; confirmations are rare enough that connection
// pooling is not worth the bookkeeping.  Errors are logged and returned so
// callers can ignore failures without interrupting the main request flow.
type Publisher struct {
	url string
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// PublishOrderConfirmed emits an OrderConfirmedEvent for a completed order.
// Messages are marked persistent and the queue is declared durable so the
// event survives a broker restart.
func (p *Publisher) PublishOrderConfirmed(ctx context.Context, order *model.Order) error {
	ev := OrderConfirmedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalCents:  order.TotalCents,
		Items:       make([]OrderConfirmedItem, 0, len(order.Items)),
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, OrderConfirmedItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		})
	}
	return p.publish(ctx, OrderConfirmedQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish to %s failed: %v", queueName, err)
		return err
	}
	return nil
}
