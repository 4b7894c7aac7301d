package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OutcomeHandler resumes a checkout once the payment provider has decided.
// Satisfied by checkout.Saga.
type OutcomeHandler interface {
	HandlePaymentOutcome(ctx context.Context, orderID uint64, success bool) error
}

// StartPaymentOutcomeConsumer connects to RabbitMQ, declares the durable
// payment.outcomes queue, and feeds each delivery to the handler.  It runs a
// reconnect loop with exponential backoff and returns only when ctx is
// cancelled.  A delivery whose handler fails is requeued once via the
// redelivery flag; a second failure dead-ends it so a poison message cannot
// wedge the queue.
func StartPaymentOutcomeConsumer(ctx context.Context, url string, handler OutcomeHandler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("payment-consumer: dial failed: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeOutcomes(ctx, conn, handler); err != nil {
			_ = conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("payment-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeOutcomes(ctx context.Context, conn *amqp.Connection, handler OutcomeHandler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("payment-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(PaymentOutcomeQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(PaymentOutcomeQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleOutcome(ctx, d.Body, handler); err != nil {
				log.Printf("payment-consumer: handle message failed: %v", err)
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleOutcome(ctx context.Context, body []byte, handler OutcomeHandler) error {
	var ev PaymentOutcomeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.OrderID == 0 {
		return fmt.Errorf("outcome without order id (txn %s)", ev.TransactionRef)
	}
	log.Printf("payment-consumer: outcome for order %d: success=%t txn=%s", ev.OrderID, ev.Success, ev.TransactionRef)
	return handler.HandlePaymentOutcome(ctx, ev.OrderID, ev.Success)
}
