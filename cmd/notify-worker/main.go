package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitlife/checkout-and-bookings/internal/adapters/rabbit"
	"github.com/fitlife/checkout-and-bookings/internal/config"
	"github.com/fitlife/checkout-and-bookings/internal/notify"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifications.q", "order.confirmed", "order.created")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	worker := NewNotifyWorker(consumer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notify worker")
}

// NotifyWorker consumes confirmation events and delivers the buyer email.
// A failed send is retried with backoff and finally logged; it never
// propagates back into the order or booking ledgers.
type NotifyWorker struct {
	consumer *rabbit.Consumer
	logger   observability.Logger
}

func NewNotifyWorker(consumer *rabbit.Consumer, logger observability.Logger) *NotifyWorker {
	return &NotifyWorker{consumer: consumer, logger: logger}
}

func (w *NotifyWorker) Run(ctx context.Context) {
	deliveries, err := w.consumer.Consume(ctx)
	if err != nil {
		w.logger.Error("failed to start consuming", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := w.processWithRetry(ctx, d); err != nil {
				w.logger.Error("failed to send confirmation after retries", err)
				observability.NotifySendFailures.Inc()
			}
			d.Ack(false)
		}
	}
}

func (w *NotifyWorker) processWithRetry(ctx context.Context, d amqp.Delivery) error {
	var msg notify.ConfirmationMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return err
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		if err := w.send(msg); err != nil {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}

func (w *NotifyWorker) send(msg notify.ConfirmationMessage) error {
	// SMTP delivery is stood in for by a log line; swapping in a real
	// sender only changes this method.
	w.logger.WithField("order_number", msg.OrderNumber).
		WithField("email", msg.Email).
		Info(fmt.Sprintf("confirmation sent: order %s, total %s", msg.OrderNumber, msg.GrandTotal))
	return nil
}
