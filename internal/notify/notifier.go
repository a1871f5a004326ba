package notify

import (
	"context"
	"encoding/json"

	"github.com/fitlife/checkout-and-bookings/internal/adapters/rabbit"
	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Notifier delivers the buyer confirmation message for a completed order.
// The core only consumes success or failure for logging; a send failure
// never blocks or reverses a committed order.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order domain.Order) error
}

// RabbitNotifier hands the confirmation to the events exchange; the notify
// worker picks it up and performs the actual send.
type RabbitNotifier struct {
	pub *rabbit.Publisher
}

func NewRabbitNotifier(pub *rabbit.Publisher) *RabbitNotifier {
	return &RabbitNotifier{pub: pub}
}

type ConfirmationMessage struct {
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	GrandTotal  string `json:"grand_total"`
}

func (n *RabbitNotifier) SendOrderConfirmation(ctx context.Context, order domain.Order) error {
	payload, err := json.Marshal(ConfirmationMessage{
		OrderNumber: order.OrderNumber,
		Email:       order.Email,
		FullName:    order.FullName,
		GrandTotal:  order.GrandTotal.String(),
	})
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}
	return n.pub.Publish(ctx, "order.confirmed", msg)
}
