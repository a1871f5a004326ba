package mongo

import (
	"context"
	"time"

	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    uuid.UUID `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogOrder(ctx context.Context, action string, order domain.Order) error {
	var userID uuid.UUID
	if order.UserID != nil {
		userID = *order.UserID
	}
	data := map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"grand_total":  order.GrandTotal.String(),
		"items":        len(order.Items),
	}
	return a.LogEvent(ctx, action, userID, data)
}

func (a *AuditLogger) LogBooking(ctx context.Context, action string, booking domain.Booking) error {
	data := map[string]interface{}{
		"booking_id":  booking.ID,
		"schedule_id": booking.ScheduleID,
		"status":      booking.Status,
	}
	return a.LogEvent(ctx, action, booking.UserID, data)
}
