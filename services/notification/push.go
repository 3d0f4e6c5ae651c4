package notification

import (
	"context"
	"fmt"

	"moveflow/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// MessageSender is the part of *messaging.Client used for pushes.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier sends FCM pushes to the per-booking topic that the customer
// and crew apps subscribe to.
type PushNotifier struct {
	client MessageSender
	logger *zap.Logger
}

func NewPushNotifier(client MessageSender, logger *zap.Logger) *PushNotifier {
	return &PushNotifier{client: client, logger: logger}
}

func BookingTopic(bookingID string) string {
	return "booking_" + bookingID
}

func (p *PushNotifier) Notify(ctx context.Context, kind models.EventKind, b models.BookingSnapshot) error {
	msg := Render(kind, b)
	message := &messaging.Message{
		Topic: BookingTopic(b.ID),
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: map[string]string{
			"type":       string(kind),
			"booking_id": b.ID,
			"status":     string(b.Status),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "bookings",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	id, err := p.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}
	p.logger.Debug("Push sent", zap.String("message_id", id), zap.String("topic", message.Topic))
	return nil
}
