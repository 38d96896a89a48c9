package notification

import (
	"context"

	"github.com/sirupsen/logrus"

	"sekolahkita/internal/queue"
)

// MessageType tags queued notification intents.
const MessageType = "notification.deliver"

// Dispatcher hands an intent to whatever delivers it.
type Dispatcher interface {
	Dispatch(ctx context.Context, in Intent) error
}

// LogDispatcher only logs the intended delivery.
type LogDispatcher struct {
	Log *logrus.Entry
}

func (d LogDispatcher) Dispatch(ctx context.Context, in Intent) error {
	d.Log.WithFields(logrus.Fields{
		"notification_id": in.NotificationID,
		"student_id":      string(in.StudentID),
		"recipient":       in.Recipient,
	}).Info("would deliver notification: " + in.Message)
	return nil
}

// QueueDispatcher publishes intents for the worker.
type QueueDispatcher struct {
	Queue queue.Queue
}

func (d QueueDispatcher) Dispatch(ctx context.Context, in Intent) error {
	msg, err := queue.NewMessage(MessageType, in)
	if err != nil {
		return err
	}
	return d.Queue.Publish(ctx, msg)
}
