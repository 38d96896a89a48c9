package notification

import (
	"context"

	"github.com/sirupsen/logrus"

	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/queue"
	"sekolahkita/internal/store"
)

// Sender performs the actual delivery of an intent.
type Sender interface {
	Deliver(ctx context.Context, in Intent) error
}

// LogSender stands in for a real channel (SMS, WhatsApp, email).
type LogSender struct {
	Log *logrus.Entry
}

func (s LogSender) Deliver(ctx context.Context, in Intent) error {
	s.Log.WithFields(logrus.Fields{
		"notification_id": in.NotificationID,
		"recipient":       in.Recipient,
		"student":         in.StudentName,
	}).Info("notification delivered: " + in.Message)
	return nil
}

// Worker consumes queued intents, delivers them and records the outcome.
type Worker struct {
	queue  queue.Queue
	sender Sender
	store  store.Client
	log    *logrus.Entry
}

func NewWorker(q queue.Queue, s Sender, c store.Client, log *logrus.Entry) *Worker {
	return &Worker{queue: q, sender: s, store: c, log: log}
}

// Run processes messages until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Info("worker started, waiting for messages")
	for msg := range messages {
		w.Handle(ctx, msg)
	}
	w.log.Info("worker stopped")
	return nil
}

// Handle delivers one message and updates its notification row.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) {
	if msg.Type != MessageType {
		return
	}
	var in Intent
	if err := msg.Decode(&in); err != nil {
		w.log.WithError(err).Warn("dropping malformed intent")
		return
	}
	log := w.log.WithField("notification_id", in.NotificationID)

	status := model.NotificationSent
	if err := w.sender.Deliver(ctx, in); err != nil {
		log.WithError(err).Error("delivery failed")
		status = model.NotificationFailed
	}

	q, err := query.From(model.TableNotifications).Eq("id", in.NotificationID).Build()
	if err != nil {
		log.WithError(err).Error("bad notification id")
		return
	}
	n, err := w.store.Update(ctx, q, map[string]any{"status": status})
	if err != nil {
		log.WithError(err).Error("update notification status failed")
		return
	}
	if n == 0 {
		log.Warn("notification row missing")
		return
	}
	log.WithField("status", string(status)).Info("notification processed")
}
