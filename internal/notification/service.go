// Package notification records parent notifications and hands them to a
// pluggable delivery mechanism.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/attendance"
	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
	"sekolahkita/internal/store"
)

// Intent is a notification ready for delivery.
type Intent struct {
	NotificationID string   `json:"notification_id"`
	StudentID      model.ID `json:"student_id"`
	StudentName    string   `json:"student_name"`
	Recipient      string   `json:"recipient"`
	Message        string   `json:"message"`
}

// Service creates pending notifications.
type Service struct {
	store      store.Client
	dispatcher Dispatcher
	log        *logrus.Entry
	newID      func() string
}

func NewService(c store.Client, d Dispatcher, log *logrus.Entry) *Service {
	return &Service{store: c, dispatcher: d, log: log, newID: uuid.NewString}
}

// Send looks up the student, stores a pending notification and dispatches it.
// The row is kept pending even when dispatch fails.
func (s *Service) Send(ctx context.Context, sess session.Session, studentID model.ID, message string) (model.Notification, error) {
	message = strings.TrimSpace(message)
	if studentID == "" || message == "" {
		return model.Notification{}, apperr.Validation("studentId and message are required")
	}
	c := store.Scoped(s.store, sess)

	q, err := query.From(model.TableStudents).Select("id", "nama", "orang_tua").Eq("id", studentID).Build()
	if err != nil {
		return model.Notification{}, err
	}
	var student model.Student
	if err := store.One(ctx, c, q, &student); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return model.Notification{}, apperr.NotFound("student %s not found", studentID)
		}
		return model.Notification{}, err
	}

	n := model.Notification{
		ID:        s.newID(),
		StudentID: studentID,
		Message:   message,
		Status:    model.NotificationPending,
	}
	if err := c.Write(ctx, model.TableNotifications, n); err != nil {
		return model.Notification{}, err
	}

	intent := Intent{
		NotificationID: n.ID,
		StudentID:      studentID,
		StudentName:    student.Nama,
		Recipient:      student.OrangTua,
		Message:        message,
	}
	log := s.log.WithFields(logrus.Fields{"notification_id": n.ID, "student_id": string(studentID)})
	if err := s.dispatcher.Dispatch(ctx, intent); err != nil {
		log.WithError(err).Warn("dispatch failed, notification left pending")
		return n, nil
	}
	log.Debug("notification dispatched")
	return n, nil
}

// NotifyAbsences sends one notification per absent student.
func (s *Service) NotifyAbsences(ctx context.Context, sess session.Session, kelas string, date model.Date, absent []attendance.Absence) error {
	var failed int
	var lastErr error
	for _, a := range absent {
		msg := fmt.Sprintf("Ananda %s (kelas %s) tercatat %s pada %s.", a.Nama, kelas, a.Status.Label(), date.String())
		if _, err := s.Send(ctx, sess, a.StudentID, msg); err != nil {
			failed++
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%d of %d absence notifications failed: %w", failed, len(absent), lastErr)
	}
	return nil
}

var _ attendance.AbsenceNotifier = (*Service)(nil)
