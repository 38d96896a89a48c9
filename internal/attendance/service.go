package attendance

import (
	"context"
	"strings"
	"time"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/session"
)

// RecordInput is a single attendance mark from the legacy endpoint.
type RecordInput struct {
	Date       string `json:"date"`
	StudentID  string `json:"studentId"`
	Status     string `json:"status"`
	RecordedBy string `json:"teacherId"`
}

// StudentRef is the student part of a ClassRecord.
type StudentRef struct {
	Name  string `json:"name"`
	NIS   string `json:"nis"`
	Class string `json:"class"`
}

// ClassRecord is an attendance row joined with its student.
type ClassRecord struct {
	model.AttendanceRecord
	Student StudentRef `json:"students"`
}

// Service serves single-record marking and per-class day reports.
type Service struct {
	repo *Repository
	now  func() time.Time
	loc  *time.Location
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, now: time.Now, loc: loc}
}

// Record validates and upserts one (student, date) record.
func (s *Service) Record(ctx context.Context, sess session.Session, in RecordInput) (model.AttendanceRecord, error) {
	if strings.TrimSpace(in.StudentID) == "" {
		return model.AttendanceRecord{}, apperr.Validation("studentId is required")
	}
	status, err := model.ParseStatus(in.Status)
	if err != nil {
		return model.AttendanceRecord{}, apperr.Wrap(apperr.KindValidation, err, "invalid status")
	}
	date := model.Today(s.now(), s.loc)
	if strings.TrimSpace(in.Date) != "" {
		if date, err = model.ParseDate(in.Date); err != nil {
			return model.AttendanceRecord{}, apperr.Wrap(apperr.KindValidation, err, "invalid date")
		}
	}
	recordedBy := in.RecordedBy
	if recordedBy == "" {
		recordedBy = sess.UserID
	}
	rec := model.AttendanceRecord{
		StudentID:  model.ID(strings.TrimSpace(in.StudentID)),
		Date:       date,
		Status:     status,
		RecordedBy: recordedBy,
	}
	if err := s.repo.As(sess).SaveRecord(ctx, rec); err != nil {
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

// ByClass returns the records of date for students of classID. Students
// without a record that day are left out.
func (s *Service) ByClass(ctx context.Context, sess session.Session, date, classID string) ([]ClassRecord, error) {
	if strings.TrimSpace(date) == "" || strings.TrimSpace(classID) == "" {
		return nil, apperr.Validation("date and classId are required")
	}
	day, err := model.ParseDate(date)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid date")
	}
	repo := s.repo.As(sess)
	students, err := repo.StudentsInClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	out := []ClassRecord{}
	if len(students) == 0 {
		return out, nil
	}
	byID := make(map[model.ID]model.Student, len(students))
	ids := make([]model.ID, len(students))
	for i, st := range students {
		byID[st.ID] = st
		ids[i] = st.ID
	}
	records, err := repo.RecordsOn(ctx, day, ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		st, ok := byID[rec.StudentID]
		if !ok {
			continue
		}
		out = append(out, ClassRecord{
			AttendanceRecord: rec,
			Student:          StudentRef{Name: st.Nama, NIS: st.NIS, Class: st.Kelas},
		})
	}
	return out, nil
}
