package attendance

import (
	"context"

	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
	"sekolahkita/internal/store"
)

// presensi and the legacy attendance table are both keyed per student per day.
var conflictKey = []string{"student_id", "date"}

// Repository reads rosters and persists attendance through the record store.
type Repository struct {
	store store.Client
}

// NewRepository creates a repo.
func NewRepository(c store.Client) *Repository {
	return &Repository{store: c}
}

// As returns a repository acting on behalf of sess.
func (r *Repository) As(sess session.Session) *Repository {
	return &Repository{store: store.Scoped(r.store, sess)}
}

// Classes lists every class by name.
func (r *Repository) Classes(ctx context.Context) ([]model.Class, error) {
	q := query.From(model.TableClasses).OrderBy("nama_kelas", query.Asc).MustBuild()
	var out []model.Class
	if err := r.store.Query(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StudentsInClass lists the students of kelas by name.
func (r *Repository) StudentsInClass(ctx context.Context, kelas string) ([]model.Student, error) {
	q, err := query.From(model.TableStudents).
		Select("id", "nama", "nis", "kelas").
		Eq("kelas", kelas).
		OrderBy("nama", query.Asc).
		Build()
	if err != nil {
		return nil, err
	}
	var out []model.Student
	if err := r.store.Query(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SavePresensi upserts a batch of roster records in one request.
func (r *Repository) SavePresensi(ctx context.Context, records []model.AttendanceRecord) error {
	return r.store.Write(ctx, model.TablePresensi, records, conflictKey...)
}

// SaveRecord upserts a single record into the attendance table.
func (r *Repository) SaveRecord(ctx context.Context, rec model.AttendanceRecord) error {
	return r.store.Write(ctx, model.TableAttendance, rec, conflictKey...)
}

// RecordsOn returns the attendance rows of date for the given students.
func (r *Repository) RecordsOn(ctx context.Context, date model.Date, studentIDs []model.ID) ([]model.AttendanceRecord, error) {
	ids := make([]any, len(studentIDs))
	for i, id := range studentIDs {
		ids[i] = id
	}
	q, err := query.From(model.TableAttendance).
		Eq("date", date.String()).
		In("student_id", ids...).
		OrderBy("student_id", query.Asc).
		Build()
	if err != nil {
		return nil, err
	}
	var out []model.AttendanceRecord
	if err := r.store.Query(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
