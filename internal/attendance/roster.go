package attendance

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/session"
)

// Entry is one student on the roster with the status to be submitted.
type Entry struct {
	Student model.Student `json:"student"`
	Status  model.Status  `json:"status"`
}

// Absence is a student that was not marked present.
type Absence struct {
	StudentID model.ID     `json:"student_id"`
	Nama      string       `json:"nama"`
	Status    model.Status `json:"status"`
}

// Result describes a submitted roster.
type Result struct {
	Kelas  string     `json:"kelas"`
	Date   model.Date `json:"date"`
	Saved  int        `json:"saved"`
	Absent []Absence  `json:"absent"`
}

// AbsenceNotifier receives the absence list after a successful submit.
type AbsenceNotifier interface {
	NotifyAbsences(ctx context.Context, sess session.Session, kelas string, date model.Date, absent []Absence) error
}

type Option func(*Roster)

// WithClock sets the clock and timezone that decide "today".
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(r *Roster) {
		r.now = now
		r.loc = loc
	}
}

func WithNotifier(n AbsenceNotifier) Option {
	return func(r *Roster) { r.notifier = n }
}

func WithLogger(log *logrus.Entry) Option {
	return func(r *Roster) { r.log = log }
}

// Roster is the attendance marking controller of one teacher session: pick a
// class, adjust statuses, submit once.
type Roster struct {
	repo     *Repository
	sess     session.Session
	now      func() time.Time
	loc      *time.Location
	notifier AbsenceNotifier
	log      *logrus.Entry

	classes []model.Class
	kelas   string
	entries []Entry
	index   map[model.ID]int
}

func NewRoster(repo *Repository, sess session.Session, opts ...Option) *Roster {
	r := &Roster{
		repo: repo.As(sess),
		sess: sess,
		now:  time.Now,
		loc:  time.UTC,
		log:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadClasses fetches the class list shown in the class picker.
func (r *Roster) LoadClasses(ctx context.Context) ([]model.Class, error) {
	classes, err := r.repo.Classes(ctx)
	if err != nil {
		r.log.WithError(err).Error("load classes failed")
		return nil, err
	}
	r.classes = classes
	return classes, nil
}

// SelectClass loads the students of kelas with every status set to present.
func (r *Roster) SelectClass(ctx context.Context, kelas string) ([]Entry, error) {
	if kelas == "" {
		return nil, apperr.Validation("select a class")
	}
	students, err := r.repo.StudentsInClass(ctx, kelas)
	if err != nil {
		r.log.WithError(err).WithField("kelas", kelas).Error("load students failed")
		return nil, err
	}
	r.kelas = kelas
	r.entries = make([]Entry, len(students))
	r.index = make(map[model.ID]int, len(students))
	for i, s := range students {
		r.entries[i] = Entry{Student: s, Status: model.StatusPresent}
		r.index[s.ID] = i
	}
	return r.Entries(), nil
}

// Entries returns a copy of the current roster.
func (r *Roster) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Roster) Kelas() string { return r.kelas }

// SetStatus changes the status of one student on the roster.
func (r *Roster) SetStatus(id model.ID, status model.Status) error {
	if !status.Valid() {
		return apperr.Validation("unknown attendance status %q", status)
	}
	i, ok := r.index[id]
	if !ok {
		return apperr.Validation("student %s is not in class %q", id, r.kelas)
	}
	r.entries[i].Status = status
	return nil
}

// Submit upserts one record per student for today and returns the students
// not marked present. Notifier failures are logged, not returned.
func (r *Roster) Submit(ctx context.Context) (Result, error) {
	if r.kelas == "" {
		return Result{}, apperr.Validation("select a class before submitting")
	}
	today := model.Today(r.now(), r.loc)
	records := make([]model.AttendanceRecord, len(r.entries))
	absent := []Absence{}
	for i, e := range r.entries {
		records[i] = model.AttendanceRecord{
			StudentID: e.Student.ID,
			Date:      today,
			Status:    e.Status,
			Kelas:     r.kelas,
		}
		if e.Status != model.StatusPresent {
			absent = append(absent, Absence{StudentID: e.Student.ID, Nama: e.Student.Nama, Status: e.Status})
		}
	}

	log := r.log.WithFields(logrus.Fields{"kelas": r.kelas, "date": today.String(), "students": len(records)})
	if err := r.repo.SavePresensi(ctx, records); err != nil {
		log.WithError(err).Error("submit attendance failed")
		return Result{}, err
	}
	log.WithField("absent", len(absent)).Info("attendance submitted")

	if r.notifier != nil && len(absent) > 0 {
		if err := r.notifier.NotifyAbsences(ctx, r.sess, r.kelas, today, absent); err != nil {
			log.WithError(err).Warn("absence notification failed")
		}
	}
	return Result{Kelas: r.kelas, Date: today, Saved: len(records), Absent: absent}, nil
}
