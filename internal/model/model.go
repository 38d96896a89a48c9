package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Collection names in the remote store.
const (
	TableStudents      = "datasiswa"
	TablePresensi      = "presensi"
	TableAttendance    = "attendance"
	TableAlumni        = "alumni"
	TableAlbums        = "gallery_albums"
	TableLocations     = "school_locations"
	TableNotifications = "notifications"
	TableTeachers      = "dataguru"
	TableClasses       = "kelas"
	TableNews          = "news"
)

// Storage buckets.
const (
	BucketStudentPhotos = "student-photos"
	BucketGallery       = "gallery"
)

// ID is a row identifier. Deployments use either integer or uuid keys, so it
// decodes from both JSON numbers and strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Student is a row of datasiswa.
type Student struct {
	ID           ID      `json:"id"`
	NIS          string  `json:"nis"`
	NISN         string  `json:"nisn,omitempty"`
	Nama         string  `json:"nama"`
	TempatLahir  string  `json:"tempat_lahir,omitempty"`
	TanggalLahir *Date   `json:"tanggal_lahir,omitempty"`
	Kelas        string  `json:"kelas"`
	FotoPath     *string `json:"foto_path,omitempty"`
	OrangTua     string  `json:"orang_tua,omitempty"`
}

// HasPhoto reports whether the student references a stored photo.
func (s Student) HasPhoto() bool { return s.FotoPath != nil && *s.FotoPath != "" }

// AttendanceRecord is keyed by (student_id, date).
type AttendanceRecord struct {
	StudentID  ID     `json:"student_id"`
	Date       Date   `json:"date"`
	Status     Status `json:"status"`
	Kelas      string `json:"kelas,omitempty"`
	RecordedBy string `json:"recorded_by,omitempty"`
}

type Alumni struct {
	ID             ID     `json:"id"`
	Name           string `json:"name"`
	GraduationYear int    `json:"graduation_year"`
	University     string `json:"university,omitempty"`
	CurrentJob     string `json:"current_job,omitempty"`
	Achievements   string `json:"achievements,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

type Photo struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Caption string `json:"caption,omitempty"`
}

// Photos is the ordered photo list of an album. Direct Postgres reads hand
// jsonb back as an encoded string, which is accepted too.
type Photos []Photo

func (p *Photos) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		b = []byte(s)
	}
	var out []Photo
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*p = out
	return nil
}

type Album struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Photos      Photos     `json:"photos"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type Location struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Type        string  `json:"type"`
	PhotoURL    string  `json:"photo_url,omitempty"`
}

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

type Notification struct {
	ID        string             `json:"id"`
	StudentID ID                 `json:"student_id"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt *time.Time         `json:"created_at,omitempty"`
}

// Teacher is a row of dataguru.
type Teacher struct {
	ID    ID     `json:"id"`
	Nama  string `json:"nama,omitempty"`
	Email string `json:"email"`
}

// Class is a row of kelas.
type Class struct {
	ID        ID     `json:"id"`
	NamaKelas string `json:"nama_kelas"`
}

type News struct {
	ID        ID         `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
