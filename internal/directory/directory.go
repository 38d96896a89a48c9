// Package directory serves the student directory: a searchable paged list,
// individual profiles, profile photos and profile QR codes.
package directory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/paging"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
	"sekolahkita/internal/storage"
	"sekolahkita/internal/store"
)

const (
	PageSize = 50
	QRSize   = 256
)

var listColumns = []string{"id", "nama", "nis", "kelas", "foto_path"}

// Entry is one row of the directory list.
type Entry struct {
	ID       model.ID `json:"id"`
	Nama     string   `json:"nama"`
	NIS      string   `json:"nis"`
	Kelas    string   `json:"kelas"`
	PhotoURL string   `json:"photo_url,omitempty"`
}

type Page struct {
	Students []Entry `json:"students"`
	Page     int     `json:"page"`
	HasMore  bool    `json:"has_more"`
}

// Profile is a full student row with its resolved photo.
type Profile struct {
	model.Student
	PhotoURL   string `json:"photo_url,omitempty"`
	ProfileURL string `json:"profile_url"`
}

type Service struct {
	store         store.Client
	storage       storage.Storage
	publicBaseURL string
	log           *logrus.Entry
	now           func() time.Time
}

func NewService(c store.Client, s storage.Storage, publicBaseURL string, log *logrus.Entry) *Service {
	return &Service{
		store:         c,
		storage:       s,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
		now:           time.Now,
	}
}

// List returns one page of the directory. Photos that cannot be resolved are
// left blank.
func (s *Service) List(ctx context.Context, sess session.Session, term string, page int) (Page, error) {
	if page < 0 {
		page = 0
	}
	entries, err := s.fetch(ctx, sess, term, page, PageSize)
	if err != nil {
		return Page{}, err
	}
	return Page{Students: entries, Page: page, HasMore: len(entries) == PageSize}, nil
}

// Fetcher adapts the directory to an infinite-scroll controller.
func (s *Service) Fetcher(sess session.Session) paging.Fetcher[Entry, string] {
	return func(ctx context.Context, term string, index, size int) ([]Entry, error) {
		return s.fetch(ctx, sess, term, index, size)
	}
}

func (s *Service) fetch(ctx context.Context, sess session.Session, term string, index, size int) ([]Entry, error) {
	q, err := query.From(model.TableStudents).
		Select(listColumns...).
		Search(term, "nama", "nis", "kelas").
		OrderBy("nama", query.Asc).
		Page(index, size).
		Build()
	if err != nil {
		return nil, err
	}
	var rows []model.Student
	if err := store.Scoped(s.store, sess).Query(ctx, q, &rows); err != nil {
		return nil, err
	}

	var paths []string
	for _, st := range rows {
		if st.HasPhoto() {
			paths = append(paths, *st.FotoPath)
		}
	}
	urls := map[string]string{}
	if len(paths) > 0 {
		if urls, err = s.storage.ResolveMany(ctx, model.BucketStudentPhotos, paths); err != nil {
			s.log.WithError(err).Warn("resolving student photos failed")
			urls = map[string]string{}
		}
	}

	out := make([]Entry, 0, len(rows))
	for _, st := range rows {
		e := Entry{ID: st.ID, Nama: st.Nama, NIS: st.NIS, Kelas: st.Kelas}
		if st.HasPhoto() {
			e.PhotoURL = urls[*st.FotoPath]
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Service) student(ctx context.Context, c store.Client, id model.ID, cols ...string) (model.Student, error) {
	if strings.TrimSpace(string(id)) == "" {
		return model.Student{}, apperr.Validation("student id is required")
	}
	b := query.From(model.TableStudents).Eq("id", id)
	if len(cols) > 0 {
		b = b.Select(cols...)
	}
	q, err := b.Build()
	if err != nil {
		return model.Student{}, err
	}
	var st model.Student
	if err := store.One(ctx, c, q, &st); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return model.Student{}, apperr.NotFound("student %s not found", id)
		}
		return model.Student{}, err
	}
	return st, nil
}

// Profile returns the full student row. A photo that cannot be resolved is
// logged and left blank.
func (s *Service) Profile(ctx context.Context, sess session.Session, id model.ID) (Profile, error) {
	st, err := s.student(ctx, store.Scoped(s.store, sess), id)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{Student: st, ProfileURL: s.ProfileURL(st.ID)}
	if st.HasPhoto() {
		u, err := s.storage.Resolve(ctx, model.BucketStudentPhotos, *st.FotoPath)
		if err != nil {
			s.log.WithError(err).WithField("student_id", string(id)).Warn("resolving profile photo failed")
		}
		p.PhotoURL = u
	}
	return p, nil
}

// UploadPhoto stores a new profile photo, points the student at it and
// returns its URL.
func (s *Service) UploadPhoto(ctx context.Context, sess session.Session, id model.ID, filename string, body io.Reader) (string, error) {
	ext, contentType, err := storage.ImageExt(filename)
	if err != nil {
		return "", err
	}
	c := store.Scoped(s.store, sess)
	if _, err := s.student(ctx, c, id, "id"); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%d.%s", id, s.now().UnixMilli(), ext)
	stored, err := s.storage.Upload(ctx, model.BucketStudentPhotos, name, body, contentType)
	if err != nil {
		return "", err
	}
	q, err := query.From(model.TableStudents).Eq("id", id).Build()
	if err != nil {
		s.discard(ctx, stored)
		return "", err
	}
	n, err := c.Update(ctx, q, map[string]any{"foto_path": stored})
	if err != nil {
		s.discard(ctx, stored)
		return "", err
	}
	if n == 0 {
		s.discard(ctx, stored)
		return "", apperr.NotFound("student %s not found", id)
	}
	s.log.WithFields(logrus.Fields{"student_id": string(id), "path": stored}).Info("profile photo updated")
	return s.storage.Resolve(ctx, model.BucketStudentPhotos, stored)
}

// discard removes an uploaded photo that no student row points at.
func (s *Service) discard(ctx context.Context, path string) {
	if err := s.storage.Remove(context.WithoutCancel(ctx), model.BucketStudentPhotos, path); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("removing orphaned photo failed")
	}
}

// ProfileURL is the public link encoded in a student's QR code.
func (s *Service) ProfileURL(id model.ID) string {
	return s.publicBaseURL + "/students/" + string(id)
}

// QRCode renders a PNG linking to the student's profile.
func (s *Service) QRCode(ctx context.Context, sess session.Session, id model.ID) ([]byte, error) {
	if _, err := s.student(ctx, store.Scoped(s.store, sess), id, "id"); err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.ProfileURL(id), qrcode.High, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
