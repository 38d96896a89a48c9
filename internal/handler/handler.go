// Package handler exposes the portal controllers over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sekolahkita/internal/alumni"
	"sekolahkita/internal/apperr"
	"sekolahkita/internal/attendance"
	"sekolahkita/internal/auth"
	"sekolahkita/internal/campusmap"
	"sekolahkita/internal/directory"
	"sekolahkita/internal/gallery"
	"sekolahkita/internal/news"
	"sekolahkita/internal/notification"
	"sekolahkita/internal/storage"
	"sekolahkita/internal/store"
)

const maxUpload = 10 << 20

// Deps are the backends and settings the handlers are built from.
type Deps struct {
	Store         store.Client
	Storage       storage.Storage
	Auth          auth.Provider
	Dispatcher    notification.Dispatcher
	JWTSecret     string
	JWTIssuer     string
	Location      *time.Location
	PublicBaseURL string
	MapCenter     campusmap.Center
	MapZoom       int
	Log           *logrus.Entry
}

type Handler struct {
	deps          Deps
	log           *logrus.Entry
	teachers      *auth.Teachers
	repo          *attendance.Repository
	attendance    *attendance.Service
	notifications *notification.Service
	directory     *directory.Service
	gallery       *gallery.Service
	alumni        *alumni.Service
	news          *news.Service
	campus        *campusmap.Service
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Dispatcher == nil {
		d.Dispatcher = notification.LogDispatcher{Log: d.Log.WithField("component", "notify")}
	}
	repo := attendance.NewRepository(d.Store)
	return &Handler{
		deps:          d,
		log:           d.Log,
		teachers:      auth.NewTeachers(d.Store),
		repo:          repo,
		attendance:    attendance.NewService(repo, d.Location),
		notifications: notification.NewService(d.Store, d.Dispatcher, d.Log.WithField("component", "notify")),
		directory:     directory.NewService(d.Store, d.Storage, d.PublicBaseURL, d.Log.WithField("component", "directory")),
		gallery:       gallery.NewService(d.Store, d.Storage, d.Log.WithField("component", "gallery")),
		alumni:        alumni.NewService(d.Store),
		news:          news.NewService(d.Store),
		campus:        campusmap.NewService(d.Store, d.MapCenter, d.MapZoom),
	}
}

// Register mounts every portal route on r.
func (h *Handler) Register(r gin.IRouter) {
	optional := auth.Optional(h.deps.JWTSecret, h.deps.JWTIssuer)
	required := auth.Authenticate(h.deps.JWTSecret, h.deps.JWTIssuer)
	teacher := auth.RequireTeacher(h.teachers, h.log)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.login)

	public := v1.Group("", optional)
	public.GET("/news", h.listNews)
	public.GET("/students", h.listStudents)
	public.GET("/students/:id", h.studentProfile)
	public.GET("/students/:id/qr", h.studentQR)
	public.GET("/alumni", h.listAlumni)
	public.GET("/gallery", h.listGallery)
	public.GET("/map", h.campusMap)

	signedIn := v1.Group("", required)
	signedIn.GET("/me", h.me)

	staff := v1.Group("", required, teacher)
	staff.POST("/students/:id/photo", h.uploadStudentPhoto)
	staff.POST("/gallery/:id/photos", h.addGalleryPhoto)
	staff.GET("/attendance/classes", h.attendanceClasses)
	staff.GET("/attendance/roster", h.attendanceRoster)
	staff.POST("/attendance/roster", h.submitRoster)

	legacy := r.Group("/api", optional)
	legacy.Any("/attendance", h.legacyAttendance)
	legacy.Any("/send-notification", h.legacySendNotification)
}

// statusOf maps an error kind onto an HTTP status.
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err with the request fields and writes the error body.
func (h *Handler) fail(c *gin.Context, err error, action string) {
	status := statusOf(err)
	entry := h.log.WithError(err).WithFields(logrus.Fields{
		"action": action,
		"path":   c.Request.URL.Path,
		"status": status,
	})
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		entry.Error("request failed")
		msg = "internal error"
	case http.StatusBadGateway:
		entry.Warn("request failed")
		msg = "upstream service unavailable"
	default:
		entry.Info("request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
