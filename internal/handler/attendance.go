package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sekolahkita/internal/attendance"
	"sekolahkita/internal/auth"
	"sekolahkita/internal/model"
	"sekolahkita/internal/session"
)

func (h *Handler) roster(sess session.Session) *attendance.Roster {
	return attendance.NewRoster(h.repo, sess,
		attendance.WithClock(time.Now, h.deps.Location),
		attendance.WithNotifier(h.notifications),
		attendance.WithLogger(h.log.WithField("component", "roster")),
	)
}

func (h *Handler) attendanceClasses(c *gin.Context) {
	classes, err := h.roster(auth.SessionFrom(c)).LoadClasses(c.Request.Context())
	if err != nil {
		h.fail(c, err, "attendance.classes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) attendanceRoster(c *gin.Context) {
	kelas := strings.TrimSpace(c.Query("kelas"))
	entries, err := h.roster(auth.SessionFrom(c)).SelectClass(c.Request.Context(), kelas)
	if err != nil {
		h.fail(c, err, "attendance.roster")
		return
	}
	c.JSON(http.StatusOK, gin.H{"kelas": kelas, "entries": entries, "statuses": model.Statuses()})
}

type rosterSubmission struct {
	Kelas   string `json:"kelas"`
	Entries []struct {
		StudentID model.ID `json:"student_id"`
		Status    string   `json:"status"`
	} `json:"entries"`
}

// submitRoster marks every student of the class present, applies the
// submitted statuses and saves the day in one write.
func (h *Handler) submitRoster(c *gin.Context) {
	var req rosterSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid roster body")
		return
	}
	ctx := c.Request.Context()
	r := h.roster(auth.SessionFrom(c))
	if _, err := r.SelectClass(ctx, strings.TrimSpace(req.Kelas)); err != nil {
		h.fail(c, err, "attendance.submit")
		return
	}
	for _, e := range req.Entries {
		status, err := model.ParseStatus(e.Status)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := r.SetStatus(e.StudentID, status); err != nil {
			h.fail(c, err, "attendance.submit")
			return
		}
	}
	res, err := r.Submit(ctx)
	if err != nil {
		h.fail(c, err, "attendance.submit")
		return
	}
	c.JSON(http.StatusOK, res)
}

// legacyAttendance serves the original /api/attendance contract.
func (h *Handler) legacyAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	sess := auth.SessionFrom(c)
	switch c.Request.Method {
	case http.MethodPost:
		var in attendance.RecordInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
		rec, err := h.attendance.Record(ctx, sess, in)
		if err != nil {
			h.fail(c, err, "legacy.attendance.record")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": []model.AttendanceRecord{rec}})
	case http.MethodGet:
		rows, err := h.attendance.ByClass(ctx, sess, c.Query("date"), c.Query("classId"))
		if err != nil {
			h.fail(c, err, "legacy.attendance.list")
			return
		}
		c.JSON(http.StatusOK, rows)
	default:
		c.Header("Allow", "GET, POST")
		c.String(http.StatusMethodNotAllowed, fmt.Sprintf("Method %s Not Allowed", c.Request.Method))
	}
}
