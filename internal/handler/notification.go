package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sekolahkita/internal/auth"
	"sekolahkita/internal/model"
)

// legacySendNotification serves the original /api/send-notification contract.
func (h *Handler) legacySendNotification(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", "POST")
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": "Method not allowed"})
		return
	}
	var req struct {
		StudentID model.ID `json:"studentId"`
		Message   string   `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	n, err := h.notifications.Send(c.Request.Context(), auth.SessionFrom(c), req.StudentID, req.Message)
	if err != nil {
		h.fail(c, err, "legacy.notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": n.ID})
}
