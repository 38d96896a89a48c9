package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sekolahkita/internal/auth"
)

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	sess, expires, err := h.deps.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": sess.AccessToken,
		"expires_at":   expires.Unix(),
		"user":         gin.H{"id": sess.UserID, "email": sess.Email},
	})
}

func (h *Handler) me(c *gin.Context) {
	sess := auth.SessionFrom(c)
	teacher, err := h.teachers.IsTeacher(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, err, "me")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sess.UserID, "email": sess.Email, "teacher": teacher})
}
