package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sekolahkita/internal/alumni"
	"sekolahkita/internal/auth"
	"sekolahkita/internal/gallery"
	"sekolahkita/internal/model"
)

func (h *Handler) listNews(c *gin.Context) {
	items, err := h.news.Latest(c.Request.Context(), auth.SessionFrom(c))
	if err != nil {
		h.fail(c, err, "news")
		return
	}
	c.JSON(http.StatusOK, gin.H{"news": items})
}

func (h *Handler) listStudents(c *gin.Context) {
	page := 0
	if v := c.Query("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			badRequest(c, "page must be a non-negative integer")
			return
		}
		page = parsed
	}
	res, err := h.directory.List(c.Request.Context(), auth.SessionFrom(c), c.Query("q"), page)
	if err != nil {
		h.fail(c, err, "students.list")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) studentProfile(c *gin.Context) {
	p, err := h.directory.Profile(c.Request.Context(), auth.SessionFrom(c), model.ID(c.Param("id")))
	if err != nil {
		h.fail(c, err, "students.profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) studentQR(c *gin.Context) {
	png, err := h.directory.QRCode(c.Request.Context(), auth.SessionFrom(c), model.ID(c.Param("id")))
	if err != nil {
		h.fail(c, err, "students.qr")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) uploadStudentPhoto(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file field required")
		return
	}
	defer file.Close()
	if header.Size > maxUpload {
		badRequest(c, "file too large")
		return
	}
	url, err := h.directory.UploadPhoto(c.Request.Context(), auth.SessionFrom(c), model.ID(c.Param("id")), header.Filename, file)
	if err != nil {
		h.fail(c, err, "students.photo")
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo_url": url})
}

func (h *Handler) listAlumni(c *gin.Context) {
	f := alumni.Filter{Term: c.Query("q")}
	if v := strings.TrimSpace(c.Query("year")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year <= 0 {
			badRequest(c, "year must be a positive integer")
			return
		}
		f.Year = year
	}
	res, err := h.alumni.List(c.Request.Context(), auth.SessionFrom(c), f)
	if err != nil {
		h.fail(c, err, "alumni")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listGallery(c *gin.Context) {
	albums, err := h.gallery.Albums(c.Request.Context(), auth.SessionFrom(c))
	if err != nil {
		h.fail(c, err, "gallery")
		return
	}
	nav := gallery.NewNavigator(albums)
	if v := c.Query("album"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "album must be an index")
			return
		}
		nav.Select(i)
	}
	resp := gin.H{"albums": albums, "index": nav.Index(), "active": nil}
	if a, ok := nav.Active(); ok {
		resp["active"] = a
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) addGalleryPhoto(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file field required")
		return
	}
	defer file.Close()
	if header.Size > maxUpload {
		badRequest(c, "file too large")
		return
	}
	p, err := h.gallery.AddPhoto(c.Request.Context(), auth.SessionFrom(c), model.ID(c.Param("id")), header.Filename, file, c.PostForm("caption"))
	if err != nil {
		h.fail(c, err, "gallery.photo")
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) campusMap(c *gin.Context) {
	v, err := h.campus.View(c.Request.Context(), auth.SessionFrom(c), c.Query("type"))
	if err != nil {
		h.fail(c, err, "map")
		return
	}
	c.JSON(http.StatusOK, v)
}
