package storage

import (
	"path"
	"strings"

	"sekolahkita/internal/apperr"
)

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ImageExt returns the lower-cased extension and content type of an image
// upload, or a validation error when filename is not a supported image.
func ImageExt(filename string) (ext, contentType string, err error) {
	ext = strings.ToLower(path.Ext(filename))
	ct, ok := imageTypes[ext]
	if !ok {
		return "", "", apperr.Validation("unsupported image type %q", ext)
	}
	return strings.TrimPrefix(ext, "."), ct, nil
}

// IsURL reports whether p is already an absolute URL rather than an object path.
func IsURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
