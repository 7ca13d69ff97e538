// Package media stores uploaded post images and avatars on disk.
package media

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"inkwell/common"
)

const (
	PostImages = "post_images"
	Avatars    = "avatars"

	MaxUploadSize = 5 << 20
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Save validates an uploaded image and writes it under kind with a fresh
// name. It returns the path relative to the media root. field names the form
// input, for the validation message.
func (s *Store) Save(fh *multipart.FileHeader, kind, field string) (string, error) {
	if fh.Size > MaxUploadSize {
		return "", invalid(field, "Image files may be at most 5 MB.")
	}

	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", errors.Wrap(err, "sniff upload")
	}
	if !allowedTypes[mtype.String()] {
		return "", invalid(field, "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", errors.Wrap(err, "rewind upload")
	}

	rel := path.Join(kind, uuid.NewString()+mtype.Extension())
	dst := filepath.Join(s.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", errors.Wrap(err, "create media dir")
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", errors.Wrap(err, "create media file")
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", errors.Wrap(err, "write media file")
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(err, "close media file")
	}

	common.Log.WithField("path", rel).WithField("size", fh.Size).Info("stored upload")
	return rel, nil
}

// FromForm saves the optional file input field of the request. A request
// without that file stores nothing and returns an empty path.
func (s *Store) FromForm(c *gin.Context, field, kind string) (string, error) {
	fh, err := c.FormFile(field)
	if err == http.ErrMissingFile || err == http.ErrNotMultipart {
		return "", nil
	}
	if err != nil {
		return "", invalid(field, "The submitted data was not a file.")
	}
	return s.Save(fh, kind, field)
}

// Remove deletes a stored file. Missing files and paths escaping the media
// root are ignored.
func (s *Store) Remove(rel string) {
	if rel == "" {
		return
	}
	clean := path.Clean("/" + rel)
	if strings.Contains(clean, "..") {
		return
	}
	if err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(clean))); err != nil && !os.IsNotExist(err) {
		common.Log.WithError(err).WithField("path", rel).Warn("failed to remove media file")
	}
}

func invalid(field, message string) error {
	return common.ErrValidation("Please correct the errors below.", map[string]string{field: message})
}
