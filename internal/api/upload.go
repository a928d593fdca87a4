package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

const MaxUploadBytes = 16 << 20

var allowedImageExts = []string{"png", "jpg", "jpeg", "gif"}

func allowedImage(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	return slices.Contains(allowedImageExts, strings.ToLower(name[i+1:]))
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces a client supplied name to a flat file name made of
// ASCII letters, digits, '_', '.' and '-'. The result may be empty.
func SecureFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Uploads stores images posted in the "image" form field.
type Uploads struct {
	dir string
}

func NewUploads(dir string) (*Uploads, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", abs, err)
	}
	return &Uploads{dir: abs}, nil
}

func (u *Uploads) Dir() string {
	return u.dir
}

// Save writes the uploaded image and returns its path. Problems with the
// request itself are returned as coded 4xx errors.
func (u *Uploads) Save(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return "", CodedErrorf(http.StatusRequestEntityTooLarge, "Image exceeds the %dMB upload limit", MaxUploadBytes>>20)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return "", CodedErrorf(http.StatusBadRequest, "Image input is required in the form")
		default:
			slog.Error("error parsing upload form", "error", err)
			return "", CodedErrorf(http.StatusBadRequest, "unable to parse upload form")
		}
	}
	defer file.Close()

	if header.Filename == "" {
		return "", CodedErrorf(http.StatusBadRequest, "No image selected")
	}
	if !allowedImage(header.Filename) {
		return "", CodedErrorf(http.StatusBadRequest, "Invalid image format, allowed formats are - %s only", strings.Join(allowedImageExts, ", "))
	}

	name := SecureFilename(header.Filename)
	if name == "" || !allowedImage(name) {
		return "", CodedErrorf(http.StatusBadRequest, "Invalid image name '%s'", header.Filename)
	}

	path := filepath.Join(u.dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", CodedErrorf(http.StatusConflict, "Image with the same name already exists")
		}
		return "", CodedError(http.StatusInternalServerError, fmt.Errorf("failed to create %s: %w", path, err))
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", CodedError(http.StatusInternalServerError, fmt.Errorf("failed to save %s: %w", path, err))
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", CodedError(http.StatusInternalServerError, fmt.Errorf("failed to save %s: %w", path, err))
	}

	slog.Info("image uploaded", "path", path, "size", header.Size)
	return path, nil
}
