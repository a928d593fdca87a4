package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type uploadPage struct {
	Message string
}

type errorPage struct {
	Status     int
	StatusText string
}

// WebService serves the browser upload form.
type WebService struct {
	uploads  *Uploads
	detector Detector
}

func NewWebService(uploads *Uploads, detector Detector) *WebService {
	return &WebService{uploads: uploads, detector: detector}
}

func (s *WebService) AddRoutes(r chi.Router) {
	r.Get("/", s.Index)
	r.With(middleware.RequestSize(MaxUploadBytes)).Post("/upload", s.Upload)
	r.NotFound(s.NotFound)
}

func render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("error rendering template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("error writing page", "template", name, "error", err)
	}
}

func renderError(w http.ResponseWriter, status int) {
	render(w, status, "error.html", errorPage{Status: status, StatusText: http.StatusText(status)})
}

func (s *WebService) Index(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "upload.html", uploadPage{})
}

// Upload saves the posted image and runs detection on it. Problems with the
// submitted file are shown on the form; anything else renders the error page.
func (s *WebService) Upload(w http.ResponseWriter, r *http.Request) {
	path, err := s.uploads.Save(r)
	if err != nil {
		code := ErrorCode(err)
		if code >= http.StatusInternalServerError || code == http.StatusRequestEntityTooLarge {
			slog.Error("upload failed", "error", err)
			renderError(w, code)
			return
		}
		slog.Error("invalid upload", "error", err)
		render(w, http.StatusOK, "upload.html", uploadPage{Message: err.Error()})
		return
	}

	out, err := s.detector.Detect(r.Context(), path)
	if err != nil {
		slog.Error("unexpected error during detection", "image", path, "error", err)
		renderError(w, http.StatusInternalServerError)
		return
	}

	message := fmt.Sprintf("Image detected successfully. Detected image saved at %s", out)
	slog.Info(message)
	render(w, http.StatusOK, "upload.html", uploadPage{Message: message})
}

func (s *WebService) NotFound(w http.ResponseWriter, r *http.Request) {
	slog.Error("404 error", "path", r.URL.Path)
	renderError(w, http.StatusNotFound)
}
