// Package frameserver exposes a small web API for a running frame:
// a status page, a JSON view of what is on screen, and photo upload.
package frameserver

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

//go:embed assets/index.tmpl
var indexTmpl string

// Importer is the subset of the photo importer the server needs.
type Importer interface {
	Import(path string) (string, error)
}

// Status describes what the frame is showing right now.
type Status struct {
	Current        string  `json:"current"`
	CurrentOpacity float64 `json:"current_opacity"`
	Next           string  `json:"next,omitempty"`
	NextOpacity    float64 `json:"next_opacity,omitempty"`
	Transitioning  bool    `json:"transitioning"`
}

// Server handles the frame's web API. All fields must be set before
// Handler is called.
type Server struct {
	Imp            Importer
	Status         func() Status
	MaxUploadBytes int64

	// OnImport runs after a successful upload, with the imported
	// photo's destination path. Used to refresh the photo source.
	OnImport func(dest string)
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("GET /status", s.status)
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("POST /upload", s.upload)
	return mux
}

// ListenAndServe serves the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	klog.Infof("frame server listening on http://%s", addr)
	klog.Infof("  GET  /        - status page")
	klog.Infof("  GET  /status  - status JSON")
	klog.Infof("  POST /upload  - upload photo")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.New("index").Parse(indexTmpl)
	if err != nil {
		klog.Errorf("parse index template: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, s.Status()); err != nil {
		klog.Errorf("execute index template: %v", err)
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no content provided"})
		return
	}
	if r.ContentLength > s.MaxUploadBytes {
		s.tooLarge(w)
		return
	}

	// The uploaded name only matters for its extension; everything
	// else about the destination is the importer's business.
	name := filepath.Base(r.URL.Query().Get("filename"))
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".jpg"
	}

	tmp, err := os.CreateTemp("", "fotoramme-upload-*"+ext)
	if err != nil {
		klog.Errorf("create temp file: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer os.Remove(tmp.Name())

	body := http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	_, err = io.Copy(tmp, body)
	tmp.Close()
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.tooLarge(w)
			return
		}
		klog.Errorf("spool upload: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "upload failed"})
		return
	}

	dest, err := s.Imp.Import(tmp.Name())
	if err != nil {
		klog.Errorf("import uploaded photo: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("import failed: %v", err)})
		return
	}

	klog.Infof("uploaded photo imported to %s", dest)
	if s.OnImport != nil {
		s.OnImport(dest)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "successfully imported photo",
	})
}

func (s *Server) tooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
		"error": fmt.Sprintf("file too large, maximum size is %dMB", s.MaxUploadBytes/(1<<20)),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Errorf("write response: %v", err)
	}
}
