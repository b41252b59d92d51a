// Package api exposes the RAG service over HTTP for the web front end.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docqa/internal/domain"
)

// maxUploadMemory is the multipart size kept in memory before spilling to disk.
const maxUploadMemory = 32 << 20

// Service is the subset of the RAG service the HTTP API drives.
type Service interface {
	IngestFile(ctx context.Context, path string) (int, error)
	Ask(ctx context.Context, question string) (domain.Answer, error)
	DeleteDocument(ctx context.Context, path string) error
}

// Options configures the HTTP server.
type Options struct {
	UploadDir      string
	AllowedOrigins []string
}

type Server struct {
	svc       Service
	uploadDir string
	origins   map[string]struct{}
	logger    *slog.Logger
}

func NewServer(svc Service, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		origins[o] = struct{}{}
	}
	return &Server{svc: svc, uploadDir: opts.UploadDir, origins: origins, logger: logger}
}

// Handler returns the routed API with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.HandleRoot)
	for _, p := range []string{"/upload", "/upload/"} {
		mux.HandleFunc("POST "+p, s.HandleUpload)
	}
	for _, p := range []string{"/ask", "/ask/"} {
		mux.HandleFunc("POST "+p, s.HandleAsk)
	}
	for _, p := range []string{"/delete_document", "/delete_document/"} {
		mux.HandleFunc("POST "+p, s.HandleDelete)
	}
	return s.withLogging(s.withCORS(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type uploadResponse struct {
	Message   string   `json:"message"`
	Filenames []string `json:"filenames"`
}

type askRequest struct {
	Query string `json:"query"`
}

type deleteRequest struct {
	Filename string `json:"filename"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "RAG API is running"})
}

// HandleUpload stores each file of the multipart "files" field in the upload
// directory and indexes it. Processing stops at the first failing file.
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "expected multipart form with field 'files'")
		return
	}
	defer r.MultipartForm.RemoveAll()
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "field 'files' is required")
		return
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("create upload directory: %v", err))
		return
	}

	filenames := make([]string, 0, len(headers))
	for _, fh := range headers {
		name, ok := cleanFilename(fh.Filename)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid filename %q", fh.Filename))
			return
		}
		filenames = append(filenames, name)
		dst := filepath.Join(s.uploadDir, name)
		if err := saveUpload(fh, dst); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save file %s: %v", name, err))
			return
		}

		n, err := s.svc.IngestFile(r.Context(), dst)
		switch {
		case errors.Is(err, domain.ErrNoExtractableContent):
			s.discard(dst)
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf(
				"Failed to extract any text or data from '%s'. The file may be an image, empty, or corrupted.", name))
			return
		case err != nil:
			s.discard(dst)
			s.logger.Error("upload.failed", "file", name, "err", err)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process file %s: %v", name, err))
			return
		}
		s.logger.Info("upload.indexed", "file", name, "units", n)
	}
	writeJSON(w, http.StatusOK, uploadResponse{Message: "Files processed successfully.", Filenames: filenames})
}

func (s *Server) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	answer, err := s.svc.Ask(r.Context(), req.Query)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.logger.Error("ask.failed", "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error during question answering: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// HandleDelete removes a document's units from the index and its stored
// upload. The file is removed even when the index delete fails.
func (s *Server) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	name, ok := cleanFilename(req.Filename)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid filename %q", req.Filename))
		return
	}
	path := filepath.Join(s.uploadDir, name)
	err := s.svc.DeleteDocument(r.Context(), path)
	s.discard(path)
	if err != nil {
		s.logger.Error("delete.failed", "file", name, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error deleting document '%s': %v", name, err))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Successfully deleted '%s' and its chunks.", name)})
}

func (s *Server) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("upload.remove.failed", "path", path, "err", err)
	}
}

// cleanFilename keeps only the base name so uploads cannot escape the upload directory.
func cleanFilename(name string) (string, bool) {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", false
	}
	return name, true
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
