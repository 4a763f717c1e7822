package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/metrics"
	"github.com/1broseidon/floatdrop/internal/scratch"
	"github.com/1broseidon/floatdrop/internal/transfer"
)

const (
	// Version is reported by the banner route.
	Version = "1.0.0"

	// formOverhead allows for multipart boundaries and the small fields
	// around the file part.
	formOverhead = 1 << 20
	fieldLimit   = 4 << 10

	defaultSweepInterval = 10 * time.Minute
)

// Server is the relay HTTP server.
type Server struct {
	cfg     config.RelayConfig
	backend Backend
	index   *Index
	started time.Time
	now     func() time.Time
}

// NewServer creates a relay over backend.
func NewServer(cfg config.RelayConfig, backend Backend) *Server {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = config.DefaultMaxFileSize
	}
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = config.Duration(24 * time.Hour)
	}
	return &Server{
		cfg:     cfg,
		backend: backend,
		index:   NewIndex(),
		started: time.Now(),
		now:     time.Now,
	}
}

// Index returns the upload index.
func (s *Server) Index() *Index { return s.index }

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleBanner)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /api/files/upload", s.requireKey(http.HandlerFunc(s.handleUpload)))
	mux.Handle("GET /api/files", s.requireKey(http.HandlerFunc(s.handleList)))
	mux.Handle("GET /api/files/{id}/download", s.requireKey(http.HandlerFunc(s.handleDownload)))
	mux.Handle("DELETE /api/files/{id}", s.requireKey(http.HandlerFunc(s.handleDelete)))

	return loggingMiddleware(metrics.Middleware(mux))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

// requireKey enforces the shared bearer key when one is configured.
func (s *Server) requireKey(next http.Handler) http.Handler {
	if s.cfg.APIKey == "" {
		return next
	}
	want := []byte("Bearer " + s.cfg.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			s.sendError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "floatdrop relay running",
		"version":   Version,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"uptime":    time.Since(s.started).Seconds(),
		"storage":   s.backend.Type(),
		"files":     s.index.Len(),
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUpload
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}

	var (
		name     string
		declared int64
		spool    *os.File
		size     int64
	)
	defer func() {
		if spool != nil {
			spool.Close()
			os.Remove(spool.Name())
		}
	}()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.sendUploadReadError(w, err)
			return
		}

		switch part.FormName() {
		case "fileName":
			v, err := readField(part)
			if err != nil {
				s.sendUploadReadError(w, err)
				return
			}
			name = v
		case "fileSize":
			v, err := readField(part)
			if err != nil {
				s.sendUploadReadError(w, err)
				return
			}
			declared, _ = strconv.ParseInt(v, 10, 64)
		case "file":
			if declared > limit {
				s.sendError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(limit))
				return
			}
			if name == "" {
				name = part.FileName()
			}
			if spool != nil {
				s.sendError(w, http.StatusBadRequest, "only one file per upload")
				return
			}
			spool, err = os.CreateTemp("", "floatdrop-relay-*")
			if err != nil {
				s.sendError(w, http.StatusInternalServerError, "failed to buffer upload")
				return
			}
			size, err = io.Copy(spool, io.LimitReader(part, limit+1))
			if err != nil {
				s.sendUploadReadError(w, err)
				return
			}
			if size > limit {
				s.sendError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(limit))
				return
			}
		}
		part.Close()
	}

	if spool == nil {
		s.sendError(w, http.StatusBadRequest, "file is required")
		return
	}
	name = cleanFileName(name)

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to buffer upload")
		return
	}

	id := uuid.NewString()
	if err := s.backend.Put(r.Context(), id, spool, size); err != nil {
		log.WithError(err).WithField("file", name).Error("failed to store upload")
		metrics.RecordUpload(size, false)
		s.sendError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	now := s.now()
	f := transfer.RemoteFile{
		FileID:      id,
		FileName:    name,
		FileSize:    size,
		Type:        transfer.CategoryOf(name),
		MimeType:    transfer.MimeTypeOf(name),
		DownloadURL: s.downloadURL(r, id),
		UploadedAt:  now,
		ExpiresAt:   now.Add(s.cfg.BlobTTL.D()),
	}
	s.index.Put(f)
	metrics.RecordUpload(size, true)
	metrics.SetStoredBlobs(s.index.Len())
	log.WithFields(logrus.Fields{"id": id, "file": name, "size": size}).Info("file uploaded")

	res := transfer.UploadResult{
		FileID:      id,
		FileName:    name,
		FileSize:    size,
		DownloadURL: f.DownloadURL,
	}
	// Images are served as their own thumbnail.
	if f.Type == transfer.CategoryImage {
		res.ThumbnailURL = f.DownloadURL
	}
	s.sendData(w, http.StatusCreated, res)
}

func (s *Server) sendUploadReadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.sendError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(s.cfg.MaxUpload))
		return
	}
	s.sendError(w, http.StatusBadRequest, "malformed upload")
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("file exceeds the %d byte limit", limit)
}

func readField(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, fieldLimit))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// cleanFileName strips directories from a client supplied name.
func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}

func (s *Server) downloadURL(r *http.Request, id string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/api/files/" + id + "/download"
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	s.sendData(w, http.StatusOK, s.index.List(transfer.ListParams{
		Page:  page,
		Limit: limit,
		Type:  transfer.Category(q.Get("type")),
	}))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, ok := s.index.Get(id)
	if !ok {
		s.sendError(w, http.StatusNotFound, "file not found")
		return
	}

	rc, size, err := s.backend.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			s.index.Remove(id)
			s.sendError(w, http.StatusNotFound, "file not found")
			return
		}
		log.WithError(err).WithField("id", id).Error("failed to open blob")
		s.sendError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.FileName}))
	n, err := io.Copy(w, rc)
	metrics.RecordDownload(n, err == nil)
	if err != nil {
		log.WithError(err).WithField("id", id).Warn("download interrupted")
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.index.Remove(id) {
		s.sendError(w, http.StatusNotFound, "file not found")
		return
	}
	if err := s.backend.Delete(r.Context(), id); err != nil {
		log.WithError(err).WithField("id", id).Warn("failed to delete blob")
	}
	metrics.SetStoredBlobs(s.index.Len())
	s.sendData(w, http.StatusOK, map[string]string{"fileId": id})
}

// Sweep removes expired uploads from the index and the backend. When the
// backend is local, files left over from a previous run are swept by age.
func (s *Server) Sweep(ctx context.Context) int {
	now := s.now()
	removed := 0
	for _, f := range s.index.Expired(now) {
		if err := s.backend.Delete(ctx, f.FileID); err != nil {
			log.WithError(err).WithField("id", f.FileID).Warn("failed to delete expired blob")
			continue
		}
		s.index.Remove(f.FileID)
		removed++
	}
	if removed > 0 {
		log.WithField("removed", removed).Info("expired uploads swept")
	}
	metrics.RecordSwept("relay", removed)

	if local, ok := s.backend.(*LocalBackend); ok {
		if _, err := scratch.Sweep(local.Root(), s.cfg.BlobTTL.D(), now); err != nil {
			log.WithError(err).Warn("relay blob sweep incomplete")
		}
	}
	metrics.SetStoredBlobs(s.index.Len())
	return removed
}

// ListenAndServe serves on cfg.Listen until ctx is done, sweeping expired
// uploads in the background.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.sweepLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    ln.Addr().String(),
			"storage": s.backend.Type(),
		}).Info("relay listening")
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Server) sendData(w http.ResponseWriter, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	writeJSON(w, status, transfer.Envelope{Success: true, Data: raw})
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, transfer.Envelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("failed to write response")
	}
}
