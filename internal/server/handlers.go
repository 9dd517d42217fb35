package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/transform"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/MeKo-Tech/docscan/internal/version"
)

// defaultBaseName names outputs of uploads that arrive without a filename.
const defaultBaseName = "document"

// requestError is a client error with the status it should be reported as.
type requestError struct {
	status int
	msg    string
	err    error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &requestError{status: http.StatusBadRequest, msg: msg, err: err}
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

// fail reports err for operation with a status derived from its type.
func (s *Server) fail(w http.ResponseWriter, operation string, err error) {
	apiRequestsTotal.WithLabelValues(operation, "error").Inc()
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "operation", operation, "error", err)
	} else {
		slog.Debug("Request rejected", "operation", operation, "status", status, "error", err)
	}
	s.writeErrorResponse(w, err.Error(), status)
}

func statusFor(err error) int {
	var re *requestError
	var ge *session.InvalidGeometryError
	var ie *utils.ImageProcessingError
	switch {
	case errors.As(err, &re):
		return re.status
	case errors.As(err, &ge):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ie):
		return http.StatusBadRequest
	case errors.Is(err, pdf.ErrNoImages):
		return http.StatusUnprocessableEntity
	case errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, transform.ErrInvalidRotation),
		errors.Is(err, geometry.ErrQuadSyntax),
		errors.Is(err, session.ErrNoImage):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requestContext bounds processing by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(r.Context())
}

// readUpload parses the multipart body and returns the content and base
// name of the file in field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, "", &requestError{status: http.StatusRequestEntityTooLarge, msg: "file too large", err: err}
		}
		return nil, "", badRequest("failed to parse form data", err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", badRequest("no "+field+" file provided", err)
	}
	defer func() { _ = file.Close() }()

	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	return data, name, nil
}

// formInt returns the integer form value key, or def when it is absent.
func formInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid "+key, err)
	}
	return n, nil
}

// formFloat returns the float form value key, or def when it is absent.
func formFloat(r *http.Request, key string, def float64) (float64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequest("invalid "+key, err)
	}
	return f, nil
}

func formRotation(r *http.Request) (transform.Rotation, error) {
	deg, err := formInt(r, "rotation", 0)
	if err != nil {
		return 0, err
	}
	return transform.ParseRotation(deg)
}

// sessionConfig applies the per-request viewport to the server defaults.
func (s *Server) sessionConfig(r *http.Request) (session.Config, error) {
	cfg := s.sessionCfg
	var err error
	if cfg.ViewportWidth, err = formFloat(r, "viewport_width", cfg.ViewportWidth); err != nil {
		return cfg, err
	}
	if cfg.ViewportHeight, err = formFloat(r, "viewport_height", cfg.ViewportHeight); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func baseName(name string) string {
	if _, err := export.NormalizeBase(name); err != nil {
		return defaultBaseName
	}
	return name
}
