package server

import (
	"fmt"
	"image/color"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/transform"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/MeKo-Tech/docscan/internal/vision"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	detector     session.Detector
	sessionCfg   session.Config
	constraints  utils.ImageConstraints
	exportOpts   export.Options
	overlayColor color.Color
	corsOrigin   string
	maxUploadMB  int64
	timeoutSec   int
	rateLimiter  *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	TimeoutSec      int
	ShutdownTimeout int
	OverlayColor    string
	RateLimit       RateLimitConfig

	Detector detector.Config
	Session  session.Config
	Image    utils.ImageConstraints
	Export   export.Options
}

// RateLimitConfig holds per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// DetectResponse is returned by /api/v1/detect.
type DetectResponse struct {
	Success  bool                  `json:"success"`
	Name     string                `json:"name,omitempty"`
	Origin   session.Origin        `json:"origin"`
	Corners  geometry.DisplayQuad  `json:"corners"`
	Original geometry.OriginalQuad `json:"original"`
	Display  transform.Display     `json:"display"`
	Rotation transform.Rotation    `json:"rotation"`
	Plan     *PlanResponse         `json:"plan,omitempty"`
}

// PlanResponse is the output size a warp of the detected corners produces.
type PlanResponse struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScanResponse is returned by /api/v1/scan when JSON is requested.
type ScanResponse struct {
	Success  bool                 `json:"success"`
	Filename string               `json:"filename"`
	Pages    []session.PageReport `json:"pages"`
}

// NewServer creates a server with the native corner detector.
func NewServer(config Config) (*Server, error) {
	det, err := detector.NewDetector(config.Detector, vision.NewNative())
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	return NewServerWithDetector(config, det)
}

// NewServerWithDetector creates a server around det.
func NewServerWithDetector(config Config, det session.Detector) (*Server, error) {
	if det == nil {
		return nil, fmt.Errorf("detector is required")
	}
	col, err := rectify.ParseOverlayColor(config.OverlayColor)
	if err != nil {
		return nil, err
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	if config.Image == (utils.ImageConstraints{}) {
		config.Image = utils.DefaultImageConstraints()
	}

	s := &Server{
		detector:     det,
		sessionCfg:   config.Session,
		constraints:  config.Image,
		exportOpts:   config.Export,
		overlayColor: col,
		corsOrigin:   config.CORSOrigin,
		maxUploadMB:  config.MaxUploadMB,
		timeoutSec:   config.TimeoutSec,
	}
	if config.RateLimit.Enabled {
		rl := config.RateLimit
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/api/v1/warp", s.corsMiddleware(s.rateLimitMiddleware(s.warpHandler)))
	mux.HandleFunc("/api/v1/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanHandler)))
	mux.HandleFunc("/ws/session", s.corsMiddleware(s.rateLimitMiddleware(s.sessionWebSocketHandler)))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
