package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/server"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/transform"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Config is the complete docscan configuration. It is shared by every
// command and can be loaded from files, DOCSCAN_* environment variables
// and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`
	Editor   EditorConfig   `mapstructure:"editor" yaml:"editor" json:"editor"`
	Warp     WarpConfig     `mapstructure:"warp" yaml:"warp" json:"warp"`
	Export   ExportConfig   `mapstructure:"export" yaml:"export" json:"export"`
	Image    ImageConfig    `mapstructure:"image" yaml:"image" json:"image"`
	PDF      PDFConfig      `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
}

// DetectorConfig tunes the edge and contour based corner detector.
type DetectorConfig struct {
	BlurKernel   int     `mapstructure:"blur_kernel" yaml:"blur_kernel" json:"blur_kernel"`
	CannyLow     float64 `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh    float64 `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	MinAreaRatio float64 `mapstructure:"min_area_ratio" yaml:"min_area_ratio" json:"min_area_ratio"`
	EpsilonRatio float64 `mapstructure:"epsilon_ratio" yaml:"epsilon_ratio" json:"epsilon_ratio"`
}

// EditorConfig holds the corner editing canvas settings.
type EditorConfig struct {
	ViewportWidth  float64 `mapstructure:"viewport_width" yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight float64 `mapstructure:"viewport_height" yaml:"viewport_height" json:"viewport_height"`
	RotateMode     string  `mapstructure:"rotate_mode" yaml:"rotate_mode" json:"rotate_mode"`
	MarginRatio    float64 `mapstructure:"margin_ratio" yaml:"margin_ratio" json:"margin_ratio"`
	HitRadius      float64 `mapstructure:"hit_radius" yaml:"hit_radius" json:"hit_radius"`
}

// WarpConfig controls the perspective warp.
type WarpConfig struct {
	Workers    int `mapstructure:"workers" yaml:"workers" json:"workers"`
	BandHeight int `mapstructure:"band_height" yaml:"band_height" json:"band_height"`
}

// ExportConfig controls how corrected images are written.
type ExportConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	JPEGQuality  int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
}

// ImageConfig bounds the images accepted as input.
type ImageConfig struct {
	MaxWidth  int `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	MaxHeight int `mapstructure:"max_height" yaml:"max_height" json:"max_height"`
	MinWidth  int `mapstructure:"min_width" yaml:"min_width" json:"min_width"`
	MinHeight int `mapstructure:"min_height" yaml:"min_height" json:"min_height"`
}

// PDFConfig selects which pages of a PDF are scanned.
type PDFConfig struct {
	Pages    string `mapstructure:"pages" yaml:"pages" json:"pages"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	sess := session.DefaultConfig()
	warp := rectify.DefaultConfig()
	img := utils.DefaultImageConstraints()

	return Config{
		LogLevel: "info",
		Detector: DetectorConfig{
			BlurKernel:   det.BlurKernel,
			CannyLow:     det.CannyLow,
			CannyHigh:    det.CannyHigh,
			MinAreaRatio: det.MinAreaRatio,
			EpsilonRatio: det.EpsilonRatio,
		},
		Editor: EditorConfig{
			ViewportWidth:  sess.ViewportWidth,
			ViewportHeight: sess.ViewportHeight,
			RotateMode:     string(sess.RotateMode),
			MarginRatio:    sess.MarginRatio,
			HitRadius:      sess.HitRadius,
		},
		Warp: WarpConfig{
			// 0 selects one band worker per CPU at run time.
			Workers:    0,
			BandHeight: warp.BandHeight,
		},
		Export: ExportConfig{
			Format:       string(export.PNG),
			JPEGQuality:  export.DefaultJPEGQuality,
			OverlayColor: rectify.DefaultOverlayColor,
		},
		Image: ImageConfig{
			MaxWidth:  img.MaxWidth,
			MaxHeight: img.MaxHeight,
			MinWidth:  img.MinWidth,
			MinHeight: img.MinHeight,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDayMB:   1024,
			},
		},
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := c.ToDetectorConfig().Validate(); err != nil {
		return fmt.Errorf("invalid detector settings: %w", err)
	}

	if _, err := session.ParseRotateMode(c.Editor.RotateMode); err != nil {
		return fmt.Errorf("invalid editor.rotate_mode: %w", err)
	}
	if c.Editor.ViewportWidth < 0 || c.Editor.ViewportHeight < 0 {
		return fmt.Errorf("invalid editor viewport: %gx%g (must not be negative)", c.Editor.ViewportWidth, c.Editor.ViewportHeight)
	}
	if c.Editor.MarginRatio < 0 || c.Editor.MarginRatio >= 0.5 {
		return fmt.Errorf("invalid editor.margin_ratio: %.2f (must be in [0, 0.5))", c.Editor.MarginRatio)
	}
	if c.Editor.HitRadius <= 0 {
		return fmt.Errorf("invalid editor.hit_radius: %g (must be positive)", c.Editor.HitRadius)
	}

	if c.Warp.Workers < 0 {
		return fmt.Errorf("invalid warp workers: %d (must not be negative)", c.Warp.Workers)
	}
	if c.Warp.BandHeight < 0 {
		return fmt.Errorf("invalid warp band height: %d (must not be negative)", c.Warp.BandHeight)
	}

	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("invalid export.format: %w", err)
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("invalid export.jpeg_quality: %d (must be between 1 and 100)", c.Export.JPEGQuality)
	}
	if _, err := rectify.ParseOverlayColor(c.Export.OverlayColor); err != nil {
		return fmt.Errorf("invalid export.overlay_color: %w", err)
	}

	img := c.ToImageConstraints()
	if img.MinWidth < 0 || img.MinHeight < 0 {
		return fmt.Errorf("invalid image minimum: %dx%d (must not be negative)", img.MinWidth, img.MinHeight)
	}
	if (img.MaxWidth > 0 && img.MaxWidth < img.MinWidth) || (img.MaxHeight > 0 && img.MaxHeight < img.MinHeight) {
		return fmt.Errorf("invalid image constraints: maximum %dx%d below minimum %dx%d",
			img.MaxWidth, img.MaxHeight, img.MinWidth, img.MinHeight)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limit: limits must not be negative")
	}

	return nil
}

// ToDetectorConfig converts to detector.Config.
func (c *Config) ToDetectorConfig() detector.Config {
	return detector.Config{
		BlurKernel:   c.Detector.BlurKernel,
		CannyLow:     c.Detector.CannyLow,
		CannyHigh:    c.Detector.CannyHigh,
		MinAreaRatio: c.Detector.MinAreaRatio,
		EpsilonRatio: c.Detector.EpsilonRatio,
	}
}

// ToWarperConfig converts to rectify.Config.
func (c *Config) ToWarperConfig() rectify.Config {
	return rectify.Config{Workers: c.Warp.Workers, BandHeight: c.Warp.BandHeight}
}

// ToSessionConfig converts to session.Config. A zero margin selects the
// default inset.
func (c *Config) ToSessionConfig() (session.Config, error) {
	mode, err := session.ParseRotateMode(c.Editor.RotateMode)
	if err != nil {
		return session.Config{}, err
	}
	margin := c.Editor.MarginRatio
	if margin == 0 {
		margin = transform.DefaultMarginRatio
	}
	return session.Config{
		ViewportWidth:  c.Editor.ViewportWidth,
		ViewportHeight: c.Editor.ViewportHeight,
		RotateMode:     mode,
		MarginRatio:    margin,
		HitRadius:      c.Editor.HitRadius,
		Warp:           c.ToWarperConfig(),
	}, nil
}

// ToImageConstraints converts to utils.ImageConstraints.
func (c *Config) ToImageConstraints() utils.ImageConstraints {
	return utils.ImageConstraints{
		MaxWidth:  c.Image.MaxWidth,
		MaxHeight: c.Image.MaxHeight,
		MinWidth:  c.Image.MinWidth,
		MinHeight: c.Image.MinHeight,
	}
}

// ToExportOptions converts to export.Options.
func (c *Config) ToExportOptions() export.Options {
	return export.Options{JPEGQuality: c.Export.JPEGQuality}
}

// ExportFormat returns the configured output format.
func (c *Config) ExportFormat() (export.Format, error) {
	return export.ParseFormat(c.Export.Format)
}

// ToPDFOptions converts to pdf.Options.
func (c *Config) ToPDFOptions() pdf.Options {
	return pdf.Options{Pages: c.PDF.Pages, Password: c.PDF.Password}
}

// ToServerConfig converts to server.Config.
func (c *Config) ToServerConfig() (server.Config, error) {
	sess, err := c.ToSessionConfig()
	if err != nil {
		return server.Config{}, err
	}
	rl := c.Server.RateLimit
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		CORSOrigin:      c.Server.CORSOrigin,
		MaxUploadMB:     int64(c.Server.MaxUploadMB),
		TimeoutSec:      c.Server.TimeoutSec,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		OverlayColor:    c.Export.OverlayColor,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDayMB * 1024 * 1024,
		},
		Detector: c.ToDetectorConfig(),
		Session:  sess,
		Image:    c.ToImageConstraints(),
		Export:   c.ToExportOptions(),
	}, nil
}
