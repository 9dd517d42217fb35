package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/transform"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// detectResult is the per-image output of the detect command.
type detectResult struct {
	File     string                 `json:"file"`
	Origin   string                 `json:"origin,omitempty"`
	Rotation int                    `json:"rotation"`
	Corners  *geometry.OriginalQuad `json:"corners,omitempty"`
	Width    int                    `json:"width,omitempty"`
	Height   int                    `json:"height,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

var detectCmd = &cobra.Command{
	Use:   "detect [image...]",
	Short: "Detect document corners in images",
	Long: `Detect the four document corners in one or more images.

Corners are reported in original image pixels, clockwise from the top-left,
together with the size a warp of those corners would produce. Images where no
document is found get a manual quad inset from the image border.

Examples:
  docscan detect photo.jpg
  docscan detect *.png --format json
  docscan detect photo.jpg --rotation 90 --overlay-dir overlays/`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	format, _ := cmd.Flags().GetString("format")
	if format != outputFormatJSON && format != outputFormatText {
		return fmt.Errorf("invalid output format: %s (must be one of: %s, %s)", format, outputFormatText, outputFormatJSON)
	}
	rot, err := rotationFlag(cmd)
	if err != nil {
		return err
	}
	overlayDir, _ := cmd.Flags().GetString("overlay-dir")
	if overlayDir != "" {
		if err := os.MkdirAll(overlayDir, 0o750); err != nil {
			return fmt.Errorf("create overlay directory: %w", err)
		}
	}

	det, err := newDetector(cfg)
	if err != nil {
		return err
	}

	results := make([]detectResult, 0, len(args))
	failed := 0
	for _, path := range args {
		res := detectFile(cmd.Context(), cfg, det, path, rot, overlayDir)
		if res.Error != "" {
			failed++
			slog.Warn("Detection failed", "file", path, "error", res.Error)
		}
		results = append(results, res)
	}

	if err := writeDetectResults(cmd.OutOrStdout(), format, results); err != nil {
		return err
	}
	if failed == len(args) {
		return errors.New("no image could be processed")
	}
	return nil
}

func detectFile(ctx context.Context, cfg *config.Config, det session.Detector, path string, rot transform.Rotation, overlayDir string) detectResult {
	res := detectResult{File: path, Rotation: int(rot)}
	sess, img, err := openSession(ctx, cfg, det, path, rot)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	orig, err := sess.OriginalPoints()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	plan := rectify.PlanWarp(orig)
	res.Origin = sess.Origin().String()
	res.Corners = &orig
	res.Width, res.Height = plan.Width, plan.Height

	if overlayDir != "" {
		col, err := rectify.ParseOverlayColor(cfg.Export.OverlayColor)
		if err == nil {
			name, nerr := export.NormalizeBase(path)
			if nerr != nil {
				name = "image"
			}
			err = rectify.WriteOverlayPNG(filepath.Join(overlayDir, name+"-overlay.png"), img, orig, col)
		}
		if err != nil {
			slog.Warn("Failed to write overlay", "file", path, "error", err)
		}
	}
	return res
}

// openSession loads path into a new editing session rotated by rot.
func openSession(ctx context.Context, cfg *config.Config, det session.Detector, path string, rot transform.Rotation) (*session.Session, image.Image, error) {
	img, _, err := utils.LoadImage(path, cfg.ToImageConstraints())
	if err != nil {
		return nil, nil, err
	}
	sc, err := cfg.ToSessionConfig()
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(det, sc)
	if err := sess.LoadRotated(ctx, img, filepath.Base(path), rot); err != nil {
		return nil, nil, err
	}
	return sess, img, nil
}

func rotationFlag(cmd *cobra.Command) (transform.Rotation, error) {
	deg, _ := cmd.Flags().GetInt("rotation")
	return transform.ParseRotation(deg)
}

func writeDetectResults(w io.Writer, format string, results []detectResult) error {
	if format == outputFormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		if r.Error != "" {
			if _, err := fmt.Fprintf(w, "%s: error: %s\n", r.File, r.Error); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s corners %s -> %dx%d\n",
			r.File, r.Origin, geometry.FormatQuad(*r.Corners), r.Width, r.Height); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	detectCmd.Flags().Int("rotation", 0, "rotate the image clockwise before detecting (0, 90, 180, 270)")
	detectCmd.Flags().String("overlay-dir", "", "directory to write images with the corners drawn")
	detectCmd.Flags().Int("blur-kernel", 5, "Gaussian blur kernel size (odd)")
	detectCmd.Flags().Float64("canny-low", 75, "lower Canny hysteresis threshold")
	detectCmd.Flags().Float64("canny-high", 200, "upper Canny hysteresis threshold")
	detectCmd.Flags().Float64("min-area-ratio", 0.05, "minimum share of the image a document must cover")

	bindFlags(detectCmd, map[string]string{
		"detector.blur_kernel":    "blur-kernel",
		"detector.canny_low":      "canny-low",
		"detector.canny_high":     "canny-high",
		"detector.min_area_ratio": "min-area-ratio",
	})
}
