package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/rectify"
)

var warpCmd = &cobra.Command{
	Use:   "warp <image>",
	Short: "Correct the perspective of a document photo",
	Long: `Warp the document quadrilateral of an image into an upright rectangle.

Without --corners the corners are detected automatically, falling back to a
quad inset from the image border. Corners are given in original image pixels
as "x,y;x,y;x,y;x,y" or as a JSON array of [x,y] pairs, clockwise from the
top-left.

Examples:
  docscan warp photo.jpg
  docscan warp photo.jpg --corners "12,30;410,22;420,580;8,590" -o page.png
  docscan warp photo.jpg --format jpeg --rotate-result 1 --overlay check.png`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runWarp,
}

func runWarp(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	path := args[0]

	format, err := cfg.ExportFormat()
	if err != nil {
		return err
	}
	if format == export.PDF {
		return fmt.Errorf("warp writes images; use png or jpeg (got %s)", format)
	}
	rot, err := rotationFlag(cmd)
	if err != nil {
		return err
	}
	turns, _ := cmd.Flags().GetInt("rotate-result")
	if turns < 0 || turns > 3 {
		return fmt.Errorf("invalid --rotate-result: %d (must be between 0 and 3)", turns)
	}

	det, err := newDetector(cfg)
	if err != nil {
		return err
	}
	sess, img, err := openSession(cmd.Context(), cfg, det, path, rot)
	if err != nil {
		return err
	}

	if corners, _ := cmd.Flags().GetString("corners"); corners != "" {
		q, err := geometry.ParseQuad(corners)
		if err != nil {
			return err
		}
		orig := geometry.OriginalQuad(geometry.Retag[geometry.OriginalPoint](q))
		// Re-ordered on the turned canvas so the warp comes out in the
		// --rotation orientation whatever order the corners were given in.
		dq := geometry.OrderCorners(sess.Display().FromOriginal(orig))
		if err := sess.SetPoints(dq); err != nil {
			return err
		}
	}

	orig, err := sess.OriginalPoints()
	if err != nil {
		return err
	}
	if overlay, _ := cmd.Flags().GetString("overlay"); overlay != "" {
		col, err := rectify.ParseOverlayColor(cfg.Export.OverlayColor)
		if err != nil {
			return err
		}
		if err := rectify.WriteOverlayPNG(overlay, img, orig, col); err != nil {
			return err
		}
	}

	if _, err := sess.Warp(cmd.Context()); err != nil {
		return err
	}
	for range turns {
		if err := sess.RotateResult(); err != nil {
			return err
		}
	}
	out, err := sess.Result()
	if err != nil {
		return err
	}

	dest, _ := cmd.Flags().GetString("output")
	if dest == "" {
		name, err := export.Filename(path, 0, format)
		if err != nil {
			return err
		}
		dest = filepath.Join(filepath.Dir(path), name)
	}
	if err := export.WriteFile(dest, out, format, cfg.ToExportOptions()); err != nil {
		return err
	}
	if err := sess.MarkExported(); err != nil {
		return err
	}

	b := out.Bounds()
	slog.Debug("Warped document", "input", path, "output", dest, "origin", sess.Origin().String())
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s corners %s -> %s (%dx%d)\n",
		path, sess.Origin(), geometry.FormatQuad(orig), dest, b.Dx(), b.Dy())
	return err
}

func init() {
	rootCmd.AddCommand(warpCmd)

	warpCmd.Flags().String("corners", "", "document corners in original pixels (x,y;x,y;x,y;x,y), in any order")
	warpCmd.Flags().Int("rotation", 0, "rotate the image clockwise before detecting (0, 90, 180, 270)")
	warpCmd.Flags().Int("rotate-result", 0, "quarter turns clockwise applied to the corrected image")
	warpCmd.Flags().StringP("output", "o", "", "output file (default: <name>-corrected.<ext> next to the input)")
	warpCmd.Flags().StringP("format", "f", "png", "output format (png, jpeg)")
	warpCmd.Flags().Int("jpeg-quality", export.DefaultJPEGQuality, "JPEG quality (1-100)")
	warpCmd.Flags().String("overlay", "", "write a PNG of the input with the corners drawn")
	warpCmd.Flags().String("overlay-color", rectify.DefaultOverlayColor, "overlay outline colour (hex)")

	bindFlags(warpCmd, map[string]string{
		"export.format":        "format",
		"export.jpeg_quality":  "jpeg-quality",
		"export.overlay_color": "overlay-color",
	})
}
