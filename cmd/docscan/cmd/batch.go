package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/batch"
	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/rectify"
)

var batchCmd = &cobra.Command{
	Use:   "batch <image|dir>...",
	Short: "Correct many document photos in one run",
	Long: `Detect and warp every image named on the command line or found in the
given directories. Each image is corrected with automatically placed corners
and written as <name>-corrected.<ext>, next to the input or into --output-dir.

A file that cannot be corrected is reported and the run continues.

Examples:
  docscan batch photos/
  docscan batch photos/ --recursive --include "*.jpg" --output-dir corrected
  docscan batch a.jpg b.jpg --report json --report-file report.json --stats`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	reportFormat, _ := cmd.Flags().GetString("report")
	switch reportFormat {
	case batch.FormatText, batch.FormatJSON, batch.FormatCSV:
	default:
		return fmt.Errorf("invalid report format: %s (must be one of: %s, %s, %s)",
			reportFormat, batch.FormatText, batch.FormatJSON, batch.FormatCSV)
	}
	imageFormat, _ := cmd.Flags().GetString("image-format")
	format, err := export.ParseFormat(imageFormat)
	if err != nil {
		return err
	}

	sc, err := cfg.ToSessionConfig()
	if err != nil {
		return err
	}
	col, err := rectify.ParseOverlayColor(cfg.Export.OverlayColor)
	if err != nil {
		return err
	}
	det, err := newDetector(cfg)
	if err != nil {
		return err
	}

	bc := batch.DefaultConfig()
	bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.Workers, _ = cmd.Flags().GetInt("workers")
	bc.OutputDir, _ = cmd.Flags().GetString("output-dir")
	bc.OverlayDir, _ = cmd.Flags().GetString("overlay-dir")
	bc.Format = format
	bc.Export = cfg.ToExportOptions()
	bc.OverlayColor = col
	bc.Session = sc
	bc.Constraints = cfg.ToImageConstraints()
	bc.Progress = batch.NewLogProgress(slog.Default(), slog.LevelInfo)

	res, err := batch.Run(cmd.Context(), det, args, bc)
	if err != nil {
		return err
	}

	var report bytes.Buffer
	if err := res.WriteReport(&report, reportFormat); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if reportFile, _ := cmd.Flags().GetString("report-file"); reportFile != "" {
		if err := os.WriteFile(reportFile, report.Bytes(), 0o600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Report written to %s\n", reportFile)
	} else if _, err := out.Write(report.Bytes()); err != nil {
		return err
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		if err := res.WriteStats(out); err != nil {
			return err
		}
	}

	if s := res.Stats(); s.Processed == 0 {
		return fmt.Errorf("none of %d image(s) could be corrected", s.Total)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "only process files matching these patterns (e.g. '*.jpg')")
	batchCmd.Flags().StringSlice("exclude", nil, "skip files matching these patterns")
	batchCmd.Flags().Int("workers", 0, "images corrected in parallel (0 = number of CPUs)")
	batchCmd.Flags().String("output-dir", "", "directory for corrected images (default: next to each input)")
	batchCmd.Flags().String("image-format", string(export.PNG), "format of the corrected images (png, jpeg)")
	batchCmd.Flags().String("overlay-dir", "", "directory to write images with the corners drawn")
	batchCmd.Flags().String("report", batch.FormatText, "report format (text, json, csv)")
	batchCmd.Flags().String("report-file", "", "write the report to a file instead of stdout")
	batchCmd.Flags().Bool("stats", false, "print processing statistics")
}
