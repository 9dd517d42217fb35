package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file.pdf>",
	Short: "Correct every page of a scanned PDF",
	Long: `Extract the page images of a PDF, correct each page with automatically
placed corners and assemble the corrected pages into a new PDF.

Pages whose corners cannot be warped are kept unchanged and reported.

Examples:
  docscan scan contract.pdf
  docscan scan contract.pdf --pages 1-3,5 -o contract-clean.pdf
  docscan scan locked.pdf --password secret --report`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	path := args[0]

	if !utils.IsPDF(path) {
		return fmt.Errorf("not a PDF file: %s", path)
	}
	extracted, err := pdf.Extract(path, cfg.ToPDFOptions())
	if err != nil {
		return err
	}
	constraints := cfg.ToImageConstraints()
	pages := make([]image.Image, len(extracted))
	for i, p := range extracted {
		pages[i] = utils.FitImage(p.Image, constraints)
	}

	det, err := newDetector(cfg)
	if err != nil {
		return err
	}
	sc, err := cfg.ToSessionConfig()
	if err != nil {
		return err
	}
	doc, err := session.NewDocument(filepath.Base(path), pages, det, sc)
	if err != nil {
		return err
	}
	reports, err := doc.AutoScan(cmd.Context())
	if err != nil {
		return err
	}

	dest, _ := cmd.Flags().GetString("output")
	if dest == "" {
		name, err := export.DocumentFilename(path)
		if err != nil {
			return err
		}
		dest = filepath.Join(filepath.Dir(path), name)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if err := export.WritePDF(f, doc.Pages()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	out := cmd.OutOrStdout()
	if report, _ := cmd.Flags().GetBool("report"); report {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Output string               `json:"output"`
			Pages  []session.PageReport `json:"pages"`
		}{dest, reports})
	}
	for _, r := range reports {
		if r.Error != "" {
			_, _ = fmt.Fprintf(out, "page %d: kept (%s)\n", r.Page, r.Error)
			continue
		}
		_, _ = fmt.Fprintf(out, "page %d: %s corners -> %dx%d\n", r.Page, r.Origin, r.Width, r.Height)
	}
	_, err = fmt.Fprintf(out, "Wrote %d page(s) to %s\n", len(reports), dest)
	return err
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "output PDF (default: <name>-edited.pdf next to the input)")
	scanCmd.Flags().String("pages", "", "page range to process (e.g., '1-5', '1,3,5')")
	scanCmd.Flags().String("password", "", "password of an encrypted PDF")
	scanCmd.Flags().Bool("report", false, "print a JSON report of every page")

	bindFlags(scanCmd, map[string]string{
		"pdf.pages":    "pages",
		"pdf.password": "password",
	})
}
