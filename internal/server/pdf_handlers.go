package server

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// scanHandler corrects every page of an uploaded PDF with automatically
// placed corners and returns the edited PDF, or a per-page report when
// output=json.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	data, name, err := s.readUpload(w, r, "pdf")
	if err != nil {
		s.fail(w, "scan", err)
		return
	}
	pages, err := s.extractUploadedPDF(data, pdf.Options{
		Pages:    r.FormValue("pages"),
		Password: r.FormValue("password"),
	})
	if err != nil {
		s.fail(w, "scan", err)
		return
	}

	base := baseName(name)
	doc, err := session.NewDocument(base, pages, s.detector, s.sessionCfg)
	if err != nil {
		s.fail(w, "scan", err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	reports, err := doc.AutoScan(ctx)
	if err != nil {
		s.fail(w, "scan", err)
		return
	}
	for _, rep := range reports {
		cornerOrigins.WithLabelValues(rep.Origin.String()).Inc()
	}

	filename, err := export.DocumentFilename(base)
	if err != nil {
		s.fail(w, "scan", err)
		return
	}

	if r.FormValue("output") == "json" {
		apiRequestsTotal.WithLabelValues("scan", "success").Inc()
		apiProcessingDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())
		s.writeJSON(w, http.StatusOK, ScanResponse{Success: true, Filename: filename, Pages: reports})
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, doc.Pages()); err != nil {
		s.fail(w, "scan", err)
		return
	}
	apiRequestsTotal.WithLabelValues("scan", "success").Inc()
	apiProcessingDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", export.PDF.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Page-Count", fmt.Sprint(len(reports)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// extractUploadedPDF stages data in a temporary file, since pdfcpu works on
// paths, and returns the page rasters fitted to the image constraints.
func (s *Server) extractUploadedPDF(data []byte, opts pdf.Options) ([]image.Image, error) {
	tmp, err := os.CreateTemp("", "docscan-upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			slog.Warn("Failed to remove staged upload", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	extracted, err := pdf.Extract(tmp.Name(), opts)
	if err != nil {
		return nil, badRequest("invalid pdf", err)
	}
	pages := make([]image.Image, len(extracted))
	for i, p := range extracted {
		pages[i] = utils.FitImage(p.Image, s.constraints)
	}
	return pages, nil
}
