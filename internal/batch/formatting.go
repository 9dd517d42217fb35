package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// Report formats accepted by WriteReport.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Stats summarises a batch run.
type Stats struct {
	Total            int           `json:"total"`
	Processed        int           `json:"processed"`
	Failed           int           `json:"failed"`
	Auto             int           `json:"auto"`
	Manual           int           `json:"manual"`
	Workers          int           `json:"workers"`
	Duration         time.Duration `json:"duration_ns"`
	AveragePerImage  time.Duration `json:"average_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// Stats counts the outcomes of r.
func (r *Result) Stats() Stats {
	s := Stats{Total: len(r.Files), Workers: r.Workers, Duration: r.Duration}
	var busy time.Duration
	for _, f := range r.Files {
		if f.Failed() {
			s.Failed++
			continue
		}
		s.Processed++
		busy += f.Duration
		switch f.Origin {
		case "auto":
			s.Auto++
		case "manual":
			s.Manual++
		}
	}
	if s.Processed > 0 {
		s.AveragePerImage = busy / time.Duration(s.Processed)
	}
	if r.Duration > 0 {
		s.ThroughputPerSec = float64(s.Processed) / r.Duration.Seconds()
	}
	return s
}

// WriteReport writes one entry per file in the given format.
func (r *Result) WriteReport(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		return r.writeJSON(w)
	case FormatCSV:
		return r.writeCSV(w)
	case FormatText, "":
		return r.writeText(w)
	default:
		return fmt.Errorf("invalid report format: %s (must be one of: %s, %s, %s)", format, FormatText, FormatJSON, FormatCSV)
	}
}

func (r *Result) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Files []FileResult `json:"files"`
		Stats Stats        `json:"stats"`
	}{r.Files, r.Stats()})
}

func (r *Result) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "output", "origin", "corners", "width", "height", "error"}); err != nil {
		return err
	}
	for _, f := range r.Files {
		corners := ""
		if f.Corners != nil {
			corners = geometry.FormatQuad(*f.Corners)
		}
		row := []string{f.File, f.Output, f.Origin, corners, strconv.Itoa(f.Width), strconv.Itoa(f.Height), f.Error}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r *Result) writeText(w io.Writer) error {
	for _, f := range r.Files {
		var err error
		if f.Failed() {
			_, err = fmt.Fprintf(w, "%s: error: %s\n", f.File, f.Error)
		} else {
			_, err = fmt.Fprintf(w, "%s: %s corners %s -> %s (%dx%d)\n",
				f.File, f.Origin, geometry.FormatQuad(*f.Corners), f.Output, f.Width, f.Height)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteStats prints the processing statistics.
func (r *Result) WriteStats(w io.Writer) error {
	s := r.Stats()
	_, err := fmt.Fprintf(w, "\nProcessing Statistics:\n"+
		"  Total images: %d\n"+
		"  Processed: %d (auto %d, manual %d)\n"+
		"  Failed: %d\n"+
		"  Workers: %d\n"+
		"  Duration: %v\n"+
		"  Avg per image: %v\n"+
		"  Throughput: %.1f images/sec\n",
		s.Total, s.Processed, s.Auto, s.Manual, s.Failed, s.Workers,
		s.Duration.Round(time.Millisecond), s.AveragePerImage.Round(time.Millisecond), s.ThroughputPerSec)
	return err
}
