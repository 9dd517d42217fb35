package server

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// detectHandler places corners on an uploaded image and reports them in
// display and original space.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	sess, _, name, err := s.loadUploadedImage(w, r)
	if err != nil {
		s.fail(w, "detect", err)
		return
	}

	snap := sess.Snapshot()
	orig, err := sess.OriginalPoints()
	if err != nil {
		s.fail(w, "detect", err)
		return
	}
	plan := rectify.PlanWarp(orig)

	cornerOrigins.WithLabelValues(snap.Origin.String()).Inc()
	apiRequestsTotal.WithLabelValues("detect", "success").Inc()
	apiProcessingDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	s.writeJSON(w, http.StatusOK, DetectResponse{
		Success:  true,
		Name:     name,
		Origin:   snap.Origin,
		Corners:  *snap.Points,
		Original: orig,
		Display:  *snap.Display,
		Rotation: snap.Rotation,
		Plan:     &PlanResponse{Width: plan.Width, Height: plan.Height},
	})
}

// warpHandler corrects an uploaded image with the given corners, or the
// detected ones when none are given, and returns the encoded result.
func (s *Server) warpHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	sess, img, name, err := s.loadUploadedImage(w, r)
	if err != nil {
		s.fail(w, "warp", err)
		return
	}

	format, err := export.ParseFormat(formValueOr(r, "format", string(export.PNG)))
	if err != nil {
		s.fail(w, "warp", err)
		return
	}
	turns, err := formInt(r, "rotate_result", 0)
	if err != nil {
		s.fail(w, "warp", err)
		return
	}
	if turns < 0 || turns > 3 {
		s.fail(w, "warp", badRequest(fmt.Sprintf("rotate_result must be between 0 and 3, got %d", turns), nil))
		return
	}

	if corners := r.FormValue("corners"); corners != "" {
		if err := s.applyCorners(sess, corners, formValueOr(r, "space", "original")); err != nil {
			s.fail(w, "warp", err)
			return
		}
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if _, err := sess.Warp(ctx); err != nil {
		s.fail(w, "warp", err)
		return
	}
	for range turns {
		if err := sess.RotateResult(); err != nil {
			s.fail(w, "warp", err)
			return
		}
	}
	out, err := sess.Result()
	if err != nil {
		s.fail(w, "warp", err)
		return
	}

	if r.FormValue("output") == "comparison" {
		orig, err := sess.OriginalPoints()
		if err != nil {
			s.fail(w, "warp", err)
			return
		}
		out = rectify.DrawComparison(img, orig, out, s.overlayColor)
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, out, format, s.exportOpts); err != nil {
		s.fail(w, "warp", err)
		return
	}
	filename, err := export.Filename(baseName(name), 0, format)
	if err != nil {
		s.fail(w, "warp", err)
		return
	}
	_ = sess.MarkExported()

	apiRequestsTotal.WithLabelValues("warp", "success").Inc()
	apiProcessingDuration.WithLabelValues("warp").Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Corner-Origin", sess.Origin().String())
	b := out.Bounds()
	w.Header().Set("X-Image-Size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// loadUploadedImage decodes the "image" upload and loads it into a fresh
// session with the request's rotation and viewport.
func (s *Server) loadUploadedImage(w http.ResponseWriter, r *http.Request) (*session.Session, image.Image, string, error) {
	data, name, err := s.readUpload(w, r, "image")
	if err != nil {
		return nil, nil, "", err
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data), s.constraints)
	if err != nil {
		return nil, nil, "", err
	}
	rot, err := formRotation(r)
	if err != nil {
		return nil, nil, "", err
	}
	cfg, err := s.sessionConfig(r)
	if err != nil {
		return nil, nil, "", err
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	sess := session.New(s.detector, cfg)
	if err := sess.LoadRotated(ctx, img, name, rot); err != nil {
		return nil, nil, "", err
	}
	return sess, img, name, nil
}

// applyCorners replaces the session corners with a user-supplied quad given
// in display or original space.
func (s *Server) applyCorners(sess *session.Session, corners, space string) error {
	q, err := geometry.ParseQuad(corners)
	if err != nil {
		return err
	}
	switch space {
	case "display":
		return sess.SetPoints(geometry.DisplayQuad(geometry.Retag[geometry.DisplayPoint](q)))
	case "original":
		orig := geometry.OriginalQuad(geometry.Retag[geometry.OriginalPoint](q))
		return sess.SetPoints(sess.Display().FromOriginal(orig))
	default:
		return badRequest(fmt.Sprintf("space must be display or original, got %q", space), nil)
	}
}

func formValueOr(r *http.Request, key, def string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}
