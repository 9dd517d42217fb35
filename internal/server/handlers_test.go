package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/transform"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// detectBody mirrors DetectResponse with the enum fields as strings.
type detectBody struct {
	Success  bool                  `json:"success"`
	Name     string                `json:"name"`
	Origin   string                `json:"origin"`
	Corners  geometry.DisplayQuad  `json:"corners"`
	Original geometry.OriginalQuad `json:"original"`
	Display  transform.Display     `json:"display"`
	Rotation int                   `json:"rotation"`
	Plan     PlanResponse          `json:"plan"`
}

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.healthHandler(w, httptest.NewRequest(tt.method, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.NotEmpty(t, response.Time)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestNewServerWithDetector_Errors(t *testing.T) {
	_, err := NewServerWithDetector(testConfig(), nil)
	require.Error(t, err)

	cfg := testConfig()
	cfg.OverlayColor = "not-a-colour"
	_, err = NewServerWithDetector(cfg, &stubDetector{})
	require.Error(t, err)
}

func TestDetectHandler_ScalesDetectedCorners(t *testing.T) {
	server := newTestServer(t, nil)
	req := multipartRequest(t, "/api/v1/detect", "image", "page.png",
		testutil.EncodePNG(t, testutil.Gradient(200, 100)),
		map[string]string{"viewport_width": "100", "viewport_height": "100"})
	w := httptest.NewRecorder()

	server.detectHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body detectBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "page", body.Name)
	assert.Equal(t, "auto", body.Origin)
	assert.InDelta(t, 0.5, body.Display.Scale, 1e-9)
	assert.Equal(t, geometry.DisplayQuad{{X: 10, Y: 5}, {X: 90, Y: 5}, {X: 90, Y: 45}, {X: 10, Y: 45}}, body.Corners)
	assert.Equal(t, geometry.OriginalQuad(geometry.Retag[geometry.OriginalPoint](pageQuad)), body.Original)
	assert.Equal(t, PlanResponse{Width: 160, Height: 80}, body.Plan)
}

func TestDetectHandler_RotatedFallsBackToManual(t *testing.T) {
	server := newTestServer(t, nil)
	req := multipartRequest(t, "/api/v1/detect", "image", "page.png",
		testutil.EncodePNG(t, testutil.Gradient(200, 100)),
		map[string]string{"rotation": "90"})
	w := httptest.NewRecorder()

	server.detectHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body detectBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "manual", body.Origin)
	assert.Equal(t, 90, body.Rotation)
	assert.InDelta(t, 100, body.Display.Width, 1e-9)
	assert.InDelta(t, 200, body.Display.Height, 1e-9)
	assert.Equal(t, geometry.OriginalQuad{{X: 10, Y: 90}, {X: 10, Y: 10}, {X: 190, Y: 10}, {X: 190, Y: 90}}, body.Original)
	assert.Equal(t, PlanResponse{Width: 80, Height: 180}, body.Plan)
}

func TestDetectHandler_BadRequests(t *testing.T) {
	server := newTestServer(t, nil)
	pngData := testutil.EncodePNG(t, testutil.Gradient(200, 100))

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"wrong method", httptest.NewRequest(http.MethodGet, "/api/v1/detect", nil), http.StatusMethodNotAllowed},
		{"no multipart body", httptest.NewRequest(http.MethodPost, "/api/v1/detect", strings.NewReader("x")), http.StatusBadRequest},
		{"missing image", multipartRequest(t, "/api/v1/detect", "", "", nil, map[string]string{"rotation": "0"}), http.StatusBadRequest},
		{"not an image", multipartRequest(t, "/api/v1/detect", "image", "a.png", []byte("hello"), nil), http.StatusBadRequest},
		{"bad rotation", multipartRequest(t, "/api/v1/detect", "image", "a.png", pngData, map[string]string{"rotation": "45"}), http.StatusBadRequest},
		{"rotation not a number", multipartRequest(t, "/api/v1/detect", "image", "a.png", pngData, map[string]string{"rotation": "x"}), http.StatusBadRequest},
		{"bad viewport", multipartRequest(t, "/api/v1/detect", "image", "a.png", pngData, map[string]string{"viewport_width": "wide"}), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.detectHandler(w, tt.req)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusMethodNotAllowed {
				return
			}
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func warp(t *testing.T, server *Server, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := multipartRequest(t, "/api/v1/warp", "image", "page.png",
		testutil.EncodePNG(t, testutil.Gradient(200, 100)), fields)
	w := httptest.NewRecorder()
	server.warpHandler(w, req)
	return w
}

func decodedSize(t *testing.T, w *httptest.ResponseRecorder) image.Point {
	t.Helper()
	var img image.Image
	var err error
	switch w.Header().Get("Content-Type") {
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	default:
		img, err = png.Decode(bytes.NewReader(w.Body.Bytes()))
	}
	require.NoError(t, err)
	return img.Bounds().Size()
}

func TestWarpHandler(t *testing.T) {
	tests := []struct {
		name        string
		fields      map[string]string
		contentType string
		filename    string
		size        image.Point
	}{
		{
			name:        "detected corners",
			fields:      nil,
			contentType: "image/png",
			filename:    "page-corrected.png",
			size:        image.Pt(160, 80),
		},
		{
			name:        "original space corners",
			fields:      map[string]string{"corners": "30,20;130,20;130,70;30,70"},
			contentType: "image/png",
			filename:    "page-corrected.png",
			size:        image.Pt(100, 50),
		},
		{
			name:        "display space corners",
			fields:      map[string]string{"corners": "[[10,5],[90,5],[90,45],[10,45]]", "space": "display", "viewport_width": "100", "viewport_height": "100"},
			contentType: "image/png",
			filename:    "page-corrected.png",
			size:        image.Pt(160, 80),
		},
		{
			name:        "rotated result as jpeg",
			fields:      map[string]string{"rotate_result": "1", "format": "jpg"},
			contentType: "image/jpeg",
			filename:    "page-corrected.jpg",
			size:        image.Pt(80, 160),
		},
		{
			name:        "comparison",
			fields:      map[string]string{"output": "comparison"},
			contentType: "image/png",
			filename:    "page-corrected.png",
			size:        image.Pt(370, 100),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := warp(t, newTestServer(t, nil), tt.fields)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.Equal(t, fmt.Sprintf("attachment; filename=%q", tt.filename), w.Header().Get("Content-Disposition"))
			assert.Equal(t, "auto", w.Header().Get("X-Corner-Origin"))
			assert.Equal(t, tt.size, decodedSize(t, w))
		})
	}
}

func TestWarpHandler_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		status int
	}{
		{"degenerate corners", map[string]string{"corners": "10,10;50,10;90,10;10,10"}, http.StatusUnprocessableEntity},
		{"corner syntax", map[string]string{"corners": "10,10;50,10"}, http.StatusBadRequest},
		{"unknown space", map[string]string{"corners": "30,20;130,20;130,70;30,70", "space": "screen"}, http.StatusBadRequest},
		{"unknown format", map[string]string{"format": "gif"}, http.StatusBadRequest},
		{"rotate_result out of range", map[string]string{"rotate_result": "4"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := warp(t, newTestServer(t, nil), tt.fields)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"request error", badRequest("x", nil), http.StatusBadRequest},
		{"invalid geometry", &session.InvalidGeometryError{Err: geometry.ErrDegenerateQuad}, http.StatusUnprocessableEntity},
		{"image error", &utils.ImageProcessingError{Operation: "decode", Err: errors.New("bad")}, http.StatusBadRequest},
		{"no pdf images", fmt.Errorf("extract: %w", pdf.ErrNoImages), http.StatusUnprocessableEntity},
		{"format", export.ErrUnsupportedFormat, http.StatusBadRequest},
		{"rotation", transform.ErrInvalidRotation, http.StatusBadRequest},
		{"no image", session.ErrNoImage, http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestScanHandler(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a PDF with pdfcpu")
	}
	var doc bytes.Buffer
	require.NoError(t, export.WritePDF(&doc, []image.Image{testutil.Gradient(200, 100), testutil.Gradient(120, 160)}))

	t.Run("json report", func(t *testing.T) {
		server := newTestServer(t, &stubDetector{})
		req := multipartRequest(t, "/api/v1/scan", "pdf", "Relatório.pdf", doc.Bytes(), map[string]string{"output": "json"})
		w := httptest.NewRecorder()

		server.scanHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body struct {
			Success  bool   `json:"success"`
			Filename string `json:"filename"`
			Pages    []struct {
				Page   int    `json:"page"`
				Origin string `json:"origin"`
				Error  string `json:"error"`
			} `json:"pages"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "Relatorio-edited.pdf", body.Filename)
		require.Len(t, body.Pages, 2)
		for i, p := range body.Pages {
			assert.Equal(t, i+1, p.Page)
			assert.Equal(t, "manual", p.Origin)
			assert.Empty(t, p.Error)
		}
	})

	t.Run("pdf output", func(t *testing.T) {
		server := newTestServer(t, &stubDetector{})
		req := multipartRequest(t, "/api/v1/scan", "pdf", "scan.pdf", doc.Bytes(), nil)
		w := httptest.NewRecorder()

		server.scanHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, "2", w.Header().Get("X-Page-Count"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("not a pdf", func(t *testing.T) {
		server := newTestServer(t, &stubDetector{})
		req := multipartRequest(t, "/api/v1/scan", "pdf", "scan.pdf", []byte("not a pdf"), nil)
		w := httptest.NewRecorder()

		server.scanHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
