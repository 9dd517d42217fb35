package server

import (
	"bytes"
	"context"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/session"
)

// stubDetector returns a fixed result.
type stubDetector struct {
	mu    sync.Mutex
	quad  geometry.Quad
	found bool
	calls int
}

func (d *stubDetector) Detect(_ context.Context, _ image.Image) (geometry.Quad, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.quad, d.found
}

// pageQuad is the document outline in a 200x100 test image.
var pageQuad = geometry.Quad{{X: 20, Y: 10}, {X: 180, Y: 10}, {X: 180, Y: 90}, {X: 20, Y: 90}}

func testConfig() Config {
	sc := session.DefaultConfig()
	sc.ViewportWidth, sc.ViewportHeight = 0, 0
	sc.Warp = rectify.Config{Workers: 2}
	return Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  10,
		Session:     sc,
		Export:      export.Options{JPEGQuality: 90},
	}
}

func newTestServer(t *testing.T, det session.Detector) *Server {
	t.Helper()
	if det == nil {
		det = &stubDetector{quad: pageQuad, found: true}
	}
	s, err := NewServerWithDetector(testConfig(), det)
	require.NoError(t, err)
	return s
}

// multipartRequest builds a POST with one file part and plain fields.
func multipartRequest(t *testing.T, target, field, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
