package support

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/MeKo-Tech/docscan/internal/server"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// startTestHTTPServer serves the API from the default configuration, with
// mutate applied to the server settings first.
func (testCtx *TestContext) startTestHTTPServer(mutate func(*server.Config)) error {
	if testCtx.HTTPTestServer != nil {
		testCtx.stopTestHTTPServer()
	}

	defaults := config.DefaultConfig()
	cfg, err := defaults.ToServerConfig()
	if err != nil {
		return fmt.Errorf("failed to build server config: %w", err)
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() {
	testCtx.HTTPTestServer.Server.Close()
	_ = testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
}

// get issues a GET request against the test server.
func (testCtx *TestContext) get(path string) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("test server is not running")
	}
	resp, err := http.Get(testCtx.HTTPTestServer.Server.URL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

// upload posts file as the multipart field next to the extra form fields.
func (testCtx *TestContext) upload(path, field, file string, fields map[string]string) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("test server is not running")
	}
	data, err := os.ReadFile(testCtx.Path(file))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, filepath.Base(file))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPTestServer.Server.URL+path, mw.FormDataContentType(), body)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPBody = body
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}
