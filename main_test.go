package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/config"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Blob.Backend = "memory"
	cfg.Documents.Backend = "memory"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}
	return cfg
}

func TestNewApp(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to build app: %v", err)
	}
	defer a.backends.Close()
	h := a.server.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	if !strings.Contains(rec.Body.String(), "User-agent") {
		t.Errorf("Expected robots.txt, got %q", rec.Body.String())
	}
}

func TestCreateThroughEmbeddedAssets(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to build app: %v", err)
	}
	defer a.backends.Close()
	h := a.server.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/create", nil))
	m := regexp.MustCompile(`name="session-id" value="([^"]+)"`).FindStringSubmatch(rec.Body.String())
	if m == nil {
		t.Fatal("Expected a session id in the create page")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("session-id", m[1])
	mw.WriteField("title", "Race Day")
	mw.WriteField("body", "Report")
	part, _ := mw.CreateFormFile("image", "race.jpg")
	part.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0})
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/create", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blobs/race.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected the memory blob to be served, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "Race Day") {
		t.Error("Expected the new post in the listing")
	}
}
