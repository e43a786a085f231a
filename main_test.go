package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/catalog"
	"github.com/PhuocnhQn/photo-frame-editor/config"
	"github.com/PhuocnhQn/photo-frame-editor/handlers/auth"
	"github.com/PhuocnhQn/photo-frame-editor/sessions"
	"github.com/PhuocnhQn/photo-frame-editor/stores/memory"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		CanvasWidth:    800,
		CanvasHeight:   600,
		JPEGQuality:    92,
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: 1 << 20,
	}
	cat := catalog.New(memory.NewAssetStore())
	manager := sessions.NewManager(sessions.Options{Frames: cat})
	return setupRouter(cfg, cat, manager)
}

func TestSetupRouter_Routes(t *testing.T) {
	r := testRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/frames", http.StatusOK},
		{http.MethodGet, "/frames/missing.png", http.StatusNotFound},
		{http.MethodGet, "/uploads/missing.png", http.StatusNotFound},
		{http.MethodDelete, "/delete-frame/missing.png", http.StatusNotFound},
		{http.MethodPost, "/api/sessions", http.StatusCreated},
		{http.MethodGet, "/api/sessions/unknown", http.StatusNotFound},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSetupRouter_CatalogAdminRequiresToken(t *testing.T) {
	auth.Init("router-test-secret")
	defer auth.Init("")

	r := testRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/delete-frame/a.png", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	token, err := auth.IssueToken("admin", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodDelete, "/delete-frame/a.png", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("with token: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	// Reads stay open.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frames", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /frames: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSetupRouter_MetricsCountRequests(t *testing.T) {
	r := testRouter(t)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/frames", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "photo_frame_http_requests_total") {
		t.Errorf("metrics output lacks request counter")
	}
}
