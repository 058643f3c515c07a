package imageserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"

	"github.com/nimbic-io/otahub/pkg/options"
)

func newTestHandler(t *testing.T) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()

	updateDir := filepath.Join(dir, "1.0.1-0-67396539")
	if err := os.MkdirAll(updateDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(updateDir, "primary-1.0.1-0-67396539.bin"), []byte("firmware"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opts := options.NewOtaOptions()
	opts.ImagePath = dir

	s := New(opts, logr.Discard())
	return s.server.Handler, dir
}

func TestServesExistingImage(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/images/1.0.1-0-67396539/primary-1.0.1-0-67396539.bin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "firmware" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "firmware")
	}
}

func TestMissingImageReturns404(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/images/does-not-exist/file.bin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDirectoryListingRejected(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/images/1.0.1-0-67396539/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for directory listing attempt", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
