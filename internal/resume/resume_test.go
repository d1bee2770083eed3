package resume

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestDownloader(t *testing.T, srv *httptest.Server) *Downloader {
	d := NewDownloader(filepath.Join(t.TempDir(), "resumes"))
	d.Client = srv.Client()
	d.RetryDelay = time.Millisecond
	return d
}

// TestDownload_RetriesThenStoresPDF verifies transient failures are retried and the file is sniffed.
func TestDownload_RetriesThenStoresPDF(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"))
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv)
	path, err := d.Download(context.Background(), srv.URL+"/cv")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d", hits.Load())
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "resume_") || filepath.Ext(base) != ".pdf" || filepath.Dir(path) != d.Dir {
		t.Fatalf("path = %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
}

// TestDownload_RejectsUnsupported verifies non-document payloads are refused.
func TestDownload_RejectsUnsupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	}))
	defer srv.Close()

	_, err := newTestDownloader(t, srv).Download(context.Background(), srv.URL)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v", err)
	}
}

// TestDownload_GivesUpAfterThreeTries verifies the retry bound.
func TestDownload_GivesUpAfterThreeTries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newTestDownloader(t, srv).Download(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestDownload_RejectsBadURL(t *testing.T) {
	if _, err := NewDownloader(t.TempDir()).Download(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatal("expected error")
	}
}
