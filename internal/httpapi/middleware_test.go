package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobbot-engine/internal/events"
)

// TestRecover_PanicBecomes500 verifies a panicking handler yields the error envelope.
func TestRecover_PanicBecomes500(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID, Recover, AccessLog)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"request_id":"abc"`) {
		t.Fatalf("body = %s", rec.Body)
	}
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("request id header = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestCors_Preflight(t *testing.T) {
	h := Chain(http.NotFoundHandler(), Cors)
	req := httptest.NewRequest(http.MethodOptions, "/webhook", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

// TestEvents_StreamThroughMiddleware verifies SSE frames reach the client
// with the full middleware chain in front of the handler.
func TestEvents_StreamThroughMiddleware(t *testing.T) {
	hub := events.NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", EventsHandler{Hub: hub}.ServeSSE)
	srv := httptest.NewServer(Chain(mux, RequestID, Recover, AccessLog, Cors))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	lines := bufio.NewScanner(resp.Body)
	readData := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "data: ") {
				return l
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	if ping := readData(); !strings.Contains(ping, `"ping"`) {
		t.Fatalf("first frame = %q", ping)
	}
	hub.Emit(events.CycleStarted, map[string]string{"id": "c1"})
	if got := readData(); !strings.Contains(got, events.CycleStarted) || !strings.Contains(got, "c1") {
		t.Fatalf("event frame = %q", got)
	}
}
