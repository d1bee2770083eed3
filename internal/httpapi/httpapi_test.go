package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"jobbot-engine/internal/config"
	"jobbot-engine/internal/cycle"
	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/events"
	"jobbot-engine/internal/store"
)

type fakeRunner struct {
	mu       sync.Mutex
	triggers int
	last     *domain.CycleResult
}

func (f *fakeRunner) Trigger() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return f.triggers == 1
}
func (f *fakeRunner) Pending() bool      { return false }
func (f *fakeRunner) State() cycle.State { return cycle.Fetching }
func (f *fakeRunner) LastResult() (domain.CycleResult, bool) {
	if f.last == nil {
		return domain.CycleResult{}, false
	}
	return *f.last, true
}

type fakeLedger struct {
	raw []byte
	err error
}

func (f fakeLedger) Raw(context.Context) ([]byte, error) { return f.raw, f.err }

type fakeResumes struct {
	path string
	err  error
	urls []string
}

func (f *fakeResumes) Download(_ context.Context, u string) (string, error) {
	f.urls = append(f.urls, u)
	return f.path, f.err
}

type fakeHistory struct{}

func (fakeHistory) ListCycles(context.Context, int) ([]domain.CycleResult, error) {
	return []domain.CycleResult{{ID: "c1", Attempted: 2}}, nil
}
func (fakeHistory) ListAttempts(_ context.Context, id string) ([]store.Attempt, error) {
	return []store.Attempt{{CycleID: id, Identity: "https://a.com/1", Outcome: "attempted"}}, nil
}

type fixture struct {
	runner  *fakeRunner
	cycles  *config.CycleStore
	resumes *fakeResumes
	handler http.Handler
}

func newFixture(t *testing.T, led LedgerReader) *fixture {
	t.Helper()
	f := &fixture{
		runner:  &fakeRunner{},
		cycles:  config.NewCycleStore(filepath.Join(t.TempDir(), "config.json")),
		resumes: &fakeResumes{path: "resumes/resume_x.pdf"},
	}
	mux := NewMux(Deps{
		Hub:     events.NewHub(),
		Runner:  f.runner,
		Cycles:  f.cycles,
		Ledger:  led,
		History: fakeHistory{},
		Resumes: f.resumes,
	})
	f.handler = Chain(mux, RequestID, Recover)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// TestWebhook_TallyAnswers verifies form answers become the stored snapshot and a cycle is queued.
func TestWebhook_TallyAnswers(t *testing.T) {
	f := newFixture(t, fakeLedger{})
	body := `{"answers":[
		{"key":"keywords","value":"Python, Django"},
		{"key":"email","value":"ada@example.com"},
		{"key":"location","value":"Remote"},
		{"key":"job_type","value":"Full-time"},
		{"key":"max_results","value":"10"}
	],"resume_url":"https://files.example.com/cv.pdf"}`

	rec := f.do(http.MethodPost, "/webhook", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if f.runner.triggers != 1 {
		t.Fatalf("triggers = %d", f.runner.triggers)
	}

	cfg, err := f.cycles.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !reflect.DeepEqual([]string(cfg.Keywords), []string{"python", "django"}) || cfg.MaxResults != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.UserData.Email != "ada@example.com" || cfg.UserData.JobType != "Full-time" {
		t.Fatalf("user = %+v", cfg.UserData)
	}
	if cfg.ResumePath != "resumes/resume_x.pdf" || len(f.resumes.urls) != 1 {
		t.Fatalf("resume = %q urls = %v", cfg.ResumePath, f.resumes.urls)
	}
	if _, err := time.Parse(time.RFC3339, cfg.Timestamp); err != nil {
		t.Fatalf("timestamp = %q", cfg.Timestamp)
	}
}

// TestWebhook_PlainDocumentMerges verifies absent fields keep their stored values.
func TestWebhook_PlainDocumentMerges(t *testing.T) {
	f := newFixture(t, fakeLedger{})
	if rec := f.do(http.MethodPost, "/webhook", `{"keywords":["Go"],"user_data":{"email":"a@b.c","phone":"1"}}`); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/webhook", `{"max_results":0,"user_data":{"phone":"2"}}`); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}

	cfg, _ := f.cycles.Current()
	if len(cfg.Keywords) != 1 || cfg.Keywords[0] != "go" {
		t.Fatalf("keywords = %v", cfg.Keywords)
	}
	if cfg.MaxResults != 50 {
		t.Fatalf("max_results = %d, want default 50", cfg.MaxResults)
	}
	if cfg.UserData.Email != "a@b.c" || cfg.UserData.Phone != "2" {
		t.Fatalf("user = %+v", cfg.UserData)
	}
	if cfg.ResumePath != "resume.pdf" {
		t.Fatalf("resume = %q", cfg.ResumePath)
	}
}

// TestWebhook_ResumeFailureKeepsPath verifies a failed download does not reject the update.
func TestWebhook_ResumeFailureKeepsPath(t *testing.T) {
	f := newFixture(t, fakeLedger{})
	f.resumes.err = errors.New("timeout")
	rec := f.do(http.MethodPost, "/webhook", `{"keywords":"go","resume_url":"https://x/cv.pdf"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	cfg, _ := f.cycles.Current()
	if cfg.ResumePath != "resume.pdf" {
		t.Fatalf("resume = %q", cfg.ResumePath)
	}
}

// TestWebhook_InvalidJSON verifies the error envelope.
func TestWebhook_InvalidJSON(t *testing.T) {
	f := newFixture(t, fakeLedger{})
	rec := f.do(http.MethodPost, "/webhook", `{"keywords":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var e APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Error.Code != "invalid_json" || e.Error.RequestID == "" {
		t.Fatalf("error = %+v", e.Error)
	}
	if f.runner.triggers != 0 {
		t.Fatal("invalid payload must not trigger a cycle")
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, fakeLedger{})
	rec := f.do(http.MethodGet, "/webhook", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "POST" {
		t.Fatalf("status = %d allow = %q", rec.Code, rec.Header().Get("Allow"))
	}
}

func TestLog_ViewAndDownload(t *testing.T) {
	csv := "timestamp,title,company,url\n2024-01-01T00:00:00Z,<Go>,Acme,https://a.com/1\n"
	f := newFixture(t, fakeLedger{raw: []byte(csv)})

	rec := f.do(http.MethodGet, "/log", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "&lt;Go&gt;") {
		t.Fatalf("view = %d %q", rec.Code, rec.Body)
	}

	rec = f.do(http.MethodGet, "/download-log", "")
	if rec.Code != http.StatusOK || rec.Body.String() != csv {
		t.Fatalf("download = %d %q", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "applied_jobs.csv") {
		t.Fatalf("disposition = %q", cd)
	}
}

func TestLog_Missing(t *testing.T) {
	f := newFixture(t, fakeLedger{err: fs.ErrNotExist})
	if rec := f.do(http.MethodGet, "/download-log", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatusAndHistory(t *testing.T) {
	f := newFixture(t, fakeLedger{})
	f.runner.last = &domain.CycleResult{ID: "c9", Skipped: 4}

	var st Status
	rec := f.do(http.MethodGet, "/status", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != "fetching" || st.Last == nil || st.Last.ID != "c9" {
		t.Fatalf("status = %+v", st)
	}

	if rec := f.do(http.MethodGet, "/cycles", ""); !strings.Contains(rec.Body.String(), `"id":"c1"`) {
		t.Fatalf("cycles = %s", rec.Body)
	}
	if rec := f.do(http.MethodGet, "/cycles/c1/attempts", ""); !strings.Contains(rec.Body.String(), `"cycle_id":"c1"`) {
		t.Fatalf("attempts = %s", rec.Body)
	}
	if rec := f.do(http.MethodGet, "/cycles/c1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("bad path status = %d", rec.Code)
	}

	if rec := f.do(http.MethodPost, "/run", ""); rec.Code != http.StatusAccepted || f.runner.triggers != 1 {
		t.Fatalf("run = %d triggers = %d", rec.Code, f.runner.triggers)
	}
}
