package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"jobbot-engine/internal/domain"
)

// fakeSource returns fixed records or an error and counts invocations.
type fakeSource struct {
	name  string
	jobs  []domain.JobRecord
	err   error
	panic bool
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(ctx context.Context, keywords []string, maxResults int) ([]domain.JobRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panic {
		panic("selector exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.jobs, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func job(id, title string) domain.JobRecord {
	return domain.JobRecord{URL: "https://jobs.example.com/" + id, Title: title, Company: "Acme"}
}

func identities(jobs []domain.JobRecord) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.Identity
	}
	return out
}

func assertIDs(t *testing.T, got []domain.JobRecord, want ...string) {
	t.Helper()
	ids := identities(got)
	if len(ids) != len(want) {
		t.Fatalf("got %d jobs %v, want %d %v", len(ids), ids, len(want), want)
	}
	for i := range want {
		w := "https://jobs.example.com/" + want[i]
		if ids[i] != w {
			t.Fatalf("job[%d] = %q, want %q (all: %v)", i, ids[i], w, ids)
		}
	}
}

// TestFetchAll_DedupFirstSeenWins verifies two sources returning the same
// identity with different title casing keep exactly the first-seen record.
func TestFetchAll_DedupFirstSeenWins(t *testing.T) {
	a := &fakeSource{name: "a", jobs: []domain.JobRecord{job("u1", "Python Dev"), job("u2", "Go Dev")}}
	b := &fakeSource{name: "b", jobs: []domain.JobRecord{job("u1", "PYTHON DEV"), job("u3", "Rust Dev")}}

	agg := &Aggregator{Sources: []Source{a, b}}
	got := agg.FetchAll(context.Background(), nil, 50)

	assertIDs(t, got, "u1", "u2", "u3")
	if got[0].Title != "Python Dev" {
		t.Errorf("expected first-seen title, got %q", got[0].Title)
	}
	if got[0].Source != "a" {
		t.Errorf("expected source a, got %q", got[0].Source)
	}
}

func TestFetchAll_CapEnforced(t *testing.T) {
	var jobs []domain.JobRecord
	for i := 0; i < 10; i++ {
		jobs = append(jobs, job(fmt.Sprintf("j%d", i), "Dev"))
	}
	a := &fakeSource{name: "a", jobs: jobs[:6]}
	b := &fakeSource{name: "b", jobs: jobs[6:]}
	c := &fakeSource{name: "c", jobs: []domain.JobRecord{job("late", "Dev")}}

	agg := &Aggregator{Sources: []Source{a, b, c}}
	got := agg.FetchAll(context.Background(), nil, 7)

	assertIDs(t, got, "j0", "j1", "j2", "j3", "j4", "j5", "j6")
	if c.callCount() != 0 {
		t.Errorf("source after the cap was reached should not be invoked, calls=%d", c.callCount())
	}
}

// TestFetchAll_PartialFailure verifies a failing source does not abort the others.
func TestFetchAll_PartialFailure(t *testing.T) {
	a := &fakeSource{name: "a", err: errors.New("connection reset")}
	b := &fakeSource{name: "b", jobs: []domain.JobRecord{job("b1", "x"), job("b2", "y"), job("b3", "z")}}

	agg := &Aggregator{Sources: []Source{a, b}}
	got := agg.FetchAll(context.Background(), nil, 50)

	assertIDs(t, got, "b1", "b2", "b3")
}

func TestFetchAll_PanickingSourceIsContained(t *testing.T) {
	a := &fakeSource{name: "a", panic: true}
	b := &fakeSource{name: "b", jobs: []domain.JobRecord{job("b1", "x")}}

	agg := &Aggregator{Sources: []Source{a, b}}
	got := agg.FetchAll(context.Background(), nil, 50)

	assertIDs(t, got, "b1")
}

// TestFetchAll_KeywordScenario: keywords={python}, max=2, A=[u1 Python Dev, u2 Java Dev],
// B=[u3 Senior Python]. Filtering happens in the aggregator before the cap, so the
// result is [u1, u3] in source order.
func TestFetchAll_KeywordScenario(t *testing.T) {
	a := &fakeSource{name: "a", jobs: []domain.JobRecord{job("u1", "Python Dev"), job("u2", "Java Dev")}}
	b := &fakeSource{name: "b", jobs: []domain.JobRecord{job("u3", "Senior Python")}}

	agg := &Aggregator{Sources: []Source{a, b}}
	got := agg.FetchAll(context.Background(), []string{"python"}, 2)

	assertIDs(t, got, "u1", "u3")
}

func TestFetchAll_ZeroMaxInvokesNothing(t *testing.T) {
	a := &fakeSource{name: "a", jobs: []domain.JobRecord{job("u1", "x")}}

	agg := &Aggregator{Sources: []Source{a}}
	got := agg.FetchAll(context.Background(), nil, 0)

	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
	if a.callCount() != 0 {
		t.Errorf("source invoked %d times", a.callCount())
	}
}

func TestFetchAll_NoResultsIsValid(t *testing.T) {
	a := &fakeSource{name: "a"}
	b := &fakeSource{name: "b", err: errors.New("403")}

	agg := &Aggregator{Sources: []Source{a, b}}
	if got := agg.FetchAll(context.Background(), nil, 10); len(got) != 0 {
		t.Fatalf("expected no jobs, got %v", identities(got))
	}
}

func TestFetchAll_DropsRecordsWithoutURL(t *testing.T) {
	a := &fakeSource{name: "a", jobs: []domain.JobRecord{
		{Title: "no url"},
		{URL: "/relative/only", Title: "relative"},
		job("ok", ""),
	}}

	agg := &Aggregator{Sources: []Source{a}}
	got := agg.FetchAll(context.Background(), nil, 10)

	assertIDs(t, got, "ok")
	if got[0].Title != domain.PlaceholderTitle {
		t.Errorf("expected placeholder title, got %q", got[0].Title)
	}
}

// TestFetchAll_ParallelKeepsSourceOrder verifies that concurrent fetching still
// commits in configured order even when the first source finishes last.
func TestFetchAll_ParallelKeepsSourceOrder(t *testing.T) {
	a := &fakeSource{name: "a", delay: 50 * time.Millisecond, jobs: []domain.JobRecord{job("shared", "from a"), job("a1", "x")}}
	b := &fakeSource{name: "b", jobs: []domain.JobRecord{job("shared", "from b"), job("b1", "y")}}

	agg := &Aggregator{Sources: []Source{a, b}, Parallel: true, MaxParallel: 2}
	got := agg.FetchAll(context.Background(), nil, 10)

	assertIDs(t, got, "shared", "a1", "b1")
	if got[0].Title != "from a" {
		t.Errorf("expected record from the first source, got %q", got[0].Title)
	}
}

func TestFetchAll_DelayBetweenSources(t *testing.T) {
	a := &fakeSource{name: "a", jobs: []domain.JobRecord{job("a1", "x")}}
	b := &fakeSource{name: "b", jobs: []domain.JobRecord{job("b1", "y")}}

	agg := &Aggregator{Sources: []Source{a, b}, Delay: 80 * time.Millisecond}
	start := time.Now()
	agg.FetchAll(context.Background(), nil, 10)

	if el := time.Since(start); el < 70*time.Millisecond {
		t.Errorf("expected a polite delay between sources, took %v", el)
	}
}

// TestFetchAll_DelayFollowsSlowSource verifies the delay is measured from the
// end of the previous source, not its start.
func TestFetchAll_DelayFollowsSlowSource(t *testing.T) {
	var mu sync.Mutex
	var aEnd, bStart time.Time

	a := &timedSource{name: "a", sleep: 150 * time.Millisecond, after: func() {
		mu.Lock()
		aEnd = time.Now()
		mu.Unlock()
	}}
	b := &timedSource{name: "b", before: func() {
		mu.Lock()
		bStart = time.Now()
		mu.Unlock()
	}}

	agg := &Aggregator{Sources: []Source{a, b}, Delay: 100 * time.Millisecond}
	agg.FetchAll(context.Background(), nil, 10)

	mu.Lock()
	defer mu.Unlock()
	if bStart.IsZero() {
		t.Fatal("second source never ran")
	}
	if gap := bStart.Sub(aEnd); gap < 90*time.Millisecond {
		t.Errorf("gap between sources = %v, want >= 100ms", gap)
	}
}

// timedSource sleeps inside Fetch and reports when it starts and ends.
type timedSource struct {
	name   string
	sleep  time.Duration
	before func()
	after  func()
}

func (s *timedSource) Name() string { return s.name }

func (s *timedSource) Fetch(ctx context.Context, _ []string, _ int) ([]domain.JobRecord, error) {
	if s.before != nil {
		s.before()
	}
	time.Sleep(s.sleep)
	if s.after != nil {
		s.after()
	}
	return []domain.JobRecord{job(s.name+"1", "x")}, nil
}

func TestFetchAll_CanceledContextStopsBetweenSources(t *testing.T) {
	a := &fakeSource{name: "a", jobs: []domain.JobRecord{job("a1", "x")}}
	b := &fakeSource{name: "b", jobs: []domain.JobRecord{job("b1", "y")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := &Aggregator{Sources: []Source{a, b}, Delay: time.Hour}
	got := agg.FetchAll(ctx, nil, 10)

	if b.callCount() != 0 {
		t.Errorf("second source should not run after cancel")
	}
	if len(got) > 1 {
		t.Errorf("unexpected jobs %v", identities(got))
	}
}
