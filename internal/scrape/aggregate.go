package scrape

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/metrics"
	"jobbot-engine/internal/scrape/types"
	"jobbot-engine/internal/scrape/util"
)

// Source is re-exported so callers can build an Aggregator without importing types.
type Source = types.Source

// Aggregator merges N independent sources into one deduplicated, capped list.
// Source order is the configured priority: on equal identity the record from
// the earlier source (or earlier in the same source) wins.
type Aggregator struct {
	Sources []types.Source

	// Delay is the polite pause between sequential source invocations.
	Delay time.Duration
	// Timeout bounds a single source invocation. Zero means no extra bound.
	Timeout time.Duration

	// Parallel fetches all sources concurrently and commits results in
	// source order afterwards. MaxParallel <= 0 means unbounded.
	Parallel    bool
	MaxParallel int

	Metrics metrics.Sink
}

// FetchAll never fails: a broken source contributes zero records.
func (a *Aggregator) FetchAll(ctx context.Context, keywords []string, maxResults int) []domain.JobRecord {
	if maxResults <= 0 {
		return []domain.JobRecord{}
	}

	m := newMerger(keywords, maxResults)
	if a.Parallel {
		a.fetchParallel(ctx, keywords, maxResults, m)
	} else {
		a.fetchSequential(ctx, keywords, maxResults, m)
	}

	log.Printf("[scrape] %d unique jobs found (dups=%d filtered=%d)", len(m.out), m.dups, m.filtered)
	return m.out
}

func (a *Aggregator) fetchSequential(ctx context.Context, keywords []string, maxResults int, m *merger) {
	for i, src := range a.Sources {
		if m.full() {
			return
		}
		delay := a.Delay
		if i == 0 {
			delay = 0
		}
		if err := util.Pause(ctx, delay); err != nil {
			log.Printf("[scrape] stopped before %s: %v", src.Name(), err)
			return
		}
		m.commit(src.Name(), a.fetchOne(ctx, src, keywords, maxResults))
	}
}

func (a *Aggregator) fetchParallel(ctx context.Context, keywords []string, maxResults int, m *merger) {
	results := make([][]domain.JobRecord, len(a.Sources))

	var g errgroup.Group
	if a.MaxParallel > 0 {
		g.SetLimit(a.MaxParallel)
	}
	for i, src := range a.Sources {
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, src, keywords, maxResults)
			return nil // best-effort: don't cancel siblings
		})
	}
	_ = g.Wait()

	// commit in configured order so first-seen-wins stays deterministic
	for i, src := range a.Sources {
		if m.full() {
			return
		}
		m.commit(src.Name(), results[i])
	}
}

// fetchOne is the fail-soft boundary around a source: errors and panics
// become an empty result plus a log line.
func (a *Aggregator) fetchOne(ctx context.Context, src types.Source, keywords []string, maxResults int) (out []domain.JobRecord) {
	name := src.Name()
	start := time.Now()

	fctx := ctx
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			out = nil
		}
		if err != nil {
			log.Printf("[scrape:%s] error: %v", name, err)
		} else {
			log.Printf("[scrape:%s] fetched=%d dur_ms=%d", name, len(out), time.Since(start).Milliseconds())
		}
		if a.Metrics != nil {
			a.Metrics.SourceFetched(name, len(out), err)
		}
	}()

	log.Printf("[scrape:%s] Running...", name)
	out, err = src.Fetch(fctx, keywords, maxResults)
	if err != nil {
		out = nil
	}
	return out
}

type merger struct {
	keywords []string
	max      int
	seen     map[string]struct{}
	out      []domain.JobRecord

	dups     int
	filtered int
}

func newMerger(keywords []string, max int) *merger {
	return &merger{
		keywords: keywords,
		max:      max,
		seen:     make(map[string]struct{}),
		out:      make([]domain.JobRecord, 0, max),
	}
}

func (m *merger) full() bool { return len(m.out) >= m.max }

func (m *merger) commit(source string, recs []domain.JobRecord) {
	for _, raw := range recs {
		if m.full() {
			return
		}
		j, ok := Normalize(raw, source, "")
		if !ok {
			continue
		}
		if !MatchesKeywords(j, m.keywords) {
			m.filtered++
			continue
		}
		if _, dup := m.seen[j.Identity]; dup {
			m.dups++
			continue
		}
		m.seen[j.Identity] = struct{}{}
		m.out = append(m.out, j)
	}
}
