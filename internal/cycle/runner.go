// Package cycle drives one application cycle at a time: load the ledger,
// fetch candidates, submit the new ones, log them and report.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"jobbot-engine/internal/apply"
	"jobbot-engine/internal/config"
	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/events"
	"jobbot-engine/internal/metrics"
	"jobbot-engine/internal/scrape/util"
)

// ErrInProgress is returned by Run while another cycle holds the lock.
var ErrInProgress = errors.New("cycle already in progress")

type State string

const (
	Idle          State = "idle"
	LoadingLedger State = "loading_ledger"
	Fetching      State = "fetching"
	Skipping      State = "skipping"
	Submitting    State = "submitting"
	Logging       State = "logging"
	Reporting     State = "reporting"
)

type ConfigSource interface {
	Current() (config.CycleConfig, error)
}

type Fetcher interface {
	FetchAll(ctx context.Context, keywords []string, maxResults int) []domain.JobRecord
}

type Ledger interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	Append(ctx context.Context, e domain.AppliedEntry) error
	Trim(ctx context.Context, maxRows int) error
	Raw(ctx context.Context) ([]byte, error)
}

type Notifier interface {
	Report(ctx context.Context, recipient string, res domain.CycleResult, ledgerCSV []byte) error
}

type History interface {
	RecordAttempt(ctx context.Context, cycleID string, job domain.JobRecord, outcome string, at time.Time) error
	RecordCycle(ctx context.Context, res domain.CycleResult) error
}

type Publisher interface {
	Emit(typ string, data any)
}

type Deps struct {
	Config    ConfigSource
	Fetcher   Fetcher
	Ledger    Ledger
	Submitter apply.Submitter

	// Optional collaborators.
	Notifier Notifier
	History  History
	Events   Publisher
	Metrics  metrics.Sink

	SubmitDelay time.Duration
	MaxRows     int
	// LockPath enables the cross-process single-flight lock.
	LockPath string
}

type Runner struct {
	d Deps

	mu       sync.Mutex // held for the whole cycle
	fileLock *flock.Flock
	pending  chan struct{}

	state atomic.Value // State
	last  atomic.Pointer[domain.CycleResult]

	now   func() time.Time
	newID func() string
}

func New(d Deps) *Runner {
	if d.Metrics == nil {
		d.Metrics = metrics.NewNoopSink()
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Submitter != nil {
		d.Submitter = apply.Guard(d.Submitter)
	}
	r := &Runner{
		d:       d,
		pending: make(chan struct{}, 1),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	if d.LockPath != "" {
		r.fileLock = flock.New(d.LockPath)
	}
	r.state.Store(Idle)
	return r
}

func (r *Runner) State() State { return r.state.Load().(State) }

// LastResult returns the most recent finished cycle, if any.
func (r *Runner) LastResult() (domain.CycleResult, bool) {
	p := r.last.Load()
	if p == nil {
		return domain.CycleResult{}, false
	}
	return *p, true
}

// Pending reports whether a triggered cycle is waiting to run.
func (r *Runner) Pending() bool { return len(r.pending) > 0 }

// Trigger queues a cycle for Loop. Triggers arriving while one is already
// queued coalesce into it; the return value reports whether this call queued.
func (r *Runner) Trigger() bool {
	select {
	case r.pending <- struct{}{}:
		return true
	default:
		return false
	}
}

// Loop runs queued cycles one after another until ctx is done.
func (r *Runner) Loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.pending:
			if _, err := r.Run(ctx); err != nil {
				log.Printf("[cycle] %v", err)
			}
		}
	}
}

// Run executes one cycle. It returns ErrInProgress when another cycle (in this
// or another process) is running, and an error with an Aborted result when the
// ledger cannot be initialized. Per-job and per-source failures never surface here.
func (r *Runner) Run(ctx context.Context) (domain.CycleResult, error) {
	if !r.mu.TryLock() {
		return domain.CycleResult{}, ErrInProgress
	}
	defer r.mu.Unlock()

	if r.fileLock != nil {
		ok, err := r.fileLock.TryLock()
		if err != nil {
			return domain.CycleResult{}, fmt.Errorf("cycle lock: %w", err)
		}
		if !ok {
			return domain.CycleResult{}, ErrInProgress
		}
		defer func() { _ = r.fileLock.Unlock() }()
	}
	defer r.setState(Idle)

	res := domain.CycleResult{ID: r.newID(), StartedAt: r.now().UTC()}
	r.d.Metrics.CycleStarted()
	r.d.Events.Emit(events.CycleStarted, map[string]string{"id": res.ID})
	log.Printf("[cycle] start id=%s", res.ID)

	// Snapshot: config changes made during this cycle apply to the next one.
	cfg, err := r.d.Config.Current()
	if err != nil {
		log.Printf("[cycle] config: %v (using defaults)", err)
		cfg = config.DefaultCycleConfig()
	}

	r.setState(LoadingLedger)
	applied, err := r.d.Ledger.Load(ctx)
	if err != nil {
		r.d.Metrics.LedgerError(metrics.LedgerOpLoad)
		res.Aborted = true
		res.Error = err.Error()
		r.finish(ctx, &res)
		return res, fmt.Errorf("load ledger: %w", err)
	}
	log.Printf("[cycle] %d applied urls loaded", len(applied))

	r.setState(Fetching)
	jobs := r.d.Fetcher.FetchAll(ctx, cfg.Keywords, cfg.MaxResults)
	res.Considered = len(jobs)
	log.Printf("[cycle] %d jobs fetched", len(jobs))

	submitted := false
	for _, job := range jobs {
		if ctx.Err() != nil {
			log.Printf("[cycle] canceled; stopping before %s", job.Identity)
			break
		}
		if _, ok := applied[job.Identity]; ok {
			r.setState(Skipping)
			res.Skipped++
			log.Printf("[cycle] skipping %s", job.Identity)
			r.d.Events.Emit(events.JobSkipped, job)
			continue
		}

		// The delay runs from the end of the previous submission.
		if submitted {
			if err := util.Pause(ctx, r.d.SubmitDelay); err != nil {
				log.Printf("[cycle] canceled during submit delay")
				break
			}
		}
		r.process(ctx, &res, job, cfg, applied)
		submitted = true
	}

	r.setState(Reporting)
	r.report(ctx, &res, cfg)
	r.finish(ctx, &res)
	return res, nil
}

// process submits one job and logs it. It runs to completion even when ctx is
// canceled so a submitted job is never left unlogged.
func (r *Runner) process(ctx context.Context, res *domain.CycleResult, job domain.JobRecord, cfg config.CycleConfig, applied map[string]struct{}) {
	jctx := context.WithoutCancel(ctx)

	r.setState(Submitting)
	outcome := r.d.Submitter.Submit(jctx, job, cfg.UserData, cfg.ResumePath)
	r.d.Metrics.SubmissionOutcome(outcome.String())
	at := r.now().UTC()
	if r.d.History != nil {
		if err := r.d.History.RecordAttempt(jctx, res.ID, job, outcome.String(), at); err != nil {
			log.Printf("[cycle] history attempt: %v", err)
		}
	}
	r.d.Events.Emit(events.JobAttempted, map[string]any{"job": job, "outcome": outcome.String()})

	if !outcome.Logged() {
		res.Deferred++
		log.Printf("[cycle] deferred %s (not reachable; retried next cycle)", job.Identity)
		return
	}
	res.Attempted++
	if outcome.Confirmed() {
		res.Submitted++
	}

	r.setState(Logging)
	applied[job.Identity] = struct{}{}
	entry := domain.AppliedEntry{Timestamp: at, Title: job.Title, Company: job.Company, Identity: job.Identity}
	if err := r.d.Ledger.Append(jctx, entry); err != nil {
		r.d.Metrics.LedgerError(metrics.LedgerOpAppend)
		log.Printf("[cycle] ledger append %s: %v", job.Identity, err)
		return
	}
	if err := r.d.Ledger.Trim(jctx, r.d.MaxRows); err != nil {
		r.d.Metrics.LedgerError(metrics.LedgerOpTrim)
		log.Printf("[cycle] ledger trim: %v", err)
	}
	log.Printf("[cycle] %s %s", outcome, job.Identity)
}

func (r *Runner) report(ctx context.Context, res *domain.CycleResult, cfg config.CycleConfig) {
	if r.d.Notifier == nil {
		return
	}
	if ctx.Err() != nil {
		log.Printf("[cycle] canceled; report skipped")
		return
	}
	csv, err := r.d.Ledger.Raw(ctx)
	if err != nil {
		log.Printf("[cycle] ledger read for report: %v", err)
	}
	if err := r.d.Notifier.Report(ctx, cfg.UserData.Email, *res, csv); err != nil {
		log.Printf("[cycle] report: %v", err)
	}
}

func (r *Runner) finish(ctx context.Context, res *domain.CycleResult) {
	res.FinishedAt = r.now().UTC()
	r.d.Metrics.CycleCompleted(res.FinishedAt.Sub(res.StartedAt), res.Considered, res.Attempted, res.Skipped, res.Deferred, res.Aborted)
	if r.d.History != nil {
		if err := r.d.History.RecordCycle(context.WithoutCancel(ctx), *res); err != nil {
			log.Printf("[cycle] history: %v", err)
		}
	}
	final := *res
	r.last.Store(&final)
	r.d.Events.Emit(events.CycleFinished, final)
	log.Printf("[cycle] complete id=%s considered=%d attempted=%d submitted=%d skipped=%d deferred=%d aborted=%t",
		res.ID, res.Considered, res.Attempted, res.Submitted, res.Skipped, res.Deferred, res.Aborted)
}

func (r *Runner) setState(s State) { r.state.Store(s) }

type nopPublisher struct{}

func (nopPublisher) Emit(string, any) {}
