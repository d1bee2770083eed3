// Package ledger keeps the CSV record of jobs already applied to.
package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/scrape/util"
)

const DefaultMaxRows = 1000

// ErrUnavailable means the ledger file could not be created.
var ErrUnavailable = errors.New("ledger unavailable")

var header = []string{"timestamp", "title", "company", "url"}

const lockRetry = 50 * time.Millisecond

type Ledger struct {
	Path    string
	MaxRows int // header included

	mu   sync.Mutex // flock does not exclude goroutines sharing one handle
	lock *flock.Flock
}

func New(path string, maxRows int) *Ledger {
	if maxRows <= 1 {
		maxRows = DefaultMaxRows
	}
	return &Ledger{Path: path, MaxRows: maxRows, lock: flock.New(path + ".lock")}
}

// Init creates the file with its header row when it does not exist yet.
func (l *Ledger) Init() error {
	if _, err := os.Stat(l.Path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %v", ErrUnavailable, l.Path, err)
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write(header)
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: write header: %v", ErrUnavailable, err)
	}
	return nil
}

// Load returns the identities already applied to. A corrupt or unreadable file
// yields an empty set; only a failure to create a missing file is returned.
func (l *Ledger) Load(ctx context.Context) (map[string]struct{}, error) {
	if err := l.Init(); err != nil {
		return nil, err
	}
	out := map[string]struct{}{}

	rows, err := l.readRows(ctx)
	if err != nil {
		log.Printf("[ledger] load %s: %v (treating as empty)", l.Path, err)
		return out, nil
	}
	for _, r := range rows {
		if len(r) < len(header) || r[3] == "" {
			continue
		}
		id := util.CanonicalURL(r[3])
		if id == "" {
			id = r[3]
		}
		out[id] = struct{}{}
	}
	return out, nil
}

// Entries returns every logged attempt, oldest first.
func (l *Ledger) Entries(ctx context.Context) ([]domain.AppliedEntry, error) {
	rows, err := l.readRows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AppliedEntry, 0, len(rows))
	for _, r := range rows {
		if len(r) < len(header) {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, r[0])
		out = append(out, domain.AppliedEntry{Timestamp: ts, Title: r[1], Company: r[2], Identity: r[3]})
	}
	return out, nil
}

// Raw returns the file bytes as stored.
func (l *Ledger) Raw(ctx context.Context) ([]byte, error) {
	unlock, err := l.rlock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return os.ReadFile(l.Path)
}

// Append writes one row. Errors are for the caller to log.
func (l *Ledger) Append(ctx context.Context, e domain.AppliedEntry) error {
	if err := l.Init(); err != nil {
		return err
	}
	unlock, err := l.wlock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger open: %w", err)
	}
	w := csv.NewWriter(f)
	_ = w.Write(entryRow(e))
	w.Flush()
	werr := w.Error()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("ledger append: %w", werr)
	}
	return cerr
}

// Trim keeps the header plus the most recent maxRows-1 entries when the file
// holds more than maxRows rows. The file is rewritten via temp file + rename.
func (l *Ledger) Trim(ctx context.Context, maxRows int) error {
	if maxRows <= 1 {
		maxRows = l.MaxRows
	}
	unlock, err := l.wlock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	records, err := readAll(l.Path)
	if err != nil {
		return fmt.Errorf("ledger trim read: %w", err)
	}
	if len(records)+1 <= maxRows {
		return nil
	}
	keep := records[len(records)-(maxRows-1):]

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	_ = w.WriteAll(keep)
	if err := w.Error(); err != nil {
		return err
	}

	tmp := l.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("ledger trim write: %w", err)
	}
	if err := os.Rename(tmp, l.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ledger trim rename: %w", err)
	}
	log.Printf("[ledger] trimmed to %d rows (dropped %d)", maxRows, len(records)-len(keep))
	return nil
}

func (l *Ledger) readRows(ctx context.Context) ([][]string, error) {
	unlock, err := l.rlock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return readAll(l.Path)
}

// readAll returns data rows without the header.
func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !isHeader(first) {
		return nil, fmt.Errorf("unexpected header %q", first)
	}
	return r.ReadAll()
}

func isHeader(row []string) bool {
	if len(row) != len(header) {
		return false
	}
	for i := range header {
		if row[i] != header[i] {
			return false
		}
	}
	return true
}

func entryRow(e domain.AppliedEntry) []string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return []string{ts.UTC().Format(time.RFC3339), e.Title, e.Company, e.Identity}
}

func (l *Ledger) wlock(ctx context.Context) (func(), error) {
	l.mu.Lock()
	ok, err := l.lock.TryLockContext(ctx, lockRetry)
	if err != nil || !ok {
		l.mu.Unlock()
		if err == nil {
			err = errors.New("not acquired")
		}
		return nil, fmt.Errorf("ledger lock: %w", err)
	}
	return func() {
		_ = l.lock.Unlock()
		l.mu.Unlock()
	}, nil
}

func (l *Ledger) rlock(ctx context.Context) (func(), error) {
	l.mu.Lock()
	ok, err := l.lock.TryRLockContext(ctx, lockRetry)
	if err != nil || !ok {
		l.mu.Unlock()
		if err == nil {
			err = errors.New("not acquired")
		}
		return nil, fmt.Errorf("ledger lock: %w", err)
	}
	return func() {
		_ = l.lock.Unlock()
		l.mu.Unlock()
	}, nil
}
