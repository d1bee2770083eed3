package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"jobbot-engine/internal/domain"
)

const (
	DefaultMaxResults = 50
	DefaultResumePath = "resume.pdf"
)

// Keywords decodes from either a comma-separated string or a JSON array.
type Keywords []string

func (k *Keywords) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*k = ParseKeywords(s)
		return nil
	}
	var xs []string
	if err := json.Unmarshal(b, &xs); err != nil {
		return fmt.Errorf("keywords: want string or array of strings: %w", err)
	}
	*k = ParseKeywords(xs...)
	return nil
}

// ParseKeywords splits on commas and returns the deduplicated lower-case terms.
func ParseKeywords(raw ...string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			kw := strings.ToLower(strings.TrimSpace(part))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			out = append(out, kw)
		}
	}
	return out
}

// CycleConfig is the per-cycle snapshot stored in config.json.
type CycleConfig struct {
	Keywords   Keywords       `json:"keywords"`
	MaxResults int            `json:"max_results"`
	ResumePath string         `json:"resume_path"`
	UserData   domain.Profile `json:"user_data"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		Keywords:   Keywords{},
		MaxResults: DefaultMaxResults,
		ResumePath: DefaultResumePath,
	}
}

// Normalize applies ingestion rules: keyword cleanup and defaults for
// max_results <= 0 and an empty resume path.
func (c CycleConfig) Normalize() CycleConfig {
	c.Keywords = ParseKeywords(c.Keywords...)
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if strings.TrimSpace(c.ResumePath) == "" {
		c.ResumePath = DefaultResumePath
	}
	c.UserData.Email = strings.TrimSpace(c.UserData.Email)
	return c
}

// CycleStore reads and writes config.json under a file lock shared with
// other processes.
type CycleStore struct {
	Path string

	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

func NewCycleStore(path string) *CycleStore {
	return &CycleStore{Path: path, lock: flock.New(path + ".lock"), now: time.Now}
}

// Current returns the stored snapshot. A missing file yields the defaults; a
// corrupt one yields the defaults along with the decode error.
func (s *CycleStore) Current() (CycleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return DefaultCycleConfig(), fmt.Errorf("config lock: %w", err)
	}
	b, err := os.ReadFile(s.Path)
	_ = s.lock.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		return DefaultCycleConfig(), nil
	}
	if err != nil {
		return DefaultCycleConfig(), err
	}

	cfg := DefaultCycleConfig()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return DefaultCycleConfig(), fmt.Errorf("config.json: %w", err)
	}
	if cfg.Keywords == nil {
		cfg.Keywords = Keywords{}
	}
	if strings.TrimSpace(cfg.ResumePath) == "" {
		cfg.ResumePath = DefaultResumePath
	}
	return cfg, nil
}

// Save normalizes cfg, stamps it and replaces the stored snapshot.
func (s *CycleStore) Save(ctx context.Context, cfg CycleConfig) (CycleConfig, error) {
	cfg = cfg.Normalize()
	cfg.Timestamp = s.now().UTC().Format(time.RFC3339)

	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return cfg, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return cfg, fmt.Errorf("config lock: %w", err)
	}
	if !ok {
		return cfg, errors.New("config lock: not acquired")
	}
	defer func() { _ = s.lock.Unlock() }()

	return cfg, writeAtomic(s.Path, b)
}
