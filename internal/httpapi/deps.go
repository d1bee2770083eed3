package httpapi

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"jobbot-engine/internal/config"
	"jobbot-engine/internal/cycle"
	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/events"
	"jobbot-engine/internal/store"
)

type Runner interface {
	Trigger() bool
	Pending() bool
	State() cycle.State
	LastResult() (domain.CycleResult, bool)
}

type CycleStore interface {
	Current() (config.CycleConfig, error)
	Save(ctx context.Context, cfg config.CycleConfig) (config.CycleConfig, error)
}

type LedgerReader interface {
	Raw(ctx context.Context) ([]byte, error)
}

type HistoryReader interface {
	ListCycles(ctx context.Context, limit int) ([]domain.CycleResult, error)
	ListAttempts(ctx context.Context, cycleID string) ([]store.Attempt, error)
}

type ResumeFetcher interface {
	Download(ctx context.Context, rawURL string) (string, error)
}

type Deps struct {
	Hub    *events.Hub
	Runner Runner

	Cycles  CycleStore
	Ledger  LedgerReader
	History HistoryReader // optional
	Resumes ResumeFetcher // optional

	// Engine settings
	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Gatherer prometheus.Gatherer // optional; enables /metrics
}
