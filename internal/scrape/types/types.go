package types

import (
	"context"
	"net/http"
	"time"

	"jobbot-engine/internal/domain"
)

// Source produces candidate postings. Implementations may return unfiltered,
// un-normalized records; the aggregator owns filtering, normalization and dedup.
// Errors are reported to the caller, which treats them as zero results.
type Source interface {
	Name() string
	Fetch(ctx context.Context, keywords []string, maxResults int) ([]domain.JobRecord, error)
}

// UserAgent is sent by every HTTP source.
const UserAgent = "Mozilla/5.0 (compatible; JobBot/1.0)"

func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
