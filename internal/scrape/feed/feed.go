package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/scrape/types"
	"jobbot-engine/internal/scrape/util"
)

// Source reads one RSS/Atom job feed (WeWorkRemotely, Remotive, ...).
type Source struct {
	name    string
	url     string
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(name, feedURL string, hc *http.Client, limiter *util.HostLimiter) *Source {
	if hc == nil {
		hc = types.NewHTTPClient(0)
	}
	if strings.TrimSpace(name) == "" {
		name = "feed:" + util.HostOf(feedURL)
	}
	return &Source{name: name, url: feedURL, hc: hc, limiter: limiter}
}

func (s *Source) Name() string { return s.name }

func (s *Source) Fetch(ctx context.Context, _ []string, maxResults int) ([]domain.JobRecord, error) {
	if err := s.limiter.WaitURL(ctx, s.url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed build request: %w", err)
	}
	req.Header.Set("User-Agent", types.UserAgent)

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	f, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed parse: %w", err)
	}

	out := make([]domain.JobRecord, 0, len(f.Items))
	for _, it := range f.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		company, title := splitTitle(it.Title)
		if company == "" && it.Author != nil {
			company = it.Author.Name
		}
		loc := it.Custom["region"] // WWR extension element
		out = append(out, domain.JobRecord{
			Title:    title,
			Company:  company,
			URL:      link,
			Location: loc,
			Source:   s.name,
		})
	}
	return out, nil
}

// splitTitle handles the "Company: Job Title" convention used by remote boards.
func splitTitle(raw string) (company, title string) {
	raw = util.CleanText(raw)
	if i := strings.Index(raw, ": "); i > 0 && i < 60 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+2:])
	}
	return "", raw
}
