package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/scrape/types"
	"jobbot-engine/internal/scrape/util"
)

const defaultAPIBase = "https://api.lever.co/v0/postings"

type Config struct {
	Companies []Company
	// APIBase overrides the postings endpoint (tests).
	APIBase string
}

type Company struct {
	Slug string // api.lever.co/v0/postings/<slug>
	Name string
}

type Scraper struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg Config, limiter *util.HostLimiter) *Scraper {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Scraper{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (s *Scraper) Name() string { return "lever" }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	Categories struct {
		Location   string `json:"location"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	WorkplaceType string `json:"workplaceType"`
}

// Fetch queries every configured company; one failing board is logged and skipped.
// Results come back in company order regardless of which worker finished first.
func (s *Scraper) Fetch(ctx context.Context, _ []string, _ int) ([]domain.JobRecord, error) {
	const workers = 4

	companies := s.cfg.Companies
	batches := make([][]domain.JobRecord, len(companies))
	workCh := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range workCh {
				co := companies[idx]
				cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
				jobs, err := s.fetchCompany(cctx, co)
				cancel()
				if err != nil {
					log.Printf("[scrape:lever] company=%q slug=%q err=%v", co.Name, co.Slug, err)
					continue
				}
				batches[idx] = jobs
			}
		}()
	}

	go func() {
		defer close(workCh)
		for i := range companies {
			select {
			case <-ctx.Done():
				return
			case workCh <- i:
			}
		}
	}()

	wg.Wait()

	var out []domain.JobRecord
	for _, b := range batches {
		out = append(out, b...)
	}
	if len(out) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, nil
}

func (s *Scraper) fetchCompany(ctx context.Context, co Company) ([]domain.JobRecord, error) {
	slug := strings.TrimSpace(co.Slug)
	if slug == "" {
		return nil, fmt.Errorf("empty slug")
	}
	apiURL := fmt.Sprintf("%s/%s?mode=json", strings.TrimRight(s.cfg.APIBase, "/"), url.PathEscape(slug))

	if err := s.limiter.WaitURL(ctx, apiURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", types.UserAgent)
	req.Header.Set("Accept", "application/json")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lever get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("lever status %d", res.StatusCode)
	}

	var postings []leverPosting
	if err := json.NewDecoder(res.Body).Decode(&postings); err != nil {
		return nil, fmt.Errorf("lever decode: %w", err)
	}

	name := util.FirstNonEmpty(co.Name, slug)
	out := make([]domain.JobRecord, 0, len(postings))
	for _, p := range postings {
		if p.HostedURL == "" || strings.TrimSpace(p.Text) == "" {
			continue
		}
		loc := p.Categories.Location
		if strings.EqualFold(p.WorkplaceType, "remote") && !strings.Contains(strings.ToLower(loc), "remote") {
			loc = strings.TrimSuffix("Remote, "+loc, ", ")
		}
		out = append(out, domain.JobRecord{
			Title:    p.Text,
			Company:  name,
			URL:      p.HostedURL,
			Location: loc,
			Source:   "lever",
		})
	}
	return out, nil
}
