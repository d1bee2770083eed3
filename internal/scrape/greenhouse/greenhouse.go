package greenhouse

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/scrape/types"
	"jobbot-engine/internal/scrape/util"
)

const defaultBoardBase = "https://boards.greenhouse.io"

type Config struct {
	Companies []Company
	BoardBase string
}

type Company struct {
	Slug string // boards.greenhouse.io/<slug>
	Name string
}

type Scraper struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg Config, hc *http.Client, limiter *util.HostLimiter) *Scraper {
	if cfg.BoardBase == "" {
		cfg.BoardBase = defaultBoardBase
	}
	if hc == nil {
		hc = types.NewHTTPClient(0)
	}
	return &Scraper{cfg: cfg, hc: hc, limiter: limiter}
}

func (s *Scraper) Name() string { return "greenhouse" }

func (s *Scraper) Fetch(ctx context.Context, _ []string, _ int) ([]domain.JobRecord, error) {
	var out []domain.JobRecord
	for _, co := range s.cfg.Companies {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		jobs, err := s.fetchCompany(ctx, co)
		if err != nil {
			// one board down does not fail the run
			log.Printf("[scrape:greenhouse] company=%q err=%v", co.Slug, err)
			continue
		}
		out = append(out, jobs...)
	}
	return out, nil
}

func (s *Scraper) fetchCompany(ctx context.Context, co Company) ([]domain.JobRecord, error) {
	base := strings.TrimRight(s.cfg.BoardBase, "/")
	boardURL := fmt.Sprintf("%s/%s", base, co.Slug)

	doc, err := s.get(ctx, boardURL)
	if err != nil {
		return nil, fmt.Errorf("greenhouse board: %w", err)
	}

	seen := map[string]bool{}
	var jobs []domain.JobRecord
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := util.ResolveURL(boardURL, strings.TrimSpace(href))
		if abs == "" || !strings.Contains(abs, "/jobs/") {
			return
		}
		id := extractJobID(abs)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		// the enclosing opening row carries the location
		opening := a.Closest(".opening, tr")
		jobs = append(jobs, domain.JobRecord{
			Title:    util.CleanText(a.Text()),
			Company:  util.FirstNonEmpty(co.Name, co.Slug),
			Location: util.NormalizeLocation(opening.Find(".location").First().Text()),
			URL:      abs,
			Source:   "greenhouse",
		})
	})

	for i := range jobs {
		if jobs[i].Title != "" && !looksLikeJunkTitle(jobs[i].Title) {
			continue
		}
		// fall back to the job page heading
		if jd, err := s.get(ctx, jobs[i].URL); err == nil {
			jobs[i].Title = util.CleanText(jd.Find("h1").First().Text())
		}
	}
	return jobs, nil
}

func (s *Scraper) get(ctx context.Context, u string) (*goquery.Document, error) {
	if err := s.limiter.WaitURL(ctx, u); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", types.UserAgent)
	res, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d", res.StatusCode)
	}
	return goquery.NewDocumentFromReader(res.Body)
}

func extractJobID(u string) string {
	_, tail, ok := strings.Cut(u, "/jobs/")
	if !ok {
		return ""
	}
	end := 0
	for end < len(tail) && tail[end] >= '0' && tail[end] <= '9' {
		end++
	}
	return tail[:end]
}

func looksLikeJunkTitle(t string) bool {
	l := strings.ToLower(t)
	return strings.Contains(l, "view") || strings.Contains(l, "apply")
}
