// Package boards scrapes public remote job boards. Every board is the same
// Source driven by a Board value: a listing URL, an item selector and an
// extractor for one item.
package boards

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/scrape/types"
	"jobbot-engine/internal/scrape/util"
)

type Board struct {
	Name  string
	URL   string // listing page
	Items string // one match per posting
	// Extract reads one posting. URL may be relative to the listing page.
	Extract func(item *goquery.Selection) domain.JobRecord
}

type Source struct {
	board   Board
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(b Board, hc *http.Client, limiter *util.HostLimiter) *Source {
	if hc == nil {
		hc = types.NewHTTPClient(0)
	}
	return &Source{board: b, hc: hc, limiter: limiter}
}

func (s *Source) Name() string { return s.board.Name }

// Fetch ignores keywords; filtering is the aggregator's job.
func (s *Source) Fetch(ctx context.Context, _ []string, _ int) ([]domain.JobRecord, error) {
	if err := s.limiter.WaitURL(ctx, s.board.URL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.board.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s build request: %w", s.board.Name, err)
	}
	req.Header.Set("User-Agent", types.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s get: %w", s.board.Name, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("%s status %d", s.board.Name, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s parse html: %w", s.board.Name, err)
	}

	var out []domain.JobRecord
	doc.Find(s.board.Items).Each(func(_ int, item *goquery.Selection) {
		j := s.board.Extract(item)
		if strings.TrimSpace(j.URL) == "" {
			return
		}
		j.URL = util.ResolveURL(s.board.URL, j.URL)
		if j.Location == "" {
			j.Location = "Remote"
		}
		j.Source = s.board.Name
		out = append(out, j)
	})
	return out, nil
}

func text(sel *goquery.Selection) string {
	return util.CleanText(sel.First().Text())
}

func attr(sel *goquery.Selection, name string) string {
	v, _ := sel.First().Attr(name)
	return strings.TrimSpace(v)
}
