package main

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"jobbot-engine/internal/config"
	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/metrics"
	"jobbot-engine/internal/scrape"
	"jobbot-engine/internal/scrape/boards"
	emailsrc "jobbot-engine/internal/scrape/email"
	"jobbot-engine/internal/scrape/feed"
	"jobbot-engine/internal/scrape/greenhouse"
	"jobbot-engine/internal/scrape/lever"
	"jobbot-engine/internal/scrape/types"
	"jobbot-engine/internal/scrape/util"
	"jobbot-engine/internal/secrets"
)

// engineFetcher rebuilds the source list from the live settings on every
// cycle, so a PUT /config takes effect without a restart.
type engineFetcher struct {
	cfgVal  *atomic.Value // stores config.Config
	limiter *util.HostLimiter
	metrics metrics.Sink
}

func (f *engineFetcher) FetchAll(ctx context.Context, keywords []string, maxResults int) []domain.JobRecord {
	cfg := f.cfgVal.Load().(config.Config)
	agg := &scrape.Aggregator{
		Sources:     buildSources(cfg, f.limiter),
		Delay:       cfg.SourceDelay(),
		Timeout:     cfg.FetchTimeout(),
		Parallel:    cfg.Fetch.Parallel,
		MaxParallel: cfg.Fetch.MaxParallel,
		Metrics:     f.metrics,
	}
	return agg.FetchAll(ctx, keywords, maxResults)
}

// buildSources returns the enabled sources in priority order: boards, feeds,
// lever, greenhouse, then the mailbox.
func buildSources(cfg config.Config, limiter *util.HostLimiter) []scrape.Source {
	hc := types.NewHTTPClient(cfg.FetchTimeout())
	var out []scrape.Source

	for _, name := range cfg.Sources.Boards {
		b, ok := boards.ByName(name)
		if !ok {
			log.Printf("[sources] unknown board %q (skipping)", name)
			continue
		}
		out = append(out, boards.New(b, hc, limiter))
	}
	for _, u := range cfg.Sources.Feeds {
		out = append(out, feed.New("", u, hc, limiter))
	}
	if cos := cfg.Sources.Lever.Companies; len(cos) > 0 {
		lc := lever.Config{}
		for _, c := range cos {
			lc.Companies = append(lc.Companies, lever.Company{Slug: c.Slug, Name: c.Name})
		}
		out = append(out, lever.New(lc, limiter))
	}
	if cos := cfg.Sources.Greenhouse.Companies; len(cos) > 0 {
		gc := greenhouse.Config{}
		for _, c := range cos {
			gc.Companies = append(gc.Companies, greenhouse.Company{Slug: c.Slug, Name: c.Name})
		}
		out = append(out, greenhouse.New(gc, hc, limiter))
	}
	if cfg.Email.Enabled {
		pw, err := secrets.GetPassword(secrets.IMAPKeyringAccount(cfg))
		if err != nil {
			log.Printf("[sources] email disabled for this cycle: %v", err)
		} else {
			out = append(out, emailsrc.New(emailsrc.Config{
				Addr:         fmt.Sprintf("%s:%d", cfg.Email.IMAPHost, cfg.Email.IMAPPort),
				Username:     cfg.Email.Username,
				Password:     pw,
				Mailbox:      cfg.Email.Mailbox,
				LookbackDays: cfg.Email.LookbackDays,
				SubjectAny:   cfg.Email.SearchSubjectAny,
				MaxMessages:  cfg.Email.MaxMessages,
			}))
		}
	}
	return out
}
