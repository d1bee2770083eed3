package scrape

import (
	"strings"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/scrape/util"
)

// Normalize canonicalizes one scraped record. base resolves relative URLs.
// Records without a usable absolute URL are rejected.
func Normalize(raw domain.JobRecord, source, base string) (domain.JobRecord, bool) {
	abs := util.ResolveURL(base, raw.URL)
	id := util.CanonicalURL(abs)
	if id == "" {
		return domain.JobRecord{}, false
	}

	j := domain.JobRecord{
		Identity: id,
		Title:    util.CleanText(raw.Title),
		Company:  util.CleanText(raw.Company),
		Location: util.NormalizeLocation(raw.Location),
		Source:   strings.TrimSpace(raw.Source),
		URL:      abs,
	}
	if j.Title == "" {
		j.Title = domain.PlaceholderTitle
	}
	if j.Company == "" {
		j.Company = domain.PlaceholderCompany
	}
	if j.Source == "" {
		j.Source = source
	}
	return j, true
}
