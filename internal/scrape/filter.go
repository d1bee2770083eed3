package scrape

import (
	"strings"

	"jobbot-engine/internal/domain"
)

// MatchesKeywords is the single keyword policy for every source: an empty
// keyword set accepts everything, otherwise at least one keyword must occur
// (case-insensitive) in title + company + url.
func MatchesKeywords(j domain.JobRecord, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text := strings.ToLower(j.Title + " " + j.Company + " " + j.URL)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
