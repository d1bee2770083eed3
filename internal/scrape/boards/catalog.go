package boards

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobbot-engine/internal/domain"
)

// Selectors belong to the sites and break without notice; a board that stops
// matching simply yields zero records.

var Remotive = Board{
	Name:  "remotive",
	URL:   "https://remotive.com/remote-jobs/software-dev",
	Items: "div.job-tile",
	Extract: func(item *goquery.Selection) domain.JobRecord {
		title := text(item.Find(".job-tile-title"))
		if title == "" {
			return domain.JobRecord{}
		}
		return domain.JobRecord{
			Title:   title,
			Company: text(item.Find(".job-tile-company")),
			URL:     attr(item.Find("a"), "href"),
		}
	},
}

var RemoteOK = Board{
	Name:  "remoteok",
	URL:   "https://remoteok.com/remote-dev-jobs",
	Items: "tr.job",
	Extract: func(item *goquery.Selection) domain.JobRecord {
		return domain.JobRecord{
			Title:    attr(item, "data-position"),
			Company:  attr(item, "data-company"),
			URL:      attr(item.Find("a.preventLink"), "href"),
			Location: text(item.Find(".location")),
		}
	},
}

var WeWorkRemotely = Board{
	Name:  "weworkremotely",
	URL:   "https://weworkremotely.com/categories/remote-programming-jobs",
	Items: "section.jobs li.feature",
	Extract: func(item *goquery.Selection) domain.JobRecord {
		title := text(item.Find(".title"))
		if title == "" {
			title = text(item)
		}
		return domain.JobRecord{
			Title:   title,
			Company: text(item.Find(".company")),
			URL:     wwrHref(item),
		}
	},
}

// wwrHref skips the company-profile anchor that precedes the posting link.
func wwrHref(item *goquery.Selection) string {
	href := ""
	item.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h := attr(a, "href")
		if strings.Contains(h, "/remote-jobs/") {
			href = h
			return false
		}
		if href == "" {
			href = h
		}
		return true
	})
	return href
}

var Jobspresso = Board{
	Name:    "jobspresso",
	URL:     "https://jobspresso.co/remote-developer-jobs/",
	Items:   "ul.jobs li.job_listing",
	Extract: jobManagerListing,
}

var RemoteCo = Board{
	Name:    "remoteco",
	URL:     "https://remote.co/remote-jobs/developer/",
	Items:   "li.job_listing",
	Extract: jobManagerListing,
}

// jobManagerListing reads the WP Job Manager markup used by Jobspresso and Remote.co.
func jobManagerListing(item *goquery.Selection) domain.JobRecord {
	a := item.Find("a").First()
	title := attr(a, "title")
	if title == "" {
		title = text(item.Find("h3, .position h3, .job_listing-title"))
	}
	return domain.JobRecord{
		Title:    title,
		Company:  text(item.Find(".company strong, .company")),
		URL:      attr(a, "href"),
		Location: text(item.Find(".location")),
	}
}

// All lists the built-in boards in their default priority order.
func All() []Board {
	return []Board{Remotive, RemoteOK, WeWorkRemotely, Jobspresso, RemoteCo}
}

func ByName(name string) (Board, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, b := range All() {
		if b.Name == name {
			return b, true
		}
	}
	return Board{}, false
}
