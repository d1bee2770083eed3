package email

import (
	"bytes"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/scrape/util"
)

const maxLinksPerMessage = 200

var reURL = regexp.MustCompile(`https?://[^\s<>"']+`)

// ExtractJobs returns one record per job-like link in the message body.
// HTML parts are preferred; plain text is scanned for bare URLs only when no HTML part exists.
func ExtractJobs(m Message) []domain.JobRecord {
	plain, html := bodyParts(m.Raw)

	var out []domain.JobRecord
	seen := map[string]int{}
	add := func(rec domain.JobRecord) {
		if len(out) >= maxLinksPerMessage {
			return
		}
		if i, ok := seen[rec.URL]; ok {
			// keep the most descriptive anchor text for repeated links
			if len(rec.Title) > len(out[i].Title) {
				out[i].Title = rec.Title
			}
			if out[i].Company == "" {
				out[i].Company = rec.Company
			}
			return
		}
		seen[rec.URL] = len(out)
		out = append(out, rec)
	}

	if html != "" {
		for _, rec := range linksFromHTML(html) {
			add(rec)
		}
		return out
	}
	for _, raw := range reURL.FindAllString(plain, -1) {
		u := unwrapRedirect(strings.TrimRight(raw, ".,);:]\"'"))
		if looksLikeJobLink(u) {
			add(domain.JobRecord{URL: u, Source: "email"})
		}
	}
	return out
}

func linksFromHTML(body string) []domain.JobRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}
	var out []domain.JobRecord
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u := unwrapRedirect(strings.TrimSpace(href))
		if !looksLikeJobLink(u) {
			return
		}
		title, company := splitAnchor(util.CleanText(a.Text()))

		// LinkedIn cards carry "Company · Location" in a sibling paragraph.
		var loc string
		if company == "" {
			card := a.Closest("table")
			if card.Length() == 0 {
				card = a.Parent()
			}
			card.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
				t := util.CleanText(p.Text())
				if c, l, ok := strings.Cut(t, " · "); ok {
					company, loc = strings.TrimSpace(c), strings.TrimSpace(l)
					return false
				}
				return true
			})
		}
		out = append(out, domain.JobRecord{
			Title:    title,
			Company:  company,
			Location: loc,
			URL:      u,
			Source:   "email",
		})
	})
	return out
}

// splitAnchor separates "Title at Company" anchor text.
func splitAnchor(s string) (title, company string) {
	if t, c, ok := strings.Cut(s, " at "); ok && t != "" && c != "" {
		return strings.TrimSpace(t), strings.TrimSpace(c)
	}
	return s, ""
}

func looksLikeJobLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	l := strings.ToLower(u.Host + u.Path + "?" + u.RawQuery)
	for _, bad := range []string{"unsubscribe", "/settings", "/preferences", "/help", "/privacy"} {
		if strings.Contains(l, bad) {
			return false
		}
	}
	for _, good := range []string{"/job", "/career", "/position", "/opening", "currentjobid", "lever.co/", "greenhouse.io/"} {
		if strings.Contains(l, good) {
			return true
		}
	}
	return false
}

// unwrapRedirect resolves tracking wrappers (?url=..., google /url?q=...) and LinkedIn /comm/ links.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if raw := u.Query().Get("url"); raw != "" {
		if uu, err := url.Parse(raw); err == nil && uu.Host != "" {
			return uu.String()
		}
	}
	if strings.Contains(strings.ToLower(u.Host), "google.") && strings.HasPrefix(u.Path, "/url") {
		if uu, err := url.Parse(u.Query().Get("q")); err == nil && uu.Host != "" {
			return uu.String()
		}
	}
	if strings.HasSuffix(strings.ToLower(u.Host), "linkedin.com") && strings.HasPrefix(u.Path, "/comm/") {
		u.Path = strings.TrimPrefix(u.Path, "/comm")
		u.RawQuery = ""
	}
	return u.String()
}

// bodyParts decodes the message with go-message and returns the largest text/plain
// and text/html parts. Unknown charsets are read as-is.
func bodyParts(raw []byte) (plain, html string) {
	if len(raw) == 0 {
		return "", ""
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if (err != nil && !message.IsUnknownCharset(err)) || p == nil {
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		b, _ := io.ReadAll(io.LimitReader(p.Body, 6<<20))
		switch {
		case strings.HasPrefix(ct, "text/html"):
			if len(b) > len(html) {
				html = string(b)
			}
		case strings.HasPrefix(ct, "text/plain"), ct == "":
			if len(b) > len(plain) {
				plain = string(b)
			}
		}
	}
	return plain, html
}
