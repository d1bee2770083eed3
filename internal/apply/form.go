package apply

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobbot-engine/internal/domain"
	"jobbot-engine/internal/scrape/types"
	"jobbot-engine/internal/scrape/util"
)

const (
	defaultLoadTries  = 3
	defaultRetryDelay = 5 * time.Second
)

// FormSubmitter loads the posting page, fills the application form by field
// name heuristics and posts it as multipart with the resume attached.
type FormSubmitter struct {
	Client     *http.Client
	Limiter    *util.HostLimiter
	UserAgent  string
	LoadTries  int
	RetryDelay time.Duration
}

func NewFormSubmitter(hc *http.Client, limiter *util.HostLimiter, userAgent string) *FormSubmitter {
	if hc == nil {
		hc = types.NewHTTPClient(30 * time.Second)
	}
	return &FormSubmitter{
		Client:     hc,
		Limiter:    limiter,
		UserAgent:  util.FirstNonEmpty(userAgent, types.UserAgent),
		LoadTries:  defaultLoadTries,
		RetryDelay: defaultRetryDelay,
	}
}

func (s *FormSubmitter) Submit(ctx context.Context, job domain.JobRecord, profile domain.Profile, resumePath string) Outcome {
	resume, err := os.ReadFile(resumePath)
	if err != nil {
		log.Printf("[apply] resume %q: %v", resumePath, err)
		return Unreachable
	}

	doc, err := s.load(ctx, job.URL)
	if err != nil {
		log.Printf("[apply] load url=%s: %v", job.URL, err)
		return Unreachable
	}

	form := pickForm(doc)
	if form == nil {
		log.Printf("[apply] no application form url=%s", job.URL)
		return Attempted
	}

	body, contentType, err := fillForm(form, profile, filepath.Base(resumePath), resume)
	if err != nil {
		log.Printf("[apply] build form url=%s: %v", job.URL, err)
		return Attempted
	}

	action, _ := form.Attr("action")
	target := util.ResolveURL(job.URL, action)
	if strings.TrimSpace(action) == "" {
		target = job.URL
	}
	if target == "" {
		return Attempted
	}

	status, err := s.post(ctx, target, body, contentType)
	if err != nil {
		log.Printf("[apply] post url=%s: %v", target, err)
		return Attempted
	}
	if status < 200 || status >= 300 {
		log.Printf("[apply] post url=%s status=%d", target, status)
		return Attempted
	}
	return Submitted
}

// load fetches the page, retrying network errors and 5xx responses.
func (s *FormSubmitter) load(ctx context.Context, pageURL string) (*goquery.Document, error) {
	tries := s.LoadTries
	if tries <= 0 {
		tries = defaultLoadTries
	}
	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.RetryDelay):
			}
		}
		doc, retry, err := s.loadOnce(ctx, pageURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retry {
			break
		}
		log.Printf("[apply] load attempt %d/%d url=%s: %v", attempt, tries, pageURL, err)
	}
	return nil, lastErr
}

func (s *FormSubmitter) loadOnce(ctx context.Context, pageURL string) (*goquery.Document, bool, error) {
	if err := s.Limiter.WaitURL(ctx, pageURL); err != nil {
		return nil, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	res, err := s.Client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 500 {
		return nil, true, fmt.Errorf("status %d", res.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, true, err
	}
	return doc, false, nil
}

func (s *FormSubmitter) post(ctx context.Context, target string, body *bytes.Buffer, contentType string) (int, error) {
	if err := s.Limiter.WaitURL(ctx, target); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Content-Type", contentType)
	res, err := s.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return res.StatusCode, nil
}

// pickForm prefers a form with a file input, then one with an email field.
func pickForm(doc *goquery.Document) *goquery.Selection {
	forms := doc.Find("form")
	if f := forms.FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find(`input[type="file"]`).Length() > 0
	}).First(); f.Length() > 0 {
		return f
	}
	if f := forms.FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find(`input[type="email"], input[name*="email"]`).Length() > 0
	}).First(); f.Length() > 0 {
		return f
	}
	return nil
}

func fillForm(form *goquery.Selection, p domain.Profile, resumeName string, resume []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	var werr error
	form.Find("input[name], textarea[name], select[name]").Each(func(_ int, in *goquery.Selection) {
		if werr != nil {
			return
		}
		name, _ := in.Attr("name")
		typ := strings.ToLower(in.AttrOr("type", "text"))

		switch {
		case goquery.NodeName(in) == "input" && typ == "file":
			fw, err := mw.CreateFormFile(name, resumeName)
			if err != nil {
				werr = err
				return
			}
			_, werr = fw.Write(resume)
		case typ == "checkbox" || typ == "radio" || typ == "button" || typ == "reset" || typ == "image":
			return
		case goquery.NodeName(in) == "select":
			if v := in.Find("option[selected]").First().AttrOr("value", ""); v != "" {
				werr = mw.WriteField(name, v)
			}
		default:
			v := fieldValue(name, typ, goquery.NodeName(in), p)
			if v == "" {
				v = in.AttrOr("value", "")
			}
			if v != "" || typ == "hidden" {
				werr = mw.WriteField(name, v)
			}
		}
	})
	if werr != nil {
		return nil, "", werr
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// fieldValue maps a form field onto the applicant profile.
func fieldValue(name, typ, node string, p domain.Profile) string {
	n := strings.ToLower(name)
	first, last, _ := strings.Cut(strings.TrimSpace(p.FullName), " ")
	switch {
	case typ == "hidden" || typ == "submit":
		return ""
	case typ == "email" || strings.Contains(n, "email"):
		return p.Email
	case typ == "tel" || strings.Contains(n, "phone"):
		return p.Phone
	case strings.Contains(n, "first") && strings.Contains(n, "name"):
		return first
	case strings.Contains(n, "last") && strings.Contains(n, "name"):
		return last
	case strings.Contains(n, "name"):
		return p.FullName
	case strings.Contains(n, "location") || strings.Contains(n, "city"):
		return p.Location
	case node == "textarea" && (strings.Contains(n, "cover") || strings.Contains(n, "message")):
		return p.CoverLetter
	}
	return ""
}
