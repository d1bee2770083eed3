// Package resume fetches the applicant's resume referenced by a webhook.
package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"jobbot-engine/internal/scrape/types"
)

const (
	maxBytes = 10 << 20
	tries    = 3
)

var ErrUnsupportedType = errors.New("unsupported resume type")

// allowed maps sniffed MIME types to stored extensions.
var allowed = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/rtf":   ".rtf",
	"text/plain": ".txt",
}

type Downloader struct {
	Dir        string // stored files land in Dir/resume_<uuid>.<ext>
	Client     *http.Client
	RetryDelay time.Duration
}

func NewDownloader(dir string) *Downloader {
	return &Downloader{Dir: dir, Client: types.NewHTTPClient(20 * time.Second), RetryDelay: 2 * time.Second}
}

// Download fetches rawURL with up to three tries and returns the stored path.
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("resume url %q: not an absolute http(s) url", rawURL)
	}

	var body []byte
	for attempt := 1; attempt <= tries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(d.RetryDelay):
			}
		}
		body, err = d.fetch(ctx, rawURL)
		if err == nil {
			break
		}
		log.Printf("[resume] download attempt %d/%d: %v", attempt, tries, err)
	}
	if err != nil {
		return "", err
	}

	mt := mimetype.Detect(body)
	ext := ""
	for m := mt; m != nil && ext == ""; m = m.Parent() {
		for typ, e := range allowed {
			if m.Is(typ) {
				ext = e
				break
			}
		}
	}
	if ext == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(d.Dir, "resume_"+uuid.NewString()+ext)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	log.Printf("[resume] stored %s (%s, %d bytes)", path, mt.String(), len(body))
	return path, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", types.UserAgent)
	res, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d", res.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBytes {
		return nil, fmt.Errorf("resume larger than %d bytes", maxBytes)
	}
	if len(b) == 0 {
		return nil, errors.New("empty resume")
	}
	return b, nil
}
