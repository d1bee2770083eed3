// Package email turns job-alert emails into candidate postings.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"jobbot-engine/internal/domain"
)

type Config struct {
	Addr         string // host:port, 993 assumed when the port is missing
	Username     string
	Password     string
	Mailbox      string
	LookbackDays int
	SubjectAny   []string
	MaxMessages  int

	// TLSConfig overrides the client TLS settings (private CA, tests).
	TLSConfig *tls.Config
}

// Message is a minimal representation of an email for scraping.
type Message struct {
	UID     imap.UID
	From    string
	Subject string
	Date    time.Time

	// Raw is the full RFC822 message, fetched with BODY.PEEK[] so it stays unseen.
	Raw []byte
}

type Source struct {
	cfg Config
}

func New(cfg Config) *Source {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 200
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil && cfg.Addr != "" {
		cfg.Addr = net.JoinHostPort(cfg.Addr, "993")
	}
	return &Source{cfg: cfg}
}

func (s *Source) Name() string { return "email" }

func (s *Source) Fetch(ctx context.Context, _ []string, _ int) ([]domain.JobRecord, error) {
	c, stop, err := dialAndLogin(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	defer stop()
	defer logoutAndClose(c)

	if _, err := c.Select(s.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", s.cfg.Mailbox, err)
	}

	since := time.Now().AddDate(0, 0, -s.cfg.LookbackDays)
	msgs, err := fetchSince(ctx, c, since, s.cfg.MaxMessages)
	if err != nil {
		return nil, err
	}

	var out []domain.JobRecord
	scanned := 0
	for _, m := range msgs {
		if !SubjectMatches(m.Subject, s.cfg.SubjectAny) {
			continue
		}
		scanned++
		out = append(out, ExtractJobs(m)...)
	}
	log.Printf("[scrape:email] messages=%d matched=%d links=%d", len(msgs), scanned, len(out))
	return out, nil
}

// SubjectMatches is a case-insensitive substring test; an empty list accepts every subject.
func SubjectMatches(subject string, any []string) bool {
	if len(any) == 0 {
		return true
	}
	ls := strings.ToLower(subject)
	for _, a := range any {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && strings.Contains(ls, a) {
			return true
		}
	}
	return false
}

// dialAndLogin connects under ctx and logs in. The returned stop func detaches
// the ctx watcher that closes the client when ctx ends, so every later
// command is bounded by ctx as well.
func dialAndLogin(ctx context.Context, cfg Config) (*imapclient.Client, func() bool, error) {
	if cfg.Addr == "" {
		return nil, nil, errors.New("imap addr is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, nil, errors.New("imap username/password is required")
	}
	host, _, _ := net.SplitHostPort(cfg.Addr)

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSConfig != nil {
		tlsCfg = cfg.TLSConfig.Clone()
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = host
	}
	d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 30 * time.Second}, Config: tlsCfg}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("imap dial tls: %w", err)
	}

	c := imapclient.New(conn, nil)
	// Unblocks pending commands when the fetch is abandoned.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })

	if err := c.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		stop()
		_ = c.Close()
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("imap login: %w", ctx.Err())
		}
		return nil, nil, fmt.Errorf("imap login: %w", err)
	}
	return c, stop, nil
}

// fetchSince pulls up to max messages received since the cutoff, newest first.
func fetchSince(ctx context.Context, c *imapclient.Client, since time.Time, max int) ([]Message, error) {
	searchData, err := c.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		m := Message{UID: buf.UID}
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			m.Date = buf.Envelope.Date
			if len(buf.Envelope.From) > 0 {
				m.From = fromName(buf.Envelope.From[0])
			}
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			m.Raw = append([]byte(nil), b...)
		}
		out = append(out, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func fromName(a imap.Address) string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	return a.Host
}

func logoutAndClose(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[scrape:email] imap logout: %v", err)
	}
	_ = c.Close()
}
