// Package notify emails the applied-jobs report after each cycle.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"jobbot-engine/internal/domain"
)

const (
	Subject        = "Your JobBot Report – Jobs Applied"
	AttachmentName = "applied_jobs.csv"
)

// Sender delivers one raw RFC 5322 message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

type Mailer struct {
	From   string
	Sender Sender

	now func() time.Time
}

func NewMailer(from string, s Sender) *Mailer {
	return &Mailer{From: from, Sender: s, now: time.Now}
}

// Report sends the cycle summary with the ledger attached. A recipient
// without "@" is skipped silently.
func (m *Mailer) Report(ctx context.Context, recipient string, res domain.CycleResult, ledgerCSV []byte) error {
	recipient = strings.TrimSpace(recipient)
	if !strings.Contains(recipient, "@") {
		log.Printf("[notify] skip: no valid recipient email")
		return nil
	}
	if m.Sender == nil || m.From == "" {
		return errors.New("notify: sender not configured")
	}

	msg, err := m.Compose(recipient, res, ledgerCSV)
	if err != nil {
		return fmt.Errorf("notify compose: %w", err)
	}
	if err := m.Sender.Send(ctx, m.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("notify send: %w", err)
	}
	log.Printf("[notify] report sent to %s", recipient)
	return nil
}

func (m *Mailer) Compose(recipient string, res domain.CycleResult, ledgerCSV []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.composeTo(&buf, recipient, res, ledgerCSV); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// composeTo writes the report to out. Any write or close failure is returned,
// so a report is never sent with a truncated attachment.
func (m *Mailer) composeTo(out io.Writer, recipient string, res domain.CycleResult, ledgerCSV []byte) error {
	var h mail.Header
	h.SetDate(m.now())
	h.SetAddressList("From", []*mail.Address{{Address: m.From}})
	h.SetAddressList("To", []*mail.Address{{Address: recipient}})
	h.SetSubject(Subject)
	if err := h.GenerateMessageID(); err != nil {
		return err
	}

	mw, err := mail.CreateWriter(out, h)
	if err != nil {
		return fmt.Errorf("compose header: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("compose body: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(th)
	if err != nil {
		return fmt.Errorf("compose body: %w", err)
	}
	if _, err := io.WriteString(w, reportBody(res)); err != nil {
		return fmt.Errorf("compose body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compose body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("compose body: %w", err)
	}

	if len(ledgerCSV) > 0 {
		var ah mail.AttachmentHeader
		ah.SetContentType("text/csv", nil)
		ah.SetFilename(AttachmentName)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("compose attachment: %w", err)
		}
		if _, err := aw.Write(ledgerCSV); err != nil {
			return fmt.Errorf("compose attachment: %w", err)
		}
		if err := aw.Close(); err != nil {
			return fmt.Errorf("compose attachment: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	return nil
}

func reportBody(res domain.CycleResult) string {
	var b strings.Builder
	b.WriteString("Here is your job application report. We've successfully applied to jobs on your behalf.\n\n")
	fmt.Fprintf(&b, "Jobs considered: %d\n", res.Considered)
	fmt.Fprintf(&b, "Applications attempted: %d (confirmed: %d)\n", res.Attempted, res.Submitted)
	fmt.Fprintf(&b, "Already applied, skipped: %d\n", res.Skipped)
	if res.Deferred > 0 {
		fmt.Fprintf(&b, "Deferred to the next run: %d\n", res.Deferred)
	}
	return b.String()
}

// SMTPSender dials host:port; port 465 uses implicit TLS, anything else STARTTLS.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (s SMTPSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	tlsCfg := &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}

	var (
		c   *smtp.Client
		err error
	)
	if s.Port == 465 {
		c, err = smtp.DialTLS(addr, tlsCfg)
	} else {
		c, err = smtp.DialStartTLS(addr, tlsCfg)
	}
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if s.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.Username, s.Password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.SendMail(from, to, bytes.NewReader(msg)); err != nil {
		return err
	}
	return c.Quit()
}
