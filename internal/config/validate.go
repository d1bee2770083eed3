package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Error() string {
	return "config validation failed:\n- " + strings.Join(v.Errors, "\n- ")
}

func trimList(xs []string) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		key := strings.ToLower(x)
		if seen[key] {
			continue
		}
		seen[key] = true
		ys = append(ys, x)
	}
	return ys
}

// NormalizeAndValidate returns a normalized copy and the problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Sources.Boards = trimList(out.Sources.Boards)
	for i, b := range out.Sources.Boards {
		out.Sources.Boards[i] = strings.ToLower(b)
	}
	out.Sources.Feeds = trimList(out.Sources.Feeds)
	out.Email.SearchSubjectAny = trimList(out.Email.SearchSubjectAny)
	out.Schedule.Cron = strings.TrimSpace(out.Schedule.Cron)
	if out.Ledger.File == "" {
		out.Ledger.File = "applied_jobs.csv"
	}

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Schedule.Cron == "" {
		res.addWarn("schedule.cron is empty; cycles run only on webhook or start.")
	} else if _, err := cron.ParseStandard(out.Schedule.Cron); err != nil {
		res.addErr("schedule.cron %q: %v", out.Schedule.Cron, err)
	}

	if out.Fetch.SourceDelaySeconds < 0 {
		res.addErr("fetch.source_delay_seconds must be >= 0")
	}
	if out.Fetch.TimeoutSeconds <= 0 {
		res.addErr("fetch.timeout_seconds must be > 0")
	}
	if out.Fetch.Parallel && out.Fetch.MaxParallel <= 0 {
		res.addErr("fetch.max_parallel must be > 0 when fetch.parallel=true")
	}
	if out.Fetch.HostRPS < 0 {
		res.addErr("fetch.host_rps must be >= 0")
	}

	if out.Apply.SubmitDelaySeconds < 0 {
		res.addErr("apply.submit_delay_seconds must be >= 0")
	} else if out.Apply.SubmitDelaySeconds == 0 {
		res.addWarn("apply.submit_delay_seconds is 0; submissions are not paced.")
	}

	if out.Ledger.MaxRows < 2 {
		res.addErr("ledger.max_rows must be >= 2")
	}

	if len(out.Sources.Boards) == 0 && len(out.Sources.Feeds) == 0 &&
		len(out.Sources.Lever.Companies) == 0 && len(out.Sources.Greenhouse.Companies) == 0 && !out.Email.Enabled {
		res.addWarn("no sources configured; cycles will find nothing.")
	}
	for i, c := range out.Sources.Lever.Companies {
		if strings.TrimSpace(c.Slug) == "" {
			res.addErr("sources.lever.companies[%d].slug is required", i)
		}
	}
	for i, c := range out.Sources.Greenhouse.Companies {
		if strings.TrimSpace(c.Slug) == "" {
			res.addErr("sources.greenhouse.companies[%d].slug is required", i)
		}
	}

	// password not required here; it lives in the keychain
	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.IMAPHost) == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Username) == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
		if len(out.Email.SearchSubjectAny) == 0 {
			res.addWarn("email.search_subject_any is empty; every recent message will be scanned.")
		}
	}

	if out.Report.Enabled {
		if strings.TrimSpace(out.Report.SMTPHost) == "" || out.Report.SMTPPort <= 0 {
			res.addErr("report.smtp_host and report.smtp_port are required when report.enabled=true")
		}
	}

	return out, res
}
