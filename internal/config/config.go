// Package config loads engine settings (config.yml) and the per-cycle
// configuration snapshot (config.json).
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Company struct {
	Slug string `yaml:"slug" json:"slug"`
	Name string `yaml:"name" json:"name"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`

	Fetch struct {
		SourceDelaySeconds int     `yaml:"source_delay_seconds"`
		TimeoutSeconds     int     `yaml:"timeout_seconds"`
		Parallel           bool    `yaml:"parallel"`
		MaxParallel        int     `yaml:"max_parallel"`
		HostRPS            float64 `yaml:"host_rps"`
		HostBurst          int     `yaml:"host_burst"`
	} `yaml:"fetch"`

	Apply struct {
		SubmitDelaySeconds int    `yaml:"submit_delay_seconds"`
		UserAgent          string `yaml:"user_agent"`
	} `yaml:"apply"`

	Ledger struct {
		File    string `yaml:"file"`
		MaxRows int    `yaml:"max_rows"`
	} `yaml:"ledger"`

	Sources struct {
		Boards []string `yaml:"boards"`
		Feeds  []string `yaml:"feeds"`
		Lever  struct {
			Companies []Company `yaml:"companies"`
		} `yaml:"lever"`
		Greenhouse struct {
			Companies []Company `yaml:"companies"`
		} `yaml:"greenhouse"`
	} `yaml:"sources"`

	Email struct {
		Enabled          bool     `yaml:"enabled"`
		IMAPHost         string   `yaml:"imap_host"`
		IMAPPort         int      `yaml:"imap_port"`
		Username         string   `yaml:"username"`
		Mailbox          string   `yaml:"mailbox"`
		LookbackDays     int      `yaml:"lookback_days"`
		MaxMessages      int      `yaml:"max_messages"`
		SearchSubjectAny []string `yaml:"search_subject_any"`
	} `yaml:"email"`

	Report struct {
		Enabled  bool   `yaml:"enabled"`
		SMTPHost string `yaml:"smtp_host"`
		SMTPPort int    `yaml:"smtp_port"`
		Username string `yaml:"username"`
		From     string `yaml:"from"`
	} `yaml:"report"`
}

func Default() Config {
	var c Config
	c.App.Port = 5000
	c.App.DataDir = "data"
	c.Schedule.Cron = "@every 1h"
	c.Schedule.RunOnStart = true
	c.Fetch.SourceDelaySeconds = 3
	c.Fetch.TimeoutSeconds = 30
	c.Fetch.MaxParallel = 4
	c.Fetch.HostRPS = 1
	c.Fetch.HostBurst = 2
	c.Apply.SubmitDelaySeconds = 5
	c.Ledger.File = "applied_jobs.csv"
	c.Ledger.MaxRows = 1000
	c.Sources.Boards = []string{"remotive", "remoteok", "weworkremotely", "jobspresso", "remoteco"}
	c.Email.IMAPPort = 993
	c.Email.Mailbox = "INBOX"
	c.Email.LookbackDays = 7
	c.Email.MaxMessages = 200
	c.Report.Enabled = true
	c.Report.SMTPHost = "smtp.mail.yahoo.com"
	c.Report.SMTPPort = 465
	return c
}

// Load reads path over the defaults, so omitted keys keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) SourceDelay() time.Duration {
	return time.Duration(c.Fetch.SourceDelaySeconds) * time.Second
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

func (c Config) SubmitDelay() time.Duration {
	return time.Duration(c.Apply.SubmitDelaySeconds) * time.Second
}
