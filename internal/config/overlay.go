package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CompaniesFile is the optional companies.yml kept next to config.yml.
type CompaniesFile struct {
	Sources struct {
		Lever struct {
			Companies []Company `yaml:"companies"`
		} `yaml:"lever"`
		Greenhouse struct {
			Companies []Company `yaml:"companies"`
		} `yaml:"greenhouse"`
	} `yaml:"sources"`
}

// OverlayCompanies replaces company lists with those in companiesPath.
func OverlayCompanies(cfg *Config, companiesPath string) error {
	b, err := os.ReadFile(companiesPath)
	if errors.Is(err, os.ErrNotExist) {
		// missing companies file should not kill startup
		return nil
	}
	if err != nil {
		return err
	}

	var cf CompaniesFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return err
	}

	if len(cf.Sources.Greenhouse.Companies) > 0 {
		cfg.Sources.Greenhouse.Companies = cf.Sources.Greenhouse.Companies
	}
	if len(cf.Sources.Lever.Companies) > 0 {
		cfg.Sources.Lever.Companies = cf.Sources.Lever.Companies
	}
	return nil
}

// OverlayEnv applies process environment overrides.
func OverlayEnv(cfg *Config) {
	if v := os.Getenv("JOBBOT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = p
		}
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		if cfg.Report.Username == "" {
			cfg.Report.Username = v
		}
		if cfg.Report.From == "" {
			cfg.Report.From = v
		}
	}
}
