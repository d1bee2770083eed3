package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ResolveDataDir picks JOBBOT_DATA_DIR, then the fallback, and creates it.
func ResolveDataDir(fallback string) (string, error) {
	dir := os.Getenv("JOBBOT_DATA_DIR")
	if dir == "" {
		dir = fallback
	}
	if dir == "" {
		dir = "data"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return abs, os.MkdirAll(abs, 0o755)
}

// EnsureUserConfig returns <dataDir>/config.yml, writing the defaults there
// (or copying defaultPath when given) the first time.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	var b []byte
	if defaultPath != "" {
		b, err = os.ReadFile(defaultPath)
	} else {
		b, err = yaml.Marshal(Default())
	}
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	return userPath, os.WriteFile(userPath, b, 0o644)
}
