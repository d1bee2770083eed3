package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"jobbot-engine/internal/config"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "jobbot"

	// EnvPassword is the fallback for both mail accounts.
	EnvPassword = "EMAIL_PASS"
)

var ErrNotFound = errors.New("password not found (set it in keychain or via EMAIL_PASS)")

// GetPassword tries the keychain first, then EMAIL_PASS.
func GetPassword(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := os.Getenv(EnvPassword); strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	return "", ErrNotFound
}

func SetPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeletePassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf("jobbot:imap:%s@%s", cfg.Email.Username, cfg.Email.IMAPHost)
}

func SMTPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf("jobbot:smtp:%s@%s", cfg.Report.Username, cfg.Report.SMTPHost)
}
