package secrets

import (
	"strings"

	"github.com/zalando/go-keyring"

	"bidbot-engine/internal/errs"
)

const (
	// “Service” groups the app’s secrets in the OS keychain.
	KeyringService = "bidbot"
)

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errs.New("keyring account name is empty")
	}
	v, err := keyring.Get(KeyringService, account)
	if errs.Is(err, keyring.ErrNotFound) {
		return "", errs.Wrapf(errs.ErrNotFound, "secret %s", account)
	}
	if err != nil {
		return "", errs.Wrapf(err, "read secret %s", account)
	}
	return v, nil
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errs.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errs.New("secret value is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errs.New("keyring account name is empty")
	}
	err := keyring.Delete(KeyringService, account)
	if errs.Is(err, keyring.ErrNotFound) {
		return errs.Wrapf(errs.ErrNotFound, "secret %s", account)
	}
	return err
}

// Resolve prefers the keychain and falls back to envValue. An unreachable
// keychain (headless servers) is treated like a missing entry.
func Resolve(account, envValue string) (string, error) {
	if v, err := Get(account); err == nil && strings.TrimSpace(v) != "" {
		return v, nil
	}
	if v := strings.TrimSpace(envValue); v != "" {
		return v, nil
	}
	return "", errs.WithHintf(errs.Wrapf(errs.ErrNotFound, "secret %s", account),
		"store it with `bidbot secrets set %s` or set the matching environment variable", account)
}

func AIAccount(provider string) string { return "ai:" + strings.ToLower(provider) }

func MarketplaceAccount(email string) string { return "marketplace:" + strings.ToLower(email) }
