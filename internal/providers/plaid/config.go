package plaid

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Config is the provider section decoded from the global configuration.
type Config struct {
	ClientID    string   `toml:"client_id"`
	Secret      string   `toml:"secret"`
	SecretCmd   []string `toml:"secret_cmd"`
	Environment string   `toml:"environment"`
	Country     string   `toml:"country"`

	Accounts map[string]Account `toml:"accounts"`
}

// Account is one monitored Plaid item.
type Account struct {
	// Exclude lists sub-accounts to skip when polling, matched against
	// the Plaid account ID or the account mask (last digits).
	Exclude []string `toml:"exclude"`
}

func (c *Config) validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}

	hasSecret := c.Secret != "" || os.Getenv("BANKFEED_PLAID_SECRET") != ""
	hasCmd := len(c.SecretCmd) > 0
	if hasSecret == hasCmd {
		return fmt.Errorf("exactly one of secret and secret_cmd must be set")
	}

	switch c.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("invalid environment %q (want sandbox or production)", c.Environment)
	}

	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	return nil
}

// resolveSecret returns the API secret, either inline, from the
// BANKFEED_PLAID_SECRET environment variable, or by running the
// configured retrieval command and reading its stdout.
func (c *Config) resolveSecret() (string, error) {
	if secret := os.Getenv("BANKFEED_PLAID_SECRET"); secret != "" {
		return secret, nil
	}
	if c.Secret != "" {
		return c.Secret, nil
	}

	cmd := exec.Command(c.SecretCmd[0], c.SecretCmd[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("resolveSecret: running %s: %w", c.SecretCmd[0], err)
	}

	secret := strings.TrimSpace(string(out))
	if secret == "" {
		return "", fmt.Errorf("resolveSecret: %s produced no output", c.SecretCmd[0])
	}
	return secret, nil
}

func (c *Config) country() string {
	if c.Country == "" {
		return "US"
	}
	return strings.ToUpper(c.Country)
}
