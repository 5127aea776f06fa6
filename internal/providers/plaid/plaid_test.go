package plaid

import (
	"strings"
	"testing"

	plaidapi "github.com/plaid/plaid-go/v41/plaid"
)

func validConfig() Config {
	return Config{
		ClientID:    "client",
		Secret:      "secret",
		Environment: "sandbox",
		Accounts: map[string]Account{
			"checking": {},
		},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("BANKFEED_PLAID_SECRET", "")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "secret command instead of inline secret",
			mutate: func(c *Config) { c.Secret = ""; c.SecretCmd = []string{"pass", "plaid"} },
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.ClientID = "" },
			wantErr: "client_id",
		},
		{
			name:    "no secret at all",
			mutate:  func(c *Config) { c.Secret = "" },
			wantErr: "exactly one",
		},
		{
			name:    "both secret and secret command",
			mutate:  func(c *Config) { c.SecretCmd = []string{"pass", "plaid"} },
			wantErr: "exactly one",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "staging" },
			wantErr: "environment",
		},
		{
			name:    "no accounts",
			mutate:  func(c *Config) { c.Accounts = nil },
			wantErr: "at least one account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveSecret(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		t.Setenv("BANKFEED_PLAID_SECRET", "")
		cfg := Config{Secret: "inline-secret"}
		got, err := cfg.resolveSecret()
		if err != nil {
			t.Fatalf("resolveSecret() error = %v", err)
		}
		if got != "inline-secret" {
			t.Errorf("resolveSecret() = %q, want %q", got, "inline-secret")
		}
	})

	t.Run("environment override wins", func(t *testing.T) {
		t.Setenv("BANKFEED_PLAID_SECRET", "env-secret")
		cfg := Config{Secret: "inline-secret"}
		got, err := cfg.resolveSecret()
		if err != nil {
			t.Fatalf("resolveSecret() error = %v", err)
		}
		if got != "env-secret" {
			t.Errorf("resolveSecret() = %q, want %q", got, "env-secret")
		}
	})

	t.Run("command output is trimmed", func(t *testing.T) {
		t.Setenv("BANKFEED_PLAID_SECRET", "")
		cfg := Config{SecretCmd: []string{"echo", "cmd-secret"}}
		got, err := cfg.resolveSecret()
		if err != nil {
			t.Fatalf("resolveSecret() error = %v", err)
		}
		if got != "cmd-secret" {
			t.Errorf("resolveSecret() = %q, want %q", got, "cmd-secret")
		}
	})

	t.Run("failing command", func(t *testing.T) {
		t.Setenv("BANKFEED_PLAID_SECRET", "")
		cfg := Config{SecretCmd: []string{"false"}}
		if _, err := cfg.resolveSecret(); err == nil {
			t.Fatal("resolveSecret() error = nil, want error")
		}
	})
}

func TestCountryDefault(t *testing.T) {
	cfg := Config{}
	if got := cfg.country(); got != "US" {
		t.Errorf("country() = %q, want %q", got, "US")
	}

	cfg.Country = "de"
	if got := cfg.country(); got != "DE" {
		t.Errorf("country() = %q, want %q", got, "DE")
	}
}

func TestStateRoundTrip(t *testing.T) {
	original := &state{AccessToken: "access-token", ItemID: "item-id"}

	raw, err := original.encode()
	if err != nil {
		t.Fatalf("encode() error = %v", err)
	}

	decoded, err := decodeState(raw)
	if err != nil {
		t.Fatalf("decodeState() error = %v", err)
	}
	if *decoded != *original {
		t.Errorf("decodeState() = %+v, want %+v", decoded, original)
	}
}

func TestDecodeStateMissingToken(t *testing.T) {
	if _, err := decodeState([]byte(`{"item_id":"item"}`)); err == nil {
		t.Fatal("decodeState() error = nil, want error for missing access token")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{12.5, "-12.5"},   // Plaid outflow becomes a debit
		{-200, "200"},     // Plaid inflow becomes a credit
		{0, "0"},
		{3.14, "-3.14"},
	}

	for _, tt := range tests {
		if got := formatAmount(tt.amount); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestExcludedAccounts(t *testing.T) {
	var checking, savings plaidapi.AccountBase
	checking.SetAccountId("acc-checking")
	checking.SetMask("1111")
	savings.SetAccountId("acc-savings")
	savings.SetMask("2222")

	accounts := []plaidapi.AccountBase{checking, savings}

	t.Run("no exclusions", func(t *testing.T) {
		if got := excludedAccounts(accounts, nil); got != nil {
			t.Errorf("excludedAccounts() = %v, want nil", got)
		}
	})

	t.Run("by account id", func(t *testing.T) {
		got := excludedAccounts(accounts, []string{"acc-savings"})
		if !got["acc-savings"] || got["acc-checking"] {
			t.Errorf("excludedAccounts() = %v, want only acc-savings", got)
		}
	})

	t.Run("by mask", func(t *testing.T) {
		got := excludedAccounts(accounts, []string{"1111"})
		if !got["acc-checking"] || got["acc-savings"] {
			t.Errorf("excludedAccounts() = %v, want only acc-checking", got)
		}
	})
}

func TestReadLine(t *testing.T) {
	c := &Connector{in: strings.NewReader("  public-token-abc  \n")}
	got, err := c.readLine()
	if err != nil {
		t.Fatalf("readLine() error = %v", err)
	}
	if got != "public-token-abc" {
		t.Errorf("readLine() = %q, want %q", got, "public-token-abc")
	}

	c = &Connector{in: strings.NewReader("\n")}
	if _, err := c.readLine(); err == nil {
		t.Fatal("readLine() error = nil, want error for empty input")
	}
}
