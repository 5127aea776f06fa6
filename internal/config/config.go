package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	// DefaultMonitorDays is the monitoring look-back window. Most banks
	// return roughly the last month of bookings without a fresh strong
	// authentication, so this is also the dedup retention window.
	DefaultMonitorDays = 31

	// DefaultPollTimeout bounds a single connector poll or setup call.
	DefaultPollTimeout = 5 * time.Minute

	// DefaultPollWorkers is the size of the bounded pool polling
	// distinct accounts concurrently.
	DefaultPollWorkers = 4
)

// Storage holds the document store connection descriptor.
type Storage struct {
	Mongo string `toml:"mongo"`
}

// Notion configures the optional Notion notification sink.
type Notion struct {
	Token      string `toml:"token"`
	DatabaseID string `toml:"database_id"`
}

// Notification lists the delivery targets for emitted events.
type Notification struct {
	Endpoints []string `toml:"endpoints"`
	Notion    *Notion  `toml:"notion"`
}

// Config is the validated, in-memory configuration consumed by the rest
// of the process. Provider sections stay opaque (toml.Primitive) until
// the owning provider decodes them via DecodeProvider.
type Config struct {
	MonitorDays  int
	PollTimeout  time.Duration
	PollWorkers  int
	Storage      Storage
	Notification Notification

	providers map[string]toml.Primitive
	meta      toml.MetaData
}

// DefaultPath resolves the per-user default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "bankfeed", "config.toml")
}

// Load reads and validates the TOML configuration at path. A .env file in
// the working directory is honored, and BANKFEED_MONGO_URI /
// BANKFEED_NOTION_TOKEN override their config counterparts so secrets can
// stay out of the file.
func Load(path string) (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	sections := make(map[string]toml.Primitive)
	meta, err := toml.DecodeFile(path, &sections)
	if err != nil {
		return nil, fmt.Errorf("Load: decoding %s: %w", path, err)
	}

	cfg := &Config{
		MonitorDays: DefaultMonitorDays,
		PollTimeout: DefaultPollTimeout,
		PollWorkers: DefaultPollWorkers,
		providers:   make(map[string]toml.Primitive),
		meta:        meta,
	}

	for key, prim := range sections {
		switch key {
		case "monitor_days":
			if err := meta.PrimitiveDecode(prim, &cfg.MonitorDays); err != nil {
				return nil, fmt.Errorf("Load: monitor_days: %w", err)
			}
		case "poll_timeout":
			var raw string
			if err := meta.PrimitiveDecode(prim, &raw); err != nil {
				return nil, fmt.Errorf("Load: poll_timeout: %w", err)
			}
			d, err := ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("Load: poll_timeout: %w", err)
			}
			cfg.PollTimeout = d
		case "poll_workers":
			if err := meta.PrimitiveDecode(prim, &cfg.PollWorkers); err != nil {
				return nil, fmt.Errorf("Load: poll_workers: %w", err)
			}
		case "storage":
			if err := meta.PrimitiveDecode(prim, &cfg.Storage); err != nil {
				return nil, fmt.Errorf("Load: storage: %w", err)
			}
		case "notification":
			if err := meta.PrimitiveDecode(prim, &cfg.Notification); err != nil {
				return nil, fmt.Errorf("Load: notification: %w", err)
			}
		default:
			// Everything else is a provider section, decoded later by
			// whichever registered provider owns the key.
			cfg.providers[key] = prim
		}
	}

	cfg.Storage.Mongo = getEnv("BANKFEED_MONGO_URI", cfg.Storage.Mongo)
	if cfg.Notification.Notion != nil {
		cfg.Notification.Notion.Token = getEnv("BANKFEED_NOTION_TOKEN", cfg.Notification.Notion.Token)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.Mongo == "" {
		return fmt.Errorf("storage.mongo is required")
	}
	if c.MonitorDays <= 0 {
		return fmt.Errorf("monitor_days must be positive, got %d", c.MonitorDays)
	}
	if c.PollWorkers <= 0 {
		return fmt.Errorf("poll_workers must be positive, got %d", c.PollWorkers)
	}
	if c.Notification.Notion != nil {
		if c.Notification.Notion.Token == "" || c.Notification.Notion.DatabaseID == "" {
			return fmt.Errorf("notification.notion requires both token and database_id")
		}
	}
	return nil
}

// Window returns the monitoring window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.MonitorDays) * 24 * time.Hour
}

// HasProvider reports whether a section for the given provider exists.
func (c *Config) HasProvider(name string) bool {
	_, ok := c.providers[name]
	return ok
}

// DecodeProvider decodes the raw section for the named provider into v.
// Providers without a section are simply not configured; callers should
// check HasProvider first.
func (c *Config) DecodeProvider(name string, v interface{}) error {
	prim, ok := c.providers[name]
	if !ok {
		return fmt.Errorf("DecodeProvider: no %q section in config", name)
	}
	if err := c.meta.PrimitiveDecode(prim, v); err != nil {
		return fmt.Errorf("DecodeProvider: %s: %w", name, err)
	}
	return nil
}

var dayPattern = regexp.MustCompile(`^(\d+)d$`)

// ParseDuration parses the config duration syntax: any Go duration form
// ("30s", "5m", "1h30m") plus a plain day suffix ("31d").
func ParseDuration(raw string) (time.Duration, error) {
	if match := dayPattern.FindStringSubmatch(raw); match != nil {
		days, err := strconv.Atoi(match[1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (want e.g. \"30s\", \"1h30m\", \"1d\")", raw)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
