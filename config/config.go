// Package config loads the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/escalation"
	"github.com/heibot/chatguard/notice"
	"github.com/heibot/chatguard/redact"
	"github.com/heibot/chatguard/rules"
	"github.com/heibot/chatguard/visibility"
)

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "CHATGUARD_CONFIG"

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendTiDB     = "tidb"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Redaction configures masking.
type Redaction struct {
	Placeholder       string `yaml:"placeholder"`
	RevealPrefix      int    `yaml:"reveal_prefix"`
	RevealSuffix      int    `yaml:"reveal_suffix"`
	MaskAllCategories bool   `yaml:"mask_all_categories"`
}

// Rules adjusts the built-in catalogue.
type Rules struct {
	// Disabled lists built-in rule IDs to drop.
	Disabled []string `yaml:"disabled"`

	// Extra rules are added to the catalogue.
	Extra []rules.Def `yaml:"extra"`
}

// Ledger selects and configures the violation ledger.
type Ledger struct {
	Backend string `yaml:"backend"`

	// SQL backends
	DSN          string `yaml:"dsn"`
	Driver       string `yaml:"driver"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	Migrate      bool   `yaml:"migrate"`

	// Redis backend
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
	HistoryLimit  int    `yaml:"history_limit"`

	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	RetryWrites bool          `yaml:"retry_writes"`
}

// Server configures the HTTP adapter.
type Server struct {
	Addr string `yaml:"addr"`
	Lang string `yaml:"lang"`

	// Visibility is the delivery policy for blocked messages.
	Visibility visibility.Policy `yaml:"visibility"`
}

// Config is the top-level configuration.
type Config struct {
	Policy    escalation.Policy `yaml:"policy"`
	Redaction Redaction         `yaml:"redaction"`
	Rules     Rules             `yaml:"rules"`
	Ledger    Ledger            `yaml:"ledger"`
	Server    Server            `yaml:"server"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Policy: escalation.DefaultPolicy(),
		Redaction: Redaction{
			Placeholder:  chatguard.DefaultPlaceholder,
			RevealPrefix: chatguard.DefaultRevealPrefix,
			RevealSuffix: chatguard.DefaultRevealSuffix,
		},
		Ledger: Ledger{
			Backend:    BackendMemory,
			Migrate:    true,
			KeyPrefix:  "chatguard",
			MaxRetries: 2,
			RetryDelay: 20 * time.Millisecond,
		},
		Server: Server{
			Addr:       ":8080",
			Lang:       notice.DefaultLang,
			Visibility: visibility.PolicyFiltered,
		},
	}
}

// Load reads the configuration at path. An empty path falls back to
// $CHATGUARD_CONFIG, and to Default() when that is unset too. Fields absent
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", chatguard.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, including compiling the rule overrides.
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: policy: %w", chatguard.ErrInvalidConfig, err)
	}
	if c.Redaction.RevealPrefix < 0 || c.Redaction.RevealSuffix < 0 {
		return fmt.Errorf("%w: redaction reveal counts must not be negative", chatguard.ErrInvalidConfig)
	}

	switch c.Ledger.Backend {
	case BackendMemory, BackendRedis:
	case BackendSQLite, BackendMySQL, BackendTiDB, BackendPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("%w: ledger.dsn is required for backend %q", chatguard.ErrInvalidConfig, c.Ledger.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown ledger backend %q", chatguard.ErrInvalidConfig, c.Ledger.Backend)
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("%w: ledger.max_retries must not be negative", chatguard.ErrInvalidConfig)
	}

	switch c.Server.Visibility {
	case visibility.PolicyFiltered, visibility.PolicyReplaceOnViolation, visibility.PolicySenderOnlyOnViolation:
	default:
		return fmt.Errorf("%w: unknown server.visibility %q", chatguard.ErrInvalidConfig, c.Server.Visibility)
	}

	if _, err := c.RuleSet(); err != nil {
		return fmt.Errorf("%w: rules: %w", chatguard.ErrInvalidConfig, err)
	}
	return nil
}

// RuleSet builds the catalogue: the built-in rules minus Disabled plus Extra.
func (c *Config) RuleSet() (*rules.Set, error) {
	return rules.Build(rules.Default(), c.Rules.Disabled, c.Rules.Extra)
}

// EscalationPolicy returns the configured thresholds.
func (c *Config) EscalationPolicy() escalation.Policy {
	return c.Policy
}

// RedactorOptions returns the options for redact.New.
func (c *Config) RedactorOptions() []redact.Option {
	return []redact.Option{
		redact.WithPlaceholder(c.Redaction.Placeholder),
		redact.WithReveal(c.Redaction.RevealPrefix, c.Redaction.RevealSuffix),
	}
}
