package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"updatehook/internal/security"
	"updatehook/pkg/cmdutil"
	"updatehook/pkg/fileutil"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 3000
	DefaultSecret          = security.PlaceholderSecret
	DefaultUpdateScript    = "/opt/fivem/scripts/update-hook.sh"
	DefaultLogFile         = "/var/log/webhook-listener.log"
	DefaultBranch          = "main"
	DefaultShell           = "bash"
	DefaultMaxPayloadBytes = 25 << 20 // GitHub caps payloads at 25 MB

	LogFormatLine = "line"
	LogFormatJSON = "json"

	// FileName is the config file looked up in the default search paths.
	FileName = "updatehook.yaml"
)

// Environment variables read by ApplyEnv.
const (
	EnvPort          = "WEBHOOK_PORT"
	EnvSecret        = "GITHUB_SECRET"
	EnvHost          = "UPDATEHOOK_HOST"
	EnvUpdateScript  = "UPDATEHOOK_SCRIPT"
	EnvUpdateCommand = "UPDATEHOOK_COMMAND"
	EnvUpdateTimeout = "UPDATEHOOK_UPDATE_TIMEOUT"
	EnvLogFile       = "UPDATEHOOK_LOG_FILE"
	EnvLogFormat     = "UPDATEHOOK_LOG_FORMAT"
	EnvBranch        = "UPDATEHOOK_BRANCH"
	EnvRateLimit     = "UPDATEHOOK_RATE_LIMIT"
)

// Config is the process-wide listener configuration. It is built once at
// startup and must not be mutated after Validate succeeds.
type Config struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Secret          string `yaml:"secret"`
	UpdateScript    string `yaml:"update_script"`
	UpdateCommand   string `yaml:"update_command"`
	UpdateTimeout   int    `yaml:"update_timeout"` // seconds, 0 = no limit
	LogFile         string `yaml:"log_file"`
	LogFormat       string `yaml:"log_format"`
	Branch          string `yaml:"branch"`
	MaxPayloadBytes int64  `yaml:"max_payload_bytes"`
	RateLimit       int    `yaml:"rate_limit"` // requests per minute per IP, 0 = off
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:            DefaultPort,
		Secret:          DefaultSecret,
		UpdateScript:    DefaultUpdateScript,
		LogFile:         DefaultLogFile,
		LogFormat:       LogFormatLine,
		Branch:          DefaultBranch,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
	}
}

// Load reads defaults, then overlays the YAML file at path (if non-empty).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// ApplyEnv overlays values from the environment. lookup is usually
// os.LookupEnv; empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	}

	if v, ok := get(EnvHost); ok {
		c.Host = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = port
	}
	if v, ok := get(EnvSecret); ok {
		c.Secret = v
	}
	if v, ok := get(EnvUpdateScript); ok {
		c.UpdateScript = v
	}
	if v, ok := get(EnvUpdateCommand); ok {
		c.UpdateCommand = v
	}
	if v, ok := get(EnvUpdateTimeout); ok {
		timeout, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvUpdateTimeout, v, err)
		}
		c.UpdateTimeout = timeout
	}
	if v, ok := get(EnvLogFile); ok {
		c.LogFile = v
	}
	if v, ok := get(EnvLogFormat); ok {
		c.LogFormat = v
	}
	if v, ok := get(EnvBranch); ok {
		c.Branch = v
	}
	if v, ok := get(EnvRateLimit); ok {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRateLimit, v, err)
		}
		c.RateLimit = limit
	}

	c.normalize()
	return nil
}

// normalize restores defaults for values that were explicitly blanked.
func (c *Config) normalize() {
	if c.Secret == "" {
		c.Secret = DefaultSecret
	}
	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.LogFormat == "" {
		c.LogFormat = LogFormatLine
	}
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("  - port must be between 1 and 65535, got %d", c.Port))
	}

	if err := security.ValidateBranchName(c.Branch); err != nil {
		errs = append(errs, fmt.Sprintf("  - branch: %v", err))
	}

	if c.UpdateCommand == "" {
		if _, err := security.SanitizePath(c.UpdateScript); err != nil {
			errs = append(errs, fmt.Sprintf("  - update_script: %v", err))
		}
	} else if _, err := cmdutil.ParseCommandString(c.UpdateCommand); err != nil {
		errs = append(errs, fmt.Sprintf("  - update_command: %v", err))
	}

	if c.UpdateTimeout < 0 {
		errs = append(errs, fmt.Sprintf("  - update_timeout must not be negative, got %d", c.UpdateTimeout))
	}

	if c.LogFile == "" {
		errs = append(errs, "  - log_file must not be empty")
	}

	if c.LogFormat != LogFormatLine && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Sprintf("  - log_format must be %q or %q, got %q", LogFormatLine, LogFormatJSON, c.LogFormat))
	}

	if c.MaxPayloadBytes < 0 {
		errs = append(errs, fmt.Sprintf("  - max_payload_bytes must not be negative, got %d", c.MaxPayloadBytes))
	}

	if c.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("  - rate_limit must not be negative, got %d", c.RateLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

// Warnings returns non-fatal issues worth logging at startup.
func (c *Config) Warnings() []string {
	var warnings []string

	if !c.SignatureRequired() {
		warnings = append(warnings, "No webhook secret configured; signature verification is disabled")
	} else if security.ValidateSecret(c.Secret) != nil {
		warnings = append(warnings, "Webhook secret looks weak; generate one with 'updatehook secret'")
	}

	if c.UpdateCommand == "" && !fileutil.FileExists(c.UpdateScript) {
		warnings = append(warnings, fmt.Sprintf("Update script %s does not exist yet", c.UpdateScript))
	}

	return warnings
}

// SignatureRequired reports whether requests must carry a valid
// X-Hub-Signature-256 header. Verification is skipped while the secret is
// still the documented placeholder.
func (c *Config) SignatureRequired() bool {
	return !security.IsPlaceholderSecret(c.Secret)
}

// TargetRef is the git ref whose pushes trigger an update.
func (c *Config) TargetRef() string {
	return "refs/heads/" + c.Branch
}

// Addr is the listen address for net/http.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CommandLine returns the argv of the update action. Nothing from a
// webhook request is ever part of it.
func (c *Config) CommandLine() ([]string, error) {
	if c.UpdateCommand != "" {
		return cmdutil.ParseCommandString(c.UpdateCommand)
	}
	return []string{DefaultShell, c.UpdateScript}, nil
}

// UpdateTimeoutDuration converts UpdateTimeout to a time.Duration.
func (c *Config) UpdateTimeoutDuration() time.Duration {
	return time.Duration(c.UpdateTimeout) * time.Second
}
