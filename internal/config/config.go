package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedScheme is returned when a scheme has no entry in the
// scheme version table. Pinning an unknown scheme is fatal, never defaulted.
var ErrUnsupportedScheme = errors.New("scheme not in the version table")

// Config holds all swiftpkg configuration.
type Config struct {
	// Upstream checkout settings
	SwiftRepoURL string `yaml:"swift_repo_url"`
	ConfigPath   string `yaml:"config_path"`

	// PrimaryRepo anchors the derived package version string.
	PrimaryRepo string `yaml:"primary_repo"`

	// OutputDir receives version.inc, source.inc and rename.inc.
	OutputDir string `yaml:"output_dir"`

	// Commit resolution
	GitHubAPIURL   string `yaml:"github_api_url"`
	GitHubToken    string `yaml:"github_token"`
	ResolveTimeout string `yaml:"resolve_timeout"`
	CloneTimeout   string `yaml:"clone_timeout"`
	Parallelism    int    `yaml:"parallelism"`

	// SchemeVersions maps a branch scheme to its nominal package version.
	SchemeVersions map[string]string `yaml:"scheme_versions"`

	// Fedora release lookup
	Fedora FedoraConfig `yaml:"fedora"`

	// Slack notifications
	Notify NotifyConfig `yaml:"notify"`
}

// FedoraConfig configures the Fedora release lookup endpoints.
type FedoraConfig struct {
	EOLURL        string `yaml:"eol_url"`
	MirrorlistURL string `yaml:"mirrorlist_url"`
	Timeout       string `yaml:"timeout"`
}

// NotifyConfig configures the Slack webhook sender.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Timeout    string `yaml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SwiftRepoURL: "https://github.com/swiftlang/swift",
		ConfigPath:   "utils/update_checkout/update-checkout-config.json",
		PrimaryRepo:  "swift",
		OutputDir:    ".",

		GitHubAPIURL:   "https://api.github.com",
		ResolveTimeout: "60s",
		CloneTimeout:   "10m",
		Parallelism:    4,

		SchemeVersions: map[string]string{
			"release/6.0": "6.0",
			// main is provisional
			"main": "6.1",
		},

		Fedora: FedoraConfig{
			EOLURL:        "https://endoflife.date/api/fedora.json",
			MirrorlistURL: "https://mirrors.fedoraproject.org/mirrorlist?repo=nonexistent&arch=x86_64",
			Timeout:       "30s",
		},

		Notify: NotifyConfig{
			Timeout: "30s",
		},
	}
}

// Load loads configuration from a YAML file, merged over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.PrimaryRepo == "" {
		return fmt.Errorf("primary_repo must not be empty")
	}
	if c.ConfigPath == "" {
		return fmt.Errorf("config_path must not be empty")
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	return nil
}

// SchemeVersion returns the nominal package version for a branch scheme.
func (c *Config) SchemeVersion(scheme string) (string, error) {
	version, ok := c.SchemeVersions[scheme]
	if !ok || version == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return version, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		c.GitHubToken = token
	}
	if dir := os.Getenv("SWIFTPKG_OUTPUT_DIR"); dir != "" {
		c.OutputDir = dir
	}
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		c.Notify.WebhookURL = url
	}
}

// GetResolveTimeout returns the per-lookup resolution timeout as a duration.
func (c *Config) GetResolveTimeout() time.Duration {
	d, err := time.ParseDuration(c.ResolveTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetCloneTimeout returns the per-repository clone timeout as a duration.
func (c *Config) GetCloneTimeout() time.Duration {
	d, err := time.ParseDuration(c.CloneTimeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetFedoraTimeout returns the Fedora lookup timeout as a duration.
func (c *Config) GetFedoraTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fedora.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetNotifyTimeout returns the webhook send timeout as a duration.
func (c *Config) GetNotifyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Notify.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
