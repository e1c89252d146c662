// Package config loads and saves orgsync's YAML settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// FileName is the per-directory config file looked up before the global one.
const FileName = ".orgsync.yaml"

type Config struct {
	// Provider selects the tracker: github or gitea.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	GiteaURL string `yaml:"giteaURL,omitempty" json:"giteaURL,omitempty"`

	// Output is the Org file synced when --output is not given.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
	State  string `yaml:"state,omitempty" json:"state,omitempty"`
	Limit  int    `yaml:"limit,omitempty" json:"limit,omitempty"`

	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	LinkTag string `yaml:"linkTag,omitempty" json:"linkTag,omitempty"`

	// Backup and Comments default to true when unset.
	Backup   *bool `yaml:"backup,omitempty" json:"backup,omitempty"`
	Comments *bool `yaml:"comments,omitempty" json:"comments,omitempty"`

	Prose             string `yaml:"prose,omitempty" json:"prose,omitempty"`
	OnConversionError string `yaml:"onConversionError,omitempty" json:"onConversionError,omitempty"`
	Commit            bool   `yaml:"commit,omitempty" json:"commit,omitempty"`

	Keywords Keywords `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	// Title overrides the #+TITLE written on first sync.
	Title string `yaml:"title,omitempty" json:"title,omitempty"`

	LogLevel string `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
}

type Keywords struct {
	Open string `yaml:"open,omitempty" json:"open,omitempty"`
	Done string `yaml:"done,omitempty" json:"done,omitempty"`
}

func Default() *Config {
	return &Config{
		Provider:          "github",
		State:             "open",
		Limit:             100,
		Timeout:           30 * time.Second,
		Concurrency:       4,
		LinkTag:           "LINK",
		Prose:             "markdown",
		OnConversionError: "fail",
		LogLevel:          "info",
	}
}

func (c *Config) BackupEnabled() bool   { return c.Backup == nil || *c.Backup }
func (c *Config) CommentsEnabled() bool { return c.Comments == nil || *c.Comments }

// Validate rejects values the sync pipeline cannot act on.
func (c *Config) Validate() error {
	switch c.Provider {
	case "github", "gitea":
	default:
		return fmt.Errorf("config: unknown provider %q (want github or gitea)", c.Provider)
	}
	switch c.State {
	case "open", "closed", "all":
	default:
		return fmt.Errorf("config: invalid state %q (want open, closed or all)", c.State)
	}
	switch c.OnConversionError {
	case "fail", "skip":
	default:
		return fmt.Errorf("config: invalid onConversionError %q (want fail or skip)", c.OnConversionError)
	}
	if c.Limit < 0 {
		return fmt.Errorf("config: limit must not be negative")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("config: concurrency must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	return nil
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.orgsync).
	if v := strings.TrimSpace(os.Getenv("ORGSYNC_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".orgsync"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// JournalPath is the SQLite sync history location.
func JournalPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.sqlite"), nil
}

// Load reads explicit when given (it must exist), else ./.orgsync.yaml, else the global
// config file. Missing implicit files yield defaults. Fields absent from the file keep
// their defaults. The returned path is the file actually read, or "".
func Load(explicit string) (*Config, string, error) {
	cfg := Default()

	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		if err := loadFile(explicit, cfg); err != nil {
			return nil, "", err
		}
		return cfg, explicit, nil
	}

	candidates := []string{FileName}
	if p, err := ConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	for _, p := range candidates {
		err := loadFile(p, cfg)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return cfg, p, nil
	}
	return cfg, "", nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return cfg.Validate()
}

// Save writes cfg to path, keeping a .bak copy of the previous file.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Best-effort safety net: keep a copy of the previous config to make recovery from
	// accidental overwrites easier. Ignore errors to avoid blocking normal usage.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomic.WriteFile(path+".bak", bytes.NewReader(prev))
	}
	return atomic.WriteFile(path, bytes.NewReader(b))
}
