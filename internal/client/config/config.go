package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/openmined/treesync/internal/client/session"
	"github.com/openmined/treesync/internal/treebuilder"
	"github.com/openmined/treesync/internal/utils"
)

var (
	home, _             = os.UserHomeDir()
	DefaultConfigDir    = filepath.Join(home, ".treesync")
	DefaultConfigPath   = filepath.Join(DefaultConfigDir, "config.json")
	DefaultSnapshotPath = filepath.Join(DefaultConfigDir, "tree.json")
	DefaultJournalPath  = filepath.Join(DefaultConfigDir, "journal.db")
	DefaultServerURL    = "http://127.0.0.1:8000"
)

type Config struct {
	ServerURL          string   `json:"server_url" mapstructure:"server_url"`
	SnapshotPath       string   `json:"snapshot_path,omitempty" mapstructure:"snapshot_path"`
	JournalPath        string   `json:"journal_path,omitempty" mapstructure:"journal_path"`
	Mode               string   `json:"mode" mapstructure:"mode"`
	Concurrency        int      `json:"concurrency,omitempty" mapstructure:"concurrency"`
	ExcludedDirs       []string `json:"excluded_dirs,omitempty" mapstructure:"excluded_dirs"`
	ExcludedExtensions []string `json:"excluded_extensions,omitempty" mapstructure:"excluded_extensions"`
	Path               string   `json:"-" mapstructure:"config_path"`
}

// Validate normalizes paths and fills defaults.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url %q", c.ServerURL)
	}

	mode, err := session.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	c.Mode = string(mode)

	if c.Concurrency < 1 {
		c.Concurrency = treebuilder.DefaultConcurrency
	}

	for _, p := range []*string{&c.SnapshotPath, &c.JournalPath, &c.Path} {
		if *p == "" {
			continue
		}
		resolved, err := utils.ResolvePath(*p)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", *p, err)
		}
		*p = resolved
	}

	return nil
}

// SessionMode is the validated sync mode.
func (c *Config) SessionMode() session.Mode {
	mode, _ := session.ParseMode(c.Mode)
	return mode
}

// BuilderOptions turns the exclusion settings into tree builder options.
func (c *Config) BuilderOptions() []treebuilder.Option {
	return []treebuilder.Option{
		treebuilder.WithExcludedDirs(c.ExcludedDirs...),
		treebuilder.WithExcludedExtensions(c.ExcludedExtensions...),
		treebuilder.WithConcurrency(c.Concurrency),
	}
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func LoadClientConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
