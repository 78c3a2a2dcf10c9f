package server

import (
	"errors"
	"fmt"

	"github.com/openmined/treesync/internal/server/authority"
	"github.com/openmined/treesync/internal/treebuilder"
	"github.com/openmined/treesync/internal/utils"
)

const DefaultAddr = "127.0.0.1:8000"

var (
	ErrRootAndSnapshot  = errors.New("tree root and tree snapshot are mutually exclusive")
	ErrWatchWithoutRoot = errors.New("tree watch requires a tree root")
)

type Config struct {
	HTTP         HTTPConfig `mapstructure:"http"`
	Tree         TreeConfig `mapstructure:"tree"`
	AdminEnabled bool       `mapstructure:"admin_enabled"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// TreeConfig describes where the authority tree comes from. With Root the tree
// is built from disk (and optionally kept fresh with Watch), with SnapshotPath it
// is loaded from a saved snapshot, otherwise it starts empty.
type TreeConfig struct {
	Root               string   `mapstructure:"root"`
	SnapshotPath       string   `mapstructure:"snapshot"`
	ExcludedDirs       []string `mapstructure:"excluded_dirs"`
	ExcludedExtensions []string `mapstructure:"excluded_extensions"`
	Concurrency        int      `mapstructure:"concurrency"`
	Watch              bool     `mapstructure:"watch"`
	HistorySize        int      `mapstructure:"history_size"`
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}

	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return fmt.Errorf("both cert and key files are required for tls")
	}

	if c.Tree.Root != "" && c.Tree.SnapshotPath != "" {
		return ErrRootAndSnapshot
	}

	if c.Tree.Watch && c.Tree.Root == "" {
		return ErrWatchWithoutRoot
	}

	if c.Tree.Root != "" {
		root, err := utils.ResolvePath(c.Tree.Root)
		if err != nil {
			return fmt.Errorf("tree root: %w", err)
		}
		c.Tree.Root = root
	}

	if c.Tree.SnapshotPath != "" {
		path, err := utils.ResolvePath(c.Tree.SnapshotPath)
		if err != nil {
			return fmt.Errorf("tree snapshot: %w", err)
		}
		c.Tree.SnapshotPath = path
	}

	if c.Tree.Concurrency < 1 {
		c.Tree.Concurrency = treebuilder.DefaultConcurrency
	}

	if c.Tree.HistorySize < 1 {
		c.Tree.HistorySize = authority.DefaultHistorySize
	}

	return nil
}

func (c *Config) TLS() bool {
	return c.HTTP.CertFile != "" && c.HTTP.KeyFile != ""
}
