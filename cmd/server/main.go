package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmined/treesync/internal/server"
	"github.com/openmined/treesync/internal/server/authority"
	"github.com/openmined/treesync/internal/treebuilder"
	"github.com/openmined/treesync/internal/version"
)

const envPrefix = "TREESYNC"

var rootCmd = &cobra.Command{
	Use:     "treesync-server",
	Short:   "treesync authority server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true

		s, err := server.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

func init() {
	addServerFlags(rootCmd)
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	cmd.Flags().StringP("cert", "", "", "Path to the TLS certificate file")
	cmd.Flags().StringP("key", "", "", "Path to the TLS key file")
	cmd.Flags().StringP("root", "r", "", "Directory the authority tree is built from")
	cmd.Flags().StringP("snapshot", "s", "", "Tree snapshot to serve when no root is given")
	cmd.Flags().Bool("watch", false, "Rebuild the tree when files under the root change")
	cmd.Flags().Bool("admin", false, "Enable the admin tree endpoints")
	cmd.Flags().StringP("config", "c", "", "Path to the config file (json or yaml)")
}

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	}))
	slog.SetDefault(logger)

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("tree.root", "")
	v.SetDefault("tree.snapshot", "")
	v.SetDefault("tree.excluded_dirs", []string{})
	v.SetDefault("tree.excluded_extensions", []string{})
	v.SetDefault("tree.concurrency", treebuilder.DefaultConcurrency)
	v.SetDefault("tree.watch", false)
	v.SetDefault("tree.history_size", authority.DefaultHistorySize)
	v.SetDefault("admin_enabled", false)

	// flags only win when set explicitly, otherwise file and env apply
	bindings := map[string]string{
		"http.addr":      "bind",
		"http.cert_file": "cert",
		"http.key_file":  "key",
		"tree.root":      "root",
		"tree.snapshot":  "snapshot",
		"tree.watch":     "watch",
		"admin_enabled":  "admin",
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
