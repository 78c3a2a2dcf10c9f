package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
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

	"github.com/openmined/treesync/internal/client/config"
	"github.com/openmined/treesync/internal/version"
)

const envPrefix = "TREESYNC"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "treesync",
		Short:         "Keep a local view of a file tree in sync with a treesync server",
		Version:       version.Detailed(),
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogger(verbose)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "treesync config file")
	flags.StringP("server", "s", config.DefaultServerURL, "treesync server url")
	flags.StringP("mode", "m", "delta", "sync mode: delta, compact or full")
	flags.String("snapshot", config.DefaultSnapshotPath, "tree snapshot file, empty to disable")
	flags.String("journal", config.DefaultJournalPath, "sync journal database, empty to disable")
	flags.Int("concurrency", 0, "files hashed in parallel by local scans")
	flags.StringSlice("exclude-dir", nil, "extra directory names skipped by local scans")
	flags.StringSlice("exclude-ext", nil, "extra file extensions skipped by local scans")
	flags.BoolP("verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newSyncCmd(),
		newCheckCmd(),
		newLocalCmd(),
		newWatchCmd(),
		newHistoryCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	setupLogger(false)

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))
}

// loadConfig merges the config file, TREESYNC_* env vars and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	configPath, _ := cmd.Flags().GetString("config")
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, fs.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	bindings := map[string]string{
		"server_url":          "server",
		"mode":                "mode",
		"snapshot_path":       "snapshot",
		"journal_path":        "journal",
		"concurrency":         "concurrency",
		"excluded_dirs":       "exclude-dir",
		"excluded_extensions": "exclude-ext",
	}
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		// defaults only apply when neither the file nor the env has a value
		if flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		} else {
			v.SetDefault(key, flagDefault(cmd, name))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &config.Config{Path: configPath}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func flagDefault(cmd *cobra.Command, name string) any {
	flags := cmd.Flags()
	switch name {
	case "concurrency":
		n, _ := flags.GetInt(name)
		return n
	case "exclude-dir", "exclude-ext":
		s, _ := flags.GetStringSlice(name)
		return s
	}
	s, _ := flags.GetString(name)
	return s
}
