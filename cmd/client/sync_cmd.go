package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/openmined/treesync/internal/client/config"
	"github.com/openmined/treesync/internal/client/journal"
	"github.com/openmined/treesync/internal/client/session"
	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/syncproto"
	"github.com/openmined/treesync/internal/syncsdk"
	"github.com/openmined/treesync/internal/treebuilder"
)

// clientEnv is everything a command needs to talk to the server.
type clientEnv struct {
	cfg     *config.Config
	sdk     *syncsdk.SyncSDK
	session *session.Session
	journal *journal.Journal
}

func newClientEnv(cmd *cobra.Command) (*clientEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	sdk, err := syncsdk.New(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	env := &clientEnv{cfg: cfg, sdk: sdk}

	opts := []session.Option{
		session.WithMode(cfg.SessionMode()),
		session.WithBuilder(treebuilder.New(cfg.BuilderOptions()...)),
	}

	if cfg.SnapshotPath != "" {
		opts = append(opts, session.WithSnapshotPath(cfg.SnapshotPath))
	}

	if cfg.JournalPath != "" {
		env.journal = journal.New(cfg.JournalPath)
		if err := env.journal.Open(); err != nil {
			return nil, err
		}
		opts = append(opts, session.WithRecorder(env.journal))
	}

	env.session = session.New(sdk.Tree, opts...)

	if cfg.SnapshotPath != "" {
		if err := env.session.LoadSnapshot(cfg.SnapshotPath); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				env.Close()
				return nil, err
			}
			slog.Debug("no tree snapshot yet", "path", cfg.SnapshotPath)
		}
	}

	slog.Debug("client session", "server", cfg.ServerURL, "mode", cfg.Mode, "state", env.session.State(), "session", sdk.SessionID())
	return env, nil
}

func (e *clientEnv) Close() {
	if e.journal != nil {
		_ = e.journal.Close()
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local tree with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			cmd.SilenceUsage = true

			start := time.Now()
			cs, err := env.session.Sync(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printChangeSet(out, cs)
			stats := env.sdk.Stats()
			fmt.Fprintf(out, "%s %s files, digest %s, sent %s, received %s in %s\n",
				green("synced"),
				humanize.Comma(int64(len(env.session.LocalTree()))),
				cyan(shortDigest(env.session.LocalDigest())),
				humanize.Bytes(uint64(stats.BytesSent)),
				humanize.Bytes(uint64(stats.BytesRecv)),
				time.Since(start).Round(time.Millisecond),
			)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the server and report whether the local tree is current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			cmd.SilenceUsage = true

			inSync, err := env.session.IsInSync(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := green("in sync")
			if !inSync {
				state = yellow("out of sync")
			}
			fmt.Fprintf(out, "%s (%s)\n", state, env.session.State())
			fmt.Fprintf(out, "  local  %s\n", cyan(env.session.LocalDigest()))
			fmt.Fprintf(out, "  remote %s\n", cyan(env.session.LastRemoteDigest()))
			return nil
		},
	}
}

func newLocalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "local <root>",
		Short: "Show what changed on disk since the last sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			cmd.SilenceUsage = true

			cs, err := env.session.DetectLocalChanges(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !cs.HasChanges() {
				fmt.Fprintln(out, green("no local changes"))
				return nil
			}
			printChangeSet(out, cs)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Probe the server periodically and sync whenever it changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}

			env, err := newClientEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			cmd.SilenceUsage = true

			slog.Info("watching", "server", env.cfg.ServerURL, "interval", interval, "mode", env.cfg.Mode)
			return watchLoop(cmd.Context(), env.session, interval, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Duration("interval", 10*time.Second, "time between probes")
	return cmd
}

// watchLoop runs one anti-entropy round per tick until ctx is done. Transport
// failures are logged and retried on the next tick, anything else stops the loop.
func watchLoop(ctx context.Context, s *session.Session, interval time.Duration, out io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := watchRound(ctx, s, out); err != nil {
			if !errors.Is(err, syncproto.ErrTransport) {
				return err
			}
			slog.Warn("server unreachable, retrying", "in", interval, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func watchRound(ctx context.Context, s *session.Session, out io.Writer) error {
	if s.State() != session.StateUnsynced {
		inSync, err := s.IsInSync(ctx)
		if err != nil {
			return err
		}
		if inSync {
			return nil
		}
	}

	cs, err := s.Sync(ctx)
	if err != nil {
		return err
	}
	if cs.HasChanges() {
		printChangeSet(out, cs)
	}
	return nil
}

func printChangeSet(out io.Writer, cs merkle.ChangeSet) {
	for _, path := range cs.Added {
		fmt.Fprintf(out, "%s %s\n", green("+"), path)
	}
	for _, path := range cs.Modified {
		fmt.Fprintf(out, "%s %s\n", yellow("~"), path)
	}
	for _, path := range cs.Deleted {
		fmt.Fprintf(out, "%s %s\n", red("-"), path)
	}
	fmt.Fprintf(out, "%s added, %s modified, %s deleted\n",
		bold(humanize.Comma(int64(len(cs.Added)))),
		bold(humanize.Comma(int64(len(cs.Modified)))),
		bold(humanize.Comma(int64(len(cs.Deleted)))),
	)
}
