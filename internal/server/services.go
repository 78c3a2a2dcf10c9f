package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/server/authority"
	"github.com/openmined/treesync/internal/treebuilder"
)

type Services struct {
	Authority *authority.Authority
	Rebuilder *authority.Rebuilder
	Watcher   *authority.Watcher
}

// NewServices loads the initial tree and wires the authority around it.
func NewServices(ctx context.Context, config *Config) (*Services, error) {
	builder := treebuilder.New(
		treebuilder.WithExcludedDirs(config.Tree.ExcludedDirs...),
		treebuilder.WithExcludedExtensions(config.Tree.ExcludedExtensions...),
		treebuilder.WithConcurrency(config.Tree.Concurrency),
	)

	tree, err := initialTree(ctx, config, builder)
	if err != nil {
		return nil, err
	}

	auth, err := authority.New(tree, config.Tree.HistorySize)
	if err != nil {
		return nil, err
	}

	svc := &Services{Authority: auth}

	if config.Tree.Root != "" {
		svc.Rebuilder = authority.NewRebuilder(config.Tree.Root, builder, auth)
		if config.Tree.Watch {
			svc.Watcher = authority.NewWatcher(svc.Rebuilder, authority.DefaultDebounce)
		}
	}

	snap := auth.Snapshot()
	slog.Info("authority tree", "files", snap.FileCount, "digest", snap.Digest)
	return svc, nil
}

func initialTree(ctx context.Context, config *Config, builder *treebuilder.Builder) (merkle.Tree, error) {
	switch {
	case config.Tree.Root != "":
		tree, err := builder.Build(ctx, config.Tree.Root)
		if err != nil {
			return nil, fmt.Errorf("build initial tree: %w", err)
		}
		return tree, nil

	case config.Tree.SnapshotPath != "":
		tree, err := merkle.LoadTree(config.Tree.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("load tree snapshot: %w", err)
		}
		return tree, nil
	}

	return merkle.Tree{}, nil
}

func (s *Services) Start(ctx context.Context) error {
	if s.Watcher != nil {
		if err := s.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("start tree watcher: %w", err)
		}
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if s.Watcher != nil {
		s.Watcher.Stop()
	}
	return nil
}
