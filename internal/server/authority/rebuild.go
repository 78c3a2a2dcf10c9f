package authority

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/treebuilder"
)

var ErrNoRoot = errors.New("authority has no source root")

// Rebuilder rebuilds the authority tree from a directory on disk.
type Rebuilder struct {
	root    string
	builder *treebuilder.Builder
	auth    *Authority
	mu      sync.Mutex
}

func NewRebuilder(root string, builder *treebuilder.Builder, auth *Authority) *Rebuilder {
	return &Rebuilder{
		root:    root,
		builder: builder,
		auth:    auth,
	}
}

func (r *Rebuilder) Root() string {
	return r.root
}

// Rebuild walks the root and swaps the result in. Concurrent rebuilds are serialized.
func (r *Rebuilder) Rebuild(ctx context.Context) (snap *Snapshot, cs merkle.ChangeSet, changed bool, err error) {
	if r == nil || r.root == "" {
		return nil, merkle.ChangeSet{}, false, ErrNoRoot
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	tree, err := r.builder.Build(ctx, r.root)
	if err != nil {
		return nil, merkle.ChangeSet{}, false, err
	}

	prev, snap, changed := r.auth.Swap(tree)
	cs = merkle.Diff(prev.Tree, snap.Tree)

	slog.Info("tree rebuild", "root", r.root, "files", snap.FileCount, "changed", changed, "changes", cs.TotalChanges(), "took", time.Since(start))
	return snap, cs, changed, nil
}
