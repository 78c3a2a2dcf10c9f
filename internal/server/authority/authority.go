package authority

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/syncproto"
)

const DefaultHistorySize = 16

var ErrBaseMismatch = errors.New("last known tree does not match last known digest")

// Snapshot is an immutable view of the authority tree. The tree, its digest and
// its file count always belong together; callers must not mutate Tree.
type Snapshot struct {
	Tree      merkle.Tree
	Digest    string
	FileCount int
	Version   uint64
	UpdatedAt time.Time
}

func newSnapshot(tree merkle.Tree, version uint64) *Snapshot {
	return &Snapshot{
		Tree:      tree,
		Digest:    merkle.TreeDigest(tree),
		FileCount: len(tree),
		Version:   version,
		UpdatedAt: time.Now(),
	}
}

// Authority owns the single authoritative tree. Readers load one snapshot
// pointer per request; writers replace the pointer as a whole.
type Authority struct {
	current atomic.Pointer[Snapshot]
	swapMu  sync.Mutex

	// recently served trees by digest, resolves digest-only diff requests
	history *lru.Cache[string, merkle.Tree]
}

func New(tree merkle.Tree, historySize int) (*Authority, error) {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}

	history, err := lru.New[string, merkle.Tree](historySize)
	if err != nil {
		return nil, fmt.Errorf("create tree history: %w", err)
	}

	a := &Authority{history: history}
	snap := newSnapshot(tree.Clone(), 1)
	a.current.Store(snap)
	a.history.Add(snap.Digest, snap.Tree)

	return a, nil
}

// Snapshot returns the current snapshot in a single atomic load.
func (a *Authority) Snapshot() *Snapshot {
	return a.current.Load()
}

// Swap atomically replaces the tree and returns the snapshot it replaced. The
// tree is copied, so the caller may keep using its map. changed is false when the
// new tree hashes to the current digest, in which case nothing is replaced and
// prev == snap.
func (a *Authority) Swap(tree merkle.Tree) (prev, snap *Snapshot, changed bool) {
	next := tree.Clone()
	digest := merkle.TreeDigest(next)

	a.swapMu.Lock()
	defer a.swapMu.Unlock()

	prev = a.current.Load()
	if prev.Digest == digest {
		return prev, prev, false
	}

	snap = newSnapshot(next, prev.Version+1)
	a.current.Store(snap)
	a.history.Add(snap.Digest, snap.Tree)

	slog.Info("tree swap", "version", snap.Version, "files", snap.FileCount, "digest", snap.Digest, "prev", prev.Digest)
	return prev, snap, true
}

// Probe answers with the current digest and file count only.
func (a *Authority) Probe() *syncproto.DigestResponse {
	snap := a.Snapshot()
	return &syncproto.DigestResponse{
		Digest:    snap.Digest,
		FileCount: snap.FileCount,
	}
}

// Full answers with the whole current tree.
func (a *Authority) Full() *syncproto.TreeResponse {
	snap := a.Snapshot()
	return &syncproto.TreeResponse{
		Tree:      snap.Tree,
		Digest:    snap.Digest,
		FileCount: snap.FileCount,
	}
}

// Diff computes the change set from the client's base to one snapshot of the
// authority tree. The base is the request tree when present, otherwise it is
// resolved from the history by digest.
func (a *Authority) Diff(req *syncproto.DiffRequest) (*syncproto.DiffResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	snap := a.Snapshot()

	base, baseDigest, err := a.resolveBase(req, snap)
	if err != nil {
		return nil, err
	}

	resp := &syncproto.DiffResponse{
		ChangeSet:  merkle.NewChangeSet(),
		NewDigests: map[string]string{},
		BaseDigest: baseDigest,
		Digest:     snap.Digest,
		FileCount:  snap.FileCount,
	}

	if baseDigest == snap.Digest {
		return resp, nil
	}

	resp.ChangeSet = merkle.Diff(base, snap.Tree)
	resp.NewDigests = merkle.Digests(snap.Tree, resp.ChangeSet)
	return resp, nil
}

func (a *Authority) resolveBase(req *syncproto.DiffRequest, snap *Snapshot) (merkle.Tree, string, error) {
	if req.LastKnownTree != nil {
		digest := merkle.TreeDigest(req.LastKnownTree)
		if req.LastKnownDigest != "" && req.LastKnownDigest != digest {
			return nil, "", fmt.Errorf("%w: got %s, tree hashes to %s", ErrBaseMismatch, req.LastKnownDigest, digest)
		}
		return req.LastKnownTree, digest, nil
	}

	switch req.LastKnownDigest {
	case merkle.EmptyTreeDigest:
		return merkle.Tree{}, merkle.EmptyTreeDigest, nil
	case snap.Digest:
		return snap.Tree, snap.Digest, nil
	}

	if tree, ok := a.history.Get(req.LastKnownDigest); ok {
		return tree, req.LastKnownDigest, nil
	}

	return nil, "", fmt.Errorf("%w: %s", syncproto.ErrUnknownBase, req.LastKnownDigest)
}
