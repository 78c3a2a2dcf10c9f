// Package session keeps a client's last known view of the authority tree and
// reconciles it through the sync protocol.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/syncproto"
	"github.com/openmined/treesync/internal/treebuilder"
)

var (
	ErrInvalidMode    = errors.New("invalid sync mode")
	ErrSnapshotLocked = errors.New("tree snapshot locked by another process")
)

// Remote is the authority side of the protocol, usually a *syncsdk.TreeAPI.
type Remote interface {
	Digest(ctx context.Context) (*syncproto.DigestResponse, error)
	Full(ctx context.Context) (*syncproto.TreeResponse, error)
	Diff(ctx context.Context, req *syncproto.DiffRequest) (*syncproto.DiffResponse, error)
}

type State int

const (
	StateUnsynced State = iota
	StateSynced
	StateStale
)

func (s State) String() string {
	switch s {
	case StateUnsynced:
		return "UNSYNCED"
	case StateSynced:
		return "SYNCED"
	case StateStale:
		return "STALE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Mode selects how a synced session asks for changes.
type Mode string

const (
	// ModeDelta sends the whole last known tree with every diff request.
	ModeDelta Mode = "delta"
	// ModeCompact sends only the last known digest and falls back to
	// ModeDelta when the authority no longer holds that tree.
	ModeCompact Mode = "compact"
	// ModeFull always downloads the whole tree and diffs locally.
	ModeFull Mode = "full"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDelta, ModeCompact, ModeFull:
		return m, nil
	case "":
		return ModeDelta, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Session is single-writer: Sync and LoadSnapshot are serialized, while the
// accessors and IsInSync may run concurrently with them.
type Session struct {
	remote       Remote
	builder      *treebuilder.Builder
	mode         Mode
	snapshotPath string
	snapshotLock *flock.Flock
	recorder     Recorder

	syncMu sync.Mutex

	mu           sync.RWMutex
	tree         merkle.Tree // nil until the first successful sync
	digest       string
	remoteDigest string
	generation   uint64 // bumped on every local state change
}

func New(remote Remote, opts ...Option) *Session {
	s := &Session{
		remote: remote,
		mode:   ModeDelta,
		digest: merkle.EmptyTreeDigest,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		s.builder = treebuilder.New()
	}
	if s.snapshotPath != "" {
		s.snapshotLock = flock.New(s.snapshotPath + ".lock")
	}
	return s
}

func (s *Session) Mode() Mode {
	return s.mode
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.tree == nil:
		return StateUnsynced
	case s.remoteDigest != "" && s.remoteDigest != s.digest:
		return StateStale
	}
	return StateSynced
}

// LocalTree returns a copy of the last known tree. It is empty before the first sync.
func (s *Session) LocalTree() merkle.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Clone()
}

func (s *Session) LocalDigest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.digest
}

// LastRemoteDigest is the authority digest seen by the last probe or sync.
func (s *Session) LastRemoteDigest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteDigest
}

// IsInSync probes the authority and compares its digest with the local one.
// Only the remote digest is recorded; the local tree is never touched. A probe
// that overlapped a committed sync is not recorded, it may predate the commit.
func (s *Session) IsInSync(ctx context.Context) (bool, error) {
	s.mu.RLock()
	generation := s.generation
	s.mu.RUnlock()

	resp, err := s.remote.Digest(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == generation {
		s.remoteDigest = resp.Digest
	}
	return resp.Digest == s.digest, nil
}

func (s *Session) view() (tree merkle.Tree, digest string, synced bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree, s.digest, s.tree != nil
}

func (s *Session) commit(tree merkle.Tree, digest, remoteDigest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
	s.digest = digest
	s.remoteDigest = remoteDigest
	s.generation++
}
