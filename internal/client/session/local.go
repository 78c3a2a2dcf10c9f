package session

import (
	"context"
	"fmt"
	"time"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/utils"
)

const snapshotLockRetry = 50 * time.Millisecond

// DetectLocalChanges builds the tree at root and diffs the last known tree
// against it. The authority is not contacted.
func (s *Session) DetectLocalChanges(ctx context.Context, root string) (merkle.ChangeSet, error) {
	current, err := s.builder.Build(ctx, root)
	if err != nil {
		return merkle.ChangeSet{}, err
	}
	return merkle.Diff(s.LocalTree(), current), nil
}

// LoadSnapshot adopts a persisted tree as the last known state. A missing file
// returns an error matching fs.ErrNotExist and leaves the session untouched.
func (s *Session) LoadSnapshot(path string) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	tree, err := merkle.LoadTree(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
	s.digest = merkle.TreeDigest(tree)
	s.remoteDigest = ""
	s.generation++
	return nil
}

func (s *Session) persist(ctx context.Context, tree merkle.Tree) error {
	if s.snapshotPath == "" {
		return nil
	}

	if err := utils.EnsureParent(s.snapshotPath); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	locked, err := s.snapshotLock.TryLockContext(ctx, snapshotLockRetry)
	if err != nil {
		return fmt.Errorf("lock tree snapshot: %w", err)
	}
	if !locked {
		return ErrSnapshotLocked
	}
	defer s.snapshotLock.Unlock()

	if err := merkle.SaveTree(s.snapshotPath, tree); err != nil {
		return fmt.Errorf("persist tree snapshot: %w", err)
	}
	return nil
}
