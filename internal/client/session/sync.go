package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/syncproto"
)

const (
	kindFull    = "full"
	kindDelta   = "delta"
	kindCompact = "compact"
)

// Sync reconciles the local tree with the authority and returns the change set
// that was applied. On any error the session is left exactly as it was.
func (s *Session) Sync(ctx context.Context) (merkle.ChangeSet, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	round := &Round{
		ID:        uuid.NewString(),
		Mode:      s.mode,
		StartedAt: time.Now(),
	}

	cs, err := s.syncRound(ctx, round)
	round.Duration = time.Since(round.StartedAt)
	round.Err = err
	if err == nil {
		round.ChangeSet = cs
	}

	s.record(ctx, round)

	if err != nil {
		slog.Warn("sync failed", "round", round.ID, "kind", round.Kind, "error", err)
		return merkle.ChangeSet{}, err
	}

	slog.Info("sync complete",
		"round", round.ID,
		"kind", round.Kind,
		"fallback", round.Fallback,
		"added", len(cs.Added),
		"modified", len(cs.Modified),
		"deleted", len(cs.Deleted),
		"files", round.FileCount,
		"took", round.Duration,
	)
	return cs, nil
}

func (s *Session) syncRound(ctx context.Context, round *Round) (merkle.ChangeSet, error) {
	base, baseDigest, synced := s.view()
	round.BaseDigest = baseDigest

	var (
		next   merkle.Tree
		digest string
		err    error
	)

	switch {
	case !synced || s.mode == ModeFull:
		round.Kind = kindFull
		next, digest, err = s.fetchFull(ctx)
	case s.mode == ModeCompact:
		round.Kind = kindCompact
		next, digest, err = s.fetchDelta(ctx, base, baseDigest, false)
		if errors.Is(err, syncproto.ErrUnknownBase) {
			slog.Debug("sync base unknown to authority, resending full tree", "base", baseDigest)
			round.Fallback = true
			next, digest, err = s.fetchDelta(ctx, base, baseDigest, true)
		}
	default:
		round.Kind = kindDelta
		next, digest, err = s.fetchDelta(ctx, base, baseDigest, true)
	}
	if err != nil {
		return merkle.ChangeSet{}, err
	}

	round.ResultDigest = digest
	round.FileCount = len(next)

	if err := s.persist(ctx, next); err != nil {
		return merkle.ChangeSet{}, err
	}

	s.commit(next, digest, digest)
	return merkle.Diff(base, next), nil
}

func (s *Session) fetchFull(ctx context.Context) (merkle.Tree, string, error) {
	resp, err := s.remote.Full(ctx)
	if err != nil {
		return nil, "", err
	}

	tree := resp.Tree.Clone()
	if got := merkle.TreeDigest(tree); got != resp.Digest {
		return nil, "", fmt.Errorf("%w: full tree hashes to %s, authority reported %s", syncproto.ErrDigestMismatch, got, resp.Digest)
	}
	return tree, resp.Digest, nil
}

func (s *Session) fetchDelta(ctx context.Context, base merkle.Tree, baseDigest string, withTree bool) (merkle.Tree, string, error) {
	req := &syncproto.DiffRequest{LastKnownDigest: baseDigest}
	if withTree {
		req.LastKnownTree = base
	}

	resp, err := s.remote.Diff(ctx, req)
	if err != nil {
		return nil, "", err
	}

	if resp.BaseDigest != "" && resp.BaseDigest != baseDigest {
		return nil, "", fmt.Errorf("%w: diff computed against %s, local base is %s", syncproto.ErrDigestMismatch, resp.BaseDigest, baseDigest)
	}

	next, err := merkle.Apply(base, resp.ChangeSet, resp.NewDigests)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", syncproto.ErrMalformedResponse, err)
	}

	if got := merkle.TreeDigest(next); got != resp.Digest {
		return nil, "", fmt.Errorf("%w: patched tree hashes to %s, authority reported %s", syncproto.ErrDigestMismatch, got, resp.Digest)
	}
	return next, resp.Digest, nil
}

func (s *Session) record(ctx context.Context, round *Round) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), round); err != nil {
		slog.Warn("sync journal write failed", "round", round.ID, "error", err)
	}
}
