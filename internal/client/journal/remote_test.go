package journal

import (
	"context"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/syncproto"
)

type staticRemote struct {
	tree merkle.Tree
}

func (r *staticRemote) Digest(ctx context.Context) (*syncproto.DigestResponse, error) {
	return &syncproto.DigestResponse{Digest: merkle.TreeDigest(r.tree), FileCount: len(r.tree)}, nil
}

func (r *staticRemote) Full(ctx context.Context) (*syncproto.TreeResponse, error) {
	return &syncproto.TreeResponse{Tree: r.tree.Clone(), Digest: merkle.TreeDigest(r.tree), FileCount: len(r.tree)}, nil
}

func (r *staticRemote) Diff(ctx context.Context, req *syncproto.DiffRequest) (*syncproto.DiffResponse, error) {
	cs := merkle.Diff(req.LastKnownTree, r.tree)
	return &syncproto.DiffResponse{
		ChangeSet:  cs,
		NewDigests: merkle.Digests(r.tree, cs),
		BaseDigest: req.LastKnownDigest,
		Digest:     merkle.TreeDigest(r.tree),
		FileCount:  len(r.tree),
	}, nil
}
