package syncproto

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/openmined/treesync/internal/merkle"
)

func (r *DigestResponse) Validate() error {
	if !merkle.IsTreeDigest(r.Digest) {
		return malformed("digest %q", r.Digest)
	}
	if r.FileCount < 0 {
		return malformed("fileCount %d", r.FileCount)
	}
	return nil
}

func (r *TreeResponse) Validate() error {
	if r.Tree == nil {
		return malformed("tree missing")
	}
	if !merkle.IsTreeDigest(r.Digest) {
		return malformed("digest %q", r.Digest)
	}
	if r.FileCount != len(r.Tree) {
		return malformed("fileCount %d for %d entries", r.FileCount, len(r.Tree))
	}
	if err := r.Tree.Validate(); err != nil {
		return malformed("%v", err)
	}
	return nil
}

func (r *DiffResponse) Validate() error {
	if !merkle.IsTreeDigest(r.Digest) {
		return malformed("digest %q", r.Digest)
	}
	if r.BaseDigest != "" && !merkle.IsTreeDigest(r.BaseDigest) {
		return malformed("baseDigest %q", r.BaseDigest)
	}
	if r.FileCount < 0 {
		return malformed("fileCount %d", r.FileCount)
	}

	cs := r.ChangeSet
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, list := range [][]string{cs.Modified, cs.Added, cs.Deleted} {
		for _, path := range list {
			if err := merkle.ValidatePath(path); err != nil {
				return malformed("%v", err)
			}
			if !seen.Add(path) {
				return malformed("path %q listed twice", path)
			}
		}
	}

	for _, list := range [][]string{cs.Modified, cs.Added} {
		for _, path := range list {
			digest, ok := r.NewDigests[path]
			if !ok {
				return malformed("no digest for %q", path)
			}
			if err := merkle.ValidateFileDigest(digest); err != nil {
				return malformed("%v", err)
			}
		}
	}
	return nil
}

// Validate checks a diff request received by the authority.
func (r *DiffRequest) Validate() error {
	if r.LastKnownDigest != "" && !merkle.IsTreeDigest(r.LastKnownDigest) {
		return merkle.ErrInvalidDigest
	}
	if r.LastKnownTree == nil && r.LastKnownDigest == "" {
		return merkle.ErrInvalidDigest
	}
	if r.LastKnownTree != nil {
		return r.LastKnownTree.Validate()
	}
	return nil
}
