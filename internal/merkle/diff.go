package merkle

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Diff classifies every path of prev ∪ next that changed. Unchanged paths are omitted.
func Diff(prev, next Tree) ChangeSet {
	oldPaths := mapset.NewThreadUnsafeSetFromMapKeys(prev)
	newPaths := mapset.NewThreadUnsafeSetFromMapKeys(next)

	cs := ChangeSet{
		Modified: []string{},
		Added:    newPaths.Difference(oldPaths).ToSlice(),
		Deleted:  oldPaths.Difference(newPaths).ToSlice(),
	}

	oldPaths.Intersect(newPaths).Each(func(path string) bool {
		if prev[path] != next[path] {
			cs.Modified = append(cs.Modified, path)
		}
		return false
	})

	cs.Normalize()
	return cs
}

// Digests returns the digest in t of every added and modified path of cs.
func Digests(t Tree, cs ChangeSet) map[string]string {
	out := make(map[string]string, len(cs.Added)+len(cs.Modified))
	for _, list := range [][]string{cs.Added, cs.Modified} {
		for _, path := range list {
			if digest, ok := t[path]; ok {
				out[path] = digest
			}
		}
	}
	return out
}

// Apply patches a copy of base: deleted paths are removed, added and modified
// paths are upserted with their digest from digests. base is never mutated.
func Apply(base Tree, cs ChangeSet, digests map[string]string) (Tree, error) {
	out := base.Clone()

	for _, path := range cs.Deleted {
		delete(out, path)
	}

	for _, list := range [][]string{cs.Added, cs.Modified} {
		for _, path := range list {
			digest, ok := digests[path]
			if !ok {
				return nil, fmt.Errorf("%w: no digest for %q", ErrInvalidDigest, path)
			}
			out[path] = digest
		}
	}

	return out, nil
}
