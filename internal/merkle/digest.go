package merkle

import (
	"crypto/sha256"
	"encoding/hex"
)

// EmptyTreeDigest is the digest of a tree with no entries (sha256 of no bytes).
const EmptyTreeDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// TreeDigest hashes the canonical form of the tree: entries sorted by path, each
// written as `path\x00digest\n`. Paths never contain NUL and digests never contain
// NUL or newline, so the encoding is unambiguous.
func TreeDigest(t Tree) string {
	h := sha256.New()
	for _, path := range t.Paths() {
		h.Write([]byte(path))
		h.Write([]byte{0})
		h.Write([]byte(t[path]))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
