package merkle

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidPath   = errors.New("invalid tree path")
	ErrInvalidDigest = errors.New("invalid digest")
)

const maxFileDigestLength = 128

// Tree is a flat snapshot of a directory: relative slash separated path -> content digest.
// A path with no entry does not exist in the snapshot.
type Tree map[string]string

// Clone returns a copy of the tree. A nil tree clones to an empty one.
func (t Tree) Clone() Tree {
	out := make(Tree, len(t))
	for path, digest := range t {
		out[path] = digest
	}
	return out
}

// Paths returns the sorted paths of the tree.
func (t Tree) Paths() []string {
	paths := make([]string, 0, len(t))
	for path := range t {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// Equal reports whether both trees hold the same paths with the same digests.
func (t Tree) Equal(other Tree) bool {
	if len(t) != len(other) {
		return false
	}
	for path, digest := range t {
		if d, ok := other[path]; !ok || d != digest {
			return false
		}
	}
	return true
}

// Validate checks every path and digest in the tree.
func (t Tree) Validate() error {
	for path, digest := range t {
		if err := ValidatePath(path); err != nil {
			return err
		}
		if err := ValidateFileDigest(digest); err != nil {
			return fmt.Errorf("%w (path %q)", err, path)
		}
	}
	return nil
}

// ValidatePath accepts canonical relative paths only: non-empty, valid UTF-8,
// slash separated, no leading slash, no empty, "." or ".." segments.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("%w: %q is not valid utf-8", ErrInvalidPath, path)
	}
	if strings.ContainsAny(path, "\x00\\") {
		return fmt.Errorf("%w: %q has forbidden characters", ErrInvalidPath, path)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q is not canonical", ErrInvalidPath, path)
		}
	}
	return nil
}

// ValidateFileDigest accepts opaque per-file digests made of [0-9A-Za-z_-].
// Digests produced by HashReader are always valid.
func ValidateFileDigest(digest string) error {
	if digest == "" || len(digest) > maxFileDigestLength {
		return fmt.Errorf("%w: bad length %d", ErrInvalidDigest, len(digest))
	}
	for _, c := range digest {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
		}
	}
	return nil
}

// IsTreeDigest reports whether s looks like a TreeDigest: lowercase hex of DigestLength.
func IsTreeDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
