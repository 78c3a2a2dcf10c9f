package merkle

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digestOf(s string) string {
	return HashBytes([]byte(s))
}

func TestHashReader_ChunkingIndependent(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 3000) // spans several blocks

	whole := HashBytes(data)
	oneByte, err := HashReader(iotest.OneByteReader(bytes.NewReader(data)))
	require.NoError(t, err)
	half, err := HashReader(iotest.HalfReader(bytes.NewReader(data)))
	require.NoError(t, err)

	assert.Equal(t, whole, oneByte)
	assert.Equal(t, whole, half)
	assert.Len(t, whole, DigestLength)
	assert.True(t, IsTreeDigest(whole))
}

func TestHashReader_Error(t *testing.T) {
	_, err := HashReader(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(io.ErrUnexpectedEOF)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTreeDigest_Empty(t *testing.T) {
	assert.Equal(t, EmptyTreeDigest, TreeDigest(nil))
	assert.Equal(t, EmptyTreeDigest, TreeDigest(Tree{}))
	assert.Equal(t, EmptyTreeDigest, HashBytes(nil))
}

func TestTreeDigest_StableAndSensitive(t *testing.T) {
	a := Tree{"a.txt": digestOf("a"), "dir/b.txt": digestOf("b")}

	first := TreeDigest(a)
	for range 10 {
		assert.Equal(t, first, TreeDigest(a.Clone()))
	}

	b := a.Clone()
	b["dir/b.txt"] = digestOf("b2")
	assert.NotEqual(t, first, TreeDigest(b))

	c := a.Clone()
	delete(c, "a.txt")
	assert.NotEqual(t, first, TreeDigest(c))

	// moving a digest between paths changes the tree digest
	d := Tree{"a.txt": digestOf("b"), "dir/b.txt": digestOf("a")}
	assert.NotEqual(t, first, TreeDigest(d))
}

func TestDiff_SameTree(t *testing.T) {
	trees := []Tree{
		nil,
		{},
		{"a.txt": digestOf("a")},
		{"a.txt": digestOf("a"), "b/c.txt": digestOf("c")},
	}
	for _, tree := range trees {
		cs := Diff(tree, tree)
		assert.False(t, cs.HasChanges())
		assert.Equal(t, NewChangeSet(), cs)
	}
}

func TestDiff_Classifies(t *testing.T) {
	h1, h2, h3 := digestOf("1"), digestOf("2"), digestOf("3")

	t.Run("swap b for c", func(t *testing.T) {
		cs := Diff(Tree{"a.txt": h1, "b.txt": h2}, Tree{"a.txt": h1, "c.txt": h3})
		assert.Equal(t, []string{}, cs.Modified)
		assert.Equal(t, []string{"c.txt"}, cs.Added)
		assert.Equal(t, []string{"b.txt"}, cs.Deleted)
		assert.Equal(t, 2, cs.TotalChanges())
	})

	t.Run("content change", func(t *testing.T) {
		cs := Diff(Tree{"a.txt": h1}, Tree{"a.txt": h2})
		assert.Equal(t, []string{"a.txt"}, cs.Modified)
		assert.Empty(t, cs.Added)
		assert.Empty(t, cs.Deleted)
	})

	t.Run("sorted output", func(t *testing.T) {
		cs := Diff(Tree{}, Tree{"z": h1, "a": h1, "m/n": h1})
		assert.Equal(t, []string{"a", "m/n", "z"}, cs.Added)
	})
}

func TestDiff_Symmetry(t *testing.T) {
	a := Tree{"keep": digestOf("k"), "mod": digestOf("1"), "gone": digestOf("g")}
	b := Tree{"keep": digestOf("k"), "mod": digestOf("2"), "new/file": digestOf("n")}

	ab := Diff(a, b)
	ba := Diff(b, a)

	assert.Equal(t, ab.Added, ba.Deleted)
	assert.Equal(t, ab.Deleted, ba.Added)
	assert.Equal(t, ab.Modified, ba.Modified)
}

func TestApply_ReproducesTarget(t *testing.T) {
	a := Tree{"keep": digestOf("k"), "mod": digestOf("1"), "gone": digestOf("g")}
	b := Tree{"keep": digestOf("k"), "mod": digestOf("2"), "new/file": digestOf("n")}

	cs := Diff(a, b)
	got, err := Apply(a, cs, Digests(b, cs))
	require.NoError(t, err)
	assert.True(t, got.Equal(b))
	assert.Equal(t, TreeDigest(b), TreeDigest(got))

	// base untouched
	assert.Equal(t, digestOf("1"), a["mod"])
	assert.Contains(t, a, "gone")
}

func TestApply_MissingDigest(t *testing.T) {
	cs := ChangeSet{Added: []string{"x"}}
	_, err := Apply(Tree{}, cs, map[string]string{})
	assert.ErrorIs(t, err, ErrInvalidDigest)
}

func TestValidatePath(t *testing.T) {
	valid := []string{"a", "a.txt", "dir/a.txt", "deep/nested/dir/file.go", ".hidden", "a..b"}
	for _, p := range valid {
		assert.NoError(t, ValidatePath(p), p)
	}

	invalid := []string{"", "/abs", "a//b", "./a", "a/../b", "..", "a/", "win\\path", "nul\x00", "bad\xff.txt"}
	for _, p := range invalid {
		assert.ErrorIs(t, ValidatePath(p), ErrInvalidPath, p)
	}
}

func TestValidateFileDigest(t *testing.T) {
	assert.NoError(t, ValidateFileDigest(digestOf("x")))
	assert.NoError(t, ValidateFileDigest("modified_"+strings.Repeat("0", 55)))
	assert.Error(t, ValidateFileDigest(""))
	assert.Error(t, ValidateFileDigest("abc\n"))
	assert.Error(t, ValidateFileDigest(strings.Repeat("a", maxFileDigestLength+1)))
}

func TestIsTreeDigest(t *testing.T) {
	assert.True(t, IsTreeDigest(EmptyTreeDigest))
	assert.False(t, IsTreeDigest(strings.ToUpper(EmptyTreeDigest)))
	assert.False(t, IsTreeDigest("abc"))
	assert.False(t, IsTreeDigest(strings.Repeat("g", DigestLength)))
}

func TestSnapshot_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "tree.json")
	tree := Tree{"b.txt": digestOf("b"), "a.txt": digestOf("a")}

	require.NoError(t, SaveTree(path, tree))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Less(t, bytes.Index(data, []byte("a.txt")), bytes.Index(data, []byte("b.txt")), "keys are sorted")

	loaded, err := LoadTree(path)
	require.NoError(t, err)
	assert.True(t, tree.Equal(loaded))

	// saving the same tree twice produces identical bytes
	require.NoError(t, SaveTree(path, loaded))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestSnapshot_LoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadTree(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	_, err = LoadTree(corrupt)
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"../escape": "abc"}`), 0o644))
	_, err = LoadTree(badPath)
	assert.ErrorIs(t, err, ErrInvalidPath)

	empty := filepath.Join(dir, "null.json")
	require.NoError(t, os.WriteFile(empty, []byte(`null`), 0o644))
	tree, err := LoadTree(empty)
	require.NoError(t, err)
	assert.Empty(t, tree)
}
