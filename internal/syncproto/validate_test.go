package syncproto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openmined/treesync/internal/merkle"
)

var (
	h1 = merkle.HashBytes([]byte("one"))
	h2 = merkle.HashBytes([]byte("two"))
)

func TestDigestResponse_Validate(t *testing.T) {
	assert.NoError(t, (&DigestResponse{Digest: merkle.EmptyTreeDigest}).Validate())
	assert.ErrorIs(t, (&DigestResponse{Digest: "nope"}).Validate(), ErrMalformedResponse)
	assert.ErrorIs(t, (&DigestResponse{Digest: merkle.EmptyTreeDigest, FileCount: -1}).Validate(), ErrMalformedResponse)
}

func TestTreeResponse_Validate(t *testing.T) {
	tree := merkle.Tree{"a.txt": h1}
	ok := &TreeResponse{Tree: tree, Digest: merkle.TreeDigest(tree), FileCount: 1}
	assert.NoError(t, ok.Validate())

	tests := []struct {
		name string
		resp *TreeResponse
	}{
		{"nil tree", &TreeResponse{Digest: merkle.EmptyTreeDigest}},
		{"bad digest", &TreeResponse{Tree: tree, Digest: "x", FileCount: 1}},
		{"count mismatch", &TreeResponse{Tree: tree, Digest: merkle.TreeDigest(tree), FileCount: 2}},
		{"bad path", &TreeResponse{Tree: merkle.Tree{"/etc/passwd": h1}, Digest: merkle.EmptyTreeDigest, FileCount: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.resp.Validate(), ErrMalformedResponse)
		})
	}
}

func TestDiffResponse_Validate(t *testing.T) {
	valid := &DiffResponse{
		ChangeSet:  merkle.ChangeSet{Modified: []string{"a"}, Added: []string{"b"}, Deleted: []string{"c"}},
		NewDigests: map[string]string{"a": h1, "b": h2},
		Digest:     merkle.EmptyTreeDigest,
	}
	assert.NoError(t, valid.Validate())

	missing := *valid
	missing.NewDigests = map[string]string{"a": h1}
	assert.ErrorIs(t, missing.Validate(), ErrMalformedResponse)

	overlap := *valid
	overlap.ChangeSet = merkle.ChangeSet{Added: []string{"a"}, Deleted: []string{"a"}}
	assert.ErrorIs(t, overlap.Validate(), ErrMalformedResponse)

	badDigest := *valid
	badDigest.Digest = ""
	assert.ErrorIs(t, badDigest.Validate(), ErrMalformedResponse)

	badPath := *valid
	badPath.ChangeSet = merkle.ChangeSet{Deleted: []string{"../x"}}
	assert.ErrorIs(t, badPath.Validate(), ErrMalformedResponse)
}

func TestDiffRequest_Validate(t *testing.T) {
	assert.NoError(t, (&DiffRequest{LastKnownDigest: merkle.EmptyTreeDigest}).Validate())
	assert.NoError(t, (&DiffRequest{LastKnownTree: merkle.Tree{"a": h1}}).Validate())
	assert.Error(t, (&DiffRequest{}).Validate())
	assert.Error(t, (&DiffRequest{LastKnownDigest: "short"}).Validate())
	assert.ErrorIs(t, (&DiffRequest{LastKnownTree: merkle.Tree{"a/../b": h1}}).Validate(), merkle.ErrInvalidPath)
}

func TestAPIError_Is(t *testing.T) {
	unknown := &APIError{Status: 409, ErrorResponse: ErrorResponse{Code: CodeUnknownBase}}
	assert.True(t, errors.Is(unknown, ErrUnknownBase))
	assert.False(t, errors.Is(unknown, ErrTransport))

	down := &APIError{Status: 503, ErrorResponse: ErrorResponse{Code: CodeInternalError}}
	assert.True(t, errors.Is(down, ErrTransport))
	assert.Contains(t, down.Error(), "E_INTERNAL_ERROR")
}
