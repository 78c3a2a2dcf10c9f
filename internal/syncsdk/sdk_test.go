package syncsdk

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/syncproto"
)

var (
	h1 = merkle.HashBytes([]byte("1"))
	h2 = merkle.HashBytes([]byte("2"))
)

func newTestSDK(t *testing.T, handler http.HandlerFunc, opts ...Option) *SyncSDK {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithRetry(0, 0), WithTimeout(5 * time.Second)}, opts...)
	sdk, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return sdk
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNew(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrNoServerURL)

	_, err = New("not a url")
	assert.ErrorIs(t, err, ErrBadServerURL)

	sdk, err := New("http://127.0.0.1:8000", WithSessionID("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", sdk.SessionID())
	assert.Equal(t, "http://127.0.0.1:8000", sdk.BaseURL())
}

func TestTreeAPI_Digest(t *testing.T) {
	tree := merkle.Tree{"a.txt": h1}
	digest := merkle.TreeDigest(tree)

	var session atomic.Value
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, syncproto.PathTreeDigest, r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		session.Store(r.Header.Get(syncproto.HeaderSession))
		writeJSON(w, http.StatusOK, `{"digest":"`+digest+`","fileCount":1}`)
	}, WithSessionID("session-1"))

	resp, err := sdk.Tree.Digest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, digest, resp.Digest)
	assert.Equal(t, 1, resp.FileCount)
	assert.Equal(t, "session-1", session.Load())

	stats := sdk.Stats()
	assert.Equal(t, int64(1), stats.Requests)
	assert.Positive(t, stats.BytesRecv)
	assert.False(t, stats.LastSeen.IsZero())
}

func TestTreeAPI_Full(t *testing.T) {
	tree := merkle.Tree{"a.txt": h1, "b.txt": h2}
	digest := merkle.TreeDigest(tree)

	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"tree":{"a.txt":"`+h1+`","b.txt":"`+h2+`"},"digest":"`+digest+`","fileCount":2}`)
	})

	resp, err := sdk.Tree.Full(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tree, resp.Tree)
	assert.Equal(t, digest, resp.Digest)
}

func TestTreeAPI_Diff(t *testing.T) {
	base := merkle.Tree{"a.txt": h1}
	next := merkle.Tree{"a.txt": h1, "b.txt": h2}

	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, syncproto.PathTreeDiff, r.URL.Path)

		var got syncproto.DiffRequest
		require.NoError(t, jsonUnmarshal(readAll(t, r), &got))
		assert.Equal(t, base, got.LastKnownTree)
		assert.Equal(t, merkle.TreeDigest(base), got.LastKnownDigest)

		writeJSON(w, http.StatusOK, `{"changeSet":{"modified":[],"added":["b.txt"],"deleted":[]},`+
			`"newDigests":{"b.txt":"`+h2+`"},"baseDigest":"`+merkle.TreeDigest(base)+`",`+
			`"digest":"`+merkle.TreeDigest(next)+`","fileCount":2}`)
	})

	resp, err := sdk.Tree.Diff(context.Background(), &syncproto.DiffRequest{
		LastKnownDigest: merkle.TreeDigest(base),
		LastKnownTree:   base,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, resp.ChangeSet.Added)
	assert.Equal(t, h2, resp.NewDigests["b.txt"])
	assert.Positive(t, sdk.Stats().BytesSent)
}

func TestTreeAPI_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"code":"E_INTERNAL_ERROR","error":"boom"}`,
			wantErr: syncproto.ErrTransport,
		},
		{
			name:    "gateway without body",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: syncproto.ErrTransport,
		},
		{
			name:    "unknown base",
			status:  http.StatusConflict,
			body:    `{"code":"E_UNKNOWN_BASE","error":"gone"}`,
			wantErr: syncproto.ErrUnknownBase,
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `hello`,
			wantErr: syncproto.ErrMalformedResponse,
		},
		{
			name:    "empty body",
			status:  http.StatusOK,
			body:    ``,
			wantErr: syncproto.ErrMalformedResponse,
		},
		{
			name:    "bad digest",
			status:  http.StatusOK,
			body:    `{"digest":"xyz","fileCount":0}`,
			wantErr: syncproto.ErrMalformedResponse,
		},
		{
			name:    "client error without code",
			status:  http.StatusBadRequest,
			body:    `{}`,
			wantErr: syncproto.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := sdk.Tree.Digest(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotEmpty(t, sdk.Stats().LastError)
		})
	}
}

func TestTreeAPI_APIErrorDetails(t *testing.T) {
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"code":"E_DIGEST_MISMATCH","error":"nope"}`)
	})

	_, err := sdk.Tree.Diff(context.Background(), &syncproto.DiffRequest{LastKnownDigest: merkle.EmptyTreeDigest})

	var apiErr *syncproto.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, syncproto.CodeDigestMismatch, apiErr.Code)
	assert.Equal(t, "nope", apiErr.Message)
	assert.ErrorIs(t, err, syncproto.ErrDigestMismatch)
	assert.NotErrorIs(t, err, syncproto.ErrTransport)
}

func TestTreeAPI_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sdk, err := New(url, WithRetry(0, 0), WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = sdk.Tree.Full(context.Background())
	assert.ErrorIs(t, err, syncproto.ErrTransport)
}

func TestTreeAPI_RetriesServerErrors(t *testing.T) {
	tree := merkle.Tree{}
	var calls atomic.Int32

	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, `{"code":"E_INTERNAL_ERROR","error":"busy"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"digest":"`+merkle.TreeDigest(tree)+`","fileCount":0}`)
	}, WithRetry(3, 10*time.Millisecond))

	resp, err := sdk.Tree.Digest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, merkle.EmptyTreeDigest, resp.Digest)
	assert.Equal(t, int32(3), calls.Load())
}

func readAll(t *testing.T, r *http.Request) []byte {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return body
}
