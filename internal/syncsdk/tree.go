package syncsdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"

	"github.com/openmined/treesync/internal/syncproto"
)

type TreeAPI struct {
	client *req.Client
	stats  *httpStats
}

func newTreeAPI(client *req.Client, stats *httpStats) *TreeAPI {
	return &TreeAPI{
		client: client,
		stats:  stats,
	}
}

// Digest probes the authority for its current tree digest.
func (t *TreeAPI) Digest(ctx context.Context) (*syncproto.DigestResponse, error) {
	var resp syncproto.DigestResponse
	if err := t.do(ctx, "tree digest", http.MethodGet, syncproto.PathTreeDigest, nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("tree digest: %w", err)
	}
	return &resp, nil
}

// Full fetches the whole authority tree.
func (t *TreeAPI) Full(ctx context.Context) (*syncproto.TreeResponse, error) {
	var resp syncproto.TreeResponse
	if err := t.do(ctx, "tree full", http.MethodGet, syncproto.PathTree, nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("tree full: %w", err)
	}
	return &resp, nil
}

// Diff asks for the change set from the request base to the authority tree.
func (t *TreeAPI) Diff(ctx context.Context, params *syncproto.DiffRequest) (*syncproto.DiffResponse, error) {
	var resp syncproto.DiffResponse
	if err := t.do(ctx, "tree diff", http.MethodPost, syncproto.PathTreeDiff, params, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("tree diff: %w", err)
	}
	return &resp, nil
}

// Health checks that the authority is reachable.
func (t *TreeAPI) Health(ctx context.Context) (*syncproto.HealthResponse, error) {
	var resp syncproto.HealthResponse
	if err := t.do(ctx, "health", http.MethodGet, syncproto.PathHealth, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *TreeAPI) do(ctx context.Context, operation, method, path string, body, result any) error {
	r := t.client.R().SetContext(ctx)

	sent := 0
	if body != nil {
		raw, err := jsonMarshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		r.SetBodyJsonBytes(raw)
		sent = len(raw)
	}

	t.stats.onSend(sent)
	res, err := r.Send(method, path)

	if err == nil {
		t.stats.onRecv(len(res.Bytes()))
	}

	if err := handleAPIError(res, err, operation); err != nil {
		t.stats.setLastError(err)
		return err
	}

	if err := decode(res, result, operation); err != nil {
		t.stats.setLastError(err)
		return err
	}
	return nil
}
