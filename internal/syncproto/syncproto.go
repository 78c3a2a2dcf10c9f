// Package syncproto defines the request/response shapes exchanged between a
// sync client and the authority, and the checks both sides apply to them.
package syncproto

import "github.com/openmined/treesync/internal/merkle"

const (
	PathHealth       = "/healthz"
	PathTreeDigest   = "/api/v1/tree/digest"
	PathTree         = "/api/v1/tree"
	PathTreeDiff     = "/api/v1/tree/diff"
	PathAdminTree    = "/api/v1/admin/tree"
	PathAdminRebuild = "/api/v1/admin/rebuild"

	HeaderSession = "X-Sync-Session"
)

// DigestResponse answers a probe: no tree data crosses the wire.
type DigestResponse struct {
	Digest    string `json:"digest"`
	FileCount int    `json:"fileCount"`
}

// TreeResponse carries the full authority tree.
type TreeResponse struct {
	Tree      merkle.Tree `json:"tree"`
	Digest    string      `json:"digest"`
	FileCount int         `json:"fileCount"`
}

// DiffRequest asks for the changes since LastKnownDigest. LastKnownTree may be
// omitted, in which case the authority resolves the base from its history.
type DiffRequest struct {
	LastKnownDigest string      `json:"lastKnownDigest"`
	LastKnownTree   merkle.Tree `json:"lastKnownTree,omitempty"`
}

// DiffResponse holds the change set from the base to the authority tree and the
// digests of every added and modified path.
type DiffResponse struct {
	ChangeSet  merkle.ChangeSet  `json:"changeSet"`
	NewDigests map[string]string `json:"newDigests"`
	BaseDigest string            `json:"baseDigest"`
	Digest     string            `json:"digest"`
	FileCount  int               `json:"fileCount"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	FileCount int    `json:"fileCount"`
	Digest    string `json:"digest"`
}

// ReplaceTreeRequest swaps the authority tree (admin only).
type ReplaceTreeRequest struct {
	Tree merkle.Tree `json:"tree"`
}

// SwapResponse reports the authority state after an admin swap or rebuild.
type SwapResponse struct {
	Changed   bool             `json:"changed"`
	Version   uint64           `json:"version"`
	Digest    string           `json:"digest"`
	FileCount int              `json:"fileCount"`
	ChangeSet merkle.ChangeSet `json:"changeSet"`
}
