package tree

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/server/authority"
	"github.com/openmined/treesync/internal/server/handlers/api"
	"github.com/openmined/treesync/internal/syncproto"
)

type TreeHandler struct {
	auth *authority.Authority
}

func New(auth *authority.Authority) *TreeHandler {
	return &TreeHandler{
		auth: auth,
	}
}

// GetDigest answers a probe with the current tree digest and file count.
func (h *TreeHandler) GetDigest(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, h.auth.Probe())
}

// GetTree returns the whole current tree.
func (h *TreeHandler) GetTree(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, h.auth.Full())
}

// PostDiff returns the change set from the client's last known tree to the current tree.
func (h *TreeHandler) PostDiff(ctx *gin.Context) {
	var req syncproto.DiffRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, syncproto.CodeInvalidRequest, err)
		return
	}

	resp, err := h.auth.Diff(&req)
	if err != nil {
		switch {
		case errors.Is(err, syncproto.ErrUnknownBase):
			api.AbortWithError(ctx, http.StatusConflict, syncproto.CodeUnknownBase, err)
		case errors.Is(err, authority.ErrBaseMismatch):
			api.AbortWithError(ctx, http.StatusBadRequest, syncproto.CodeDigestMismatch, err)
		case errors.Is(err, merkle.ErrInvalidPath), errors.Is(err, merkle.ErrInvalidDigest):
			api.AbortWithError(ctx, http.StatusBadRequest, syncproto.CodeInvalidRequest, err)
		default:
			api.AbortWithError(ctx, http.StatusInternalServerError, syncproto.CodeInternalError, err)
		}
		return
	}

	ctx.PureJSON(http.StatusOK, resp)
}

// Health reports liveness along with the tree identity.
func (h *TreeHandler) Health(ctx *gin.Context) {
	snap := h.auth.Snapshot()
	ctx.PureJSON(http.StatusOK, syncproto.HealthResponse{
		Status:    "ok",
		FileCount: snap.FileCount,
		Digest:    snap.Digest,
	})
}
