package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/treesync/internal/merkle"
	"github.com/openmined/treesync/internal/server/authority"
	"github.com/openmined/treesync/internal/server/handlers/api"
	"github.com/openmined/treesync/internal/syncproto"
)

// AdminHandler exposes the out-of-band ways to replace the authority tree.
type AdminHandler struct {
	auth      *authority.Authority
	rebuilder *authority.Rebuilder
}

func New(auth *authority.Authority, rebuilder *authority.Rebuilder) *AdminHandler {
	return &AdminHandler{
		auth:      auth,
		rebuilder: rebuilder,
	}
}

// ReplaceTree swaps in the tree from the request body.
func (h *AdminHandler) ReplaceTree(ctx *gin.Context) {
	var req syncproto.ReplaceTreeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, syncproto.CodeInvalidRequest, err)
		return
	}

	if req.Tree == nil {
		api.AbortWithError(ctx, http.StatusBadRequest, syncproto.CodeInvalidRequest, fmt.Errorf("`tree` is required"))
		return
	}

	if err := req.Tree.Validate(); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, syncproto.CodeInvalidRequest, err)
		return
	}

	prev, snap, changed := h.auth.Swap(req.Tree)
	slog.Info("admin tree replace", "changed", changed, "version", snap.Version, "files", snap.FileCount)

	ctx.PureJSON(http.StatusOK, swapResponse(snap, merkle.Diff(prev.Tree, snap.Tree), changed))
}

// Rebuild re-walks the configured root and swaps the result in.
func (h *AdminHandler) Rebuild(ctx *gin.Context) {
	snap, cs, changed, err := h.rebuilder.Rebuild(ctx.Request.Context())
	if err != nil {
		if errors.Is(err, authority.ErrNoRoot) {
			api.AbortWithError(ctx, http.StatusBadRequest, syncproto.CodeInvalidRequest, err)
			return
		}
		api.AbortWithError(ctx, http.StatusInternalServerError, syncproto.CodeRebuildFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, swapResponse(snap, cs, changed))
}

func swapResponse(snap *authority.Snapshot, cs merkle.ChangeSet, changed bool) *syncproto.SwapResponse {
	return &syncproto.SwapResponse{
		Changed:   changed,
		Version:   snap.Version,
		Digest:    snap.Digest,
		FileCount: snap.FileCount,
		ChangeSet: cs,
	}
}
