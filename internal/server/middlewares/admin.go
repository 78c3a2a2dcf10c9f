package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/treesync/internal/server/handlers/api"
	"github.com/openmined/treesync/internal/syncproto"
)

var errAdminDisabled = errors.New("admin operations are disabled")

// AdminOnly rejects every request unless admin operations are enabled.
func AdminOnly(enabled bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !enabled {
			api.AbortWithError(ctx, http.StatusForbidden, syncproto.CodeAdminDisabled, errAdminDisabled)
			return
		}
		ctx.Next()
	}
}
