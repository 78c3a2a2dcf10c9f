package api

import (
	"github.com/gin-gonic/gin"

	"github.com/openmined/treesync/internal/syncproto"
)

// AbortWithError stops the handler chain and writes the error envelope.
func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, syncproto.ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}
