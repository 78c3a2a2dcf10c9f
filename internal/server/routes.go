package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/treesync/internal/server/handlers/admin"
	"github.com/openmined/treesync/internal/server/handlers/tree"
	"github.com/openmined/treesync/internal/server/middlewares"
	"github.com/openmined/treesync/internal/syncproto"
	"github.com/openmined/treesync/internal/version"
)

func SetupRoutes(config *Config, svc *Services) http.Handler {
	r := gin.New()

	treeH := tree.New(svc.Authority)
	adminH := admin.New(svc.Authority, svc.Rebuilder)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.Secure(config.TLS()))
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())

	r.GET("/", IndexHandler)
	r.GET(syncproto.PathHealth, treeH.Health)

	r.GET(syncproto.PathTreeDigest, treeH.GetDigest)
	r.GET(syncproto.PathTree, treeH.GetTree)
	r.POST(syncproto.PathTreeDiff, treeH.PostDiff)

	adminG := r.Group("", middlewares.AdminOnly(config.AdminEnabled))
	{
		adminG.PUT(syncproto.PathAdminTree, adminH.ReplaceTree)
		adminG.POST(syncproto.PathAdminRebuild, adminH.Rebuild)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, syncproto.ErrorResponse{
			Code:    syncproto.CodeNotFound,
			Message: "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, syncproto.ErrorResponse{
			Code:    syncproto.CodeMethodNotAllow,
			Message: "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, version.Current())
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
