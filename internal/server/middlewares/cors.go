package middlewares

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openmined/treesync/internal/syncproto"
)

// CORS allows browser tooling to probe and read the tree from any origin.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept-Encoding", syncproto.HeaderSession},
		ExposeHeaders: []string{"Content-Length"},
	})
}
