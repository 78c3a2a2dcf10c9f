package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/openmined/treesync/internal/syncproto"
)

// probes are a few dozen bytes, compressing them only costs time
var excludedPaths = []string{
	syncproto.PathHealth,
	syncproto.PathTreeDigest,
}

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(excludedPaths),
	)
}
