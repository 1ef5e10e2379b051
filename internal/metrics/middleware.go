package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request count and duration for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = pathLabel(c.Request.URL.Path)
		}
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// pathLabel keeps label cardinality bounded for unmatched routes.
func pathLabel(p string) string {
	p = strings.Trim(p, "/")
	parts := strings.SplitN(p, "/", 3)
	if len(parts) >= 2 {
		return "unmatched:" + parts[0] + "_" + parts[1]
	}
	if len(parts) == 1 && parts[0] != "" {
		return "unmatched:" + parts[0]
	}
	return "root"
}
