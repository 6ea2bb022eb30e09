package middleware

import (
	"context"
	"strings"

	"github.com/duesledger/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling attaches route, method and tenant pyroscope labels to the
// request. Paths under skipPrefixes are not labeled. Place it after
// JWTAuthMiddleware so tenant_id is known.
func Profiling(enabled bool, skipPrefixes ...string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		labels := map[string]string{
			telemetry.LabelMethod:   c.Request.Method,
			telemetry.LabelRoute:    c.FullPath(),
			telemetry.LabelTenantID: GetJWTTenantID(c),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
