package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin rejects websocket upgrades whose Origin header is not allowed.
// An empty list allows every origin.
func Origin(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(strings.ToLower(o)); o != "" {
			set[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		if len(set) == 0 || c.Request.Method != http.MethodGet || !isUpgrade(c.Request) {
			c.Next()
			return
		}
		origin := strings.ToLower(c.GetHeader("Origin"))
		if _, ok := set[origin]; origin != "" && !ok {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
