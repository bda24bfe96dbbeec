package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"BeepPager/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, path, origin string, upgrade bool) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if upgrade {
		req.Header.Set("Upgrade", "websocket")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestOrigin(t *testing.T) {
	r := newEngine(Origin([]string{"https://app.example.com"}))

	require.Equal(t, http.StatusNoContent, do(r, "/ws", "https://app.example.com", true))
	require.Equal(t, http.StatusNoContent, do(r, "/ws", "HTTPS://APP.EXAMPLE.COM", true))
	require.Equal(t, http.StatusForbidden, do(r, "/ws", "https://evil.example.com", true))
	require.Equal(t, http.StatusNoContent, do(r, "/ws", "", true))
	require.Equal(t, http.StatusNoContent, do(r, "/ws", "https://evil.example.com", false))

	open := newEngine(Origin(nil))
	require.Equal(t, http.StatusNoContent, do(open, "/ws", "https://evil.example.com", true))
}

func TestAccessLogAndRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	r := newEngine(AccessLog(), Recovery())
	require.Equal(t, http.StatusNoContent, do(r, "/ws", "", false))
	require.Equal(t, http.StatusInternalServerError, do(r, "/boom", "", false))

	require.Equal(t, 1, logs.FilterMessage("[http] panic recovered").Len())
	entries := logs.FilterMessage("[http]").All()
	require.Len(t, entries, 2)
	require.Equal(t, int64(http.StatusNoContent), entries[0].ContextMap()["status"])
	require.Equal(t, "/boom", entries[1].ContextMap()["path"])
}
