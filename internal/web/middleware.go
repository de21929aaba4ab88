package web

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// publicPaths 不需要认证的路径
var publicPaths = map[string]bool{
	"/health":      true,
	"/favicon.ico": true,
}

// basicAuthMiddleware 保护首页、/api 控制接口和 /api/events 事件流。
// 事件流由 EventSource 发起，浏览器会带上已缓存的 Basic Auth 凭据。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "ALZ.NEWS"

	return func(c *gin.Context) {
		if publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok || !credentialsMatch(u, p, user, pass) {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// credentialsMatch 用户名和密码都做常量时间比较，避免短路
func credentialsMatch(u, p, user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(u), []byte(user))
	passOK := subtle.ConstantTimeCompare([]byte(p), []byte(pass))
	return userOK&passOK == 1
}

// zapLogger 用 zap 记录每个请求，替代 gin 自带的 Logger
func zapLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			l.Error("web: request", fields...)
		case c.Request.URL.Path == "/health":
			l.Debug("web: request", fields...)
		default:
			l.Info("web: request", fields...)
		}
	}
}
