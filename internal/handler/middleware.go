package handler

import (
	"strings"
	"time"

	"payoutledger/internal/auth"
	"payoutledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LoggerMiddleware 日志中间件
func LoggerMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		if query != "" {
			path = path + "?" + query
		}

		status := c.Writer.Status()
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		}
		event.
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Msg("HTTP")
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("PANIC")
				response.ServerError(c)
			}
		}()
		c.Next()
	}
}

// AuthMiddleware 解析 Bearer 令牌，把身份放入请求的 context
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "缺少认证令牌")
			return
		}

		a, err := tokens.Parse(token)
		if err != nil {
			response.Unauthorized(c, "认证令牌无效")
			return
		}

		c.Request = c.Request.WithContext(auth.WithContext(c.Request.Context(), a))
		c.Next()
	}
}

// AdminOnly 管理后台路由
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := actor(c).RequireAdmin(); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}
