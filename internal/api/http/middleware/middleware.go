package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"context-chatbot/pkg/log"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// Middleware 中间件管理器
type Middleware struct {
	logger      *log.Logger
	corsOrigins []string
}

// NewMiddleware 创建新的中间件管理器；corsOrigins 为空时允许任意来源
func NewMiddleware(logger *log.Logger, corsOrigins []string) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{logger: logger, corsOrigins: corsOrigins}
}

// RequestID 为每个请求分配 request_id，并把带该字段的 logger 放入 context
func (m *Middleware) RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(RequestIDHeader, id)

		start := time.Now()
		logger := m.logger.With("request_id", id)
		c.Next(log.WithContext(ctx, logger))

		logger.Debug("请求完成",
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"elapsed_ms", time.Since(start).Milliseconds())
	}
}

// CORS CORS 中间件
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := m.allowOrigin(string(c.GetHeader("Origin")))
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+RequestIDHeader)
			c.Header("Access-Control-Max-Age", "86400")
		}

		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	if len(m.corsOrigins) == 0 {
		return "*"
	}
	for _, o := range m.corsOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return o
		}
	}
	return ""
}
