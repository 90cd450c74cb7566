package http

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"context-chatbot/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler       *Handler
	middleware    *middleware.Middleware
	enableMetrics bool
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	if mw == nil {
		mw = middleware.NewMiddleware(nil, nil)
	}
	return &Router{handler: handler, middleware: mw, enableMetrics: true}
}

// SetMetricsEnabled 是否暴露 /metrics
func (r *Router) SetMetricsEnabled(enabled bool) {
	r.enableMetrics = enabled
}

// Build 创建 Hertz 实例并注册路由；客户端断开时取消请求 ctx
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{
		server.WithHostPorts(addr),
		server.WithSenseClientDisconnection(true),
	}, opts...)
	h := server.Default(opts...)
	r.Register(h)
	return h
}

// Register 在已有 Hertz 实例上注册路由
func (r *Router) Register(h *server.Hertz) {
	h.Use(r.middleware.RequestID(), r.middleware.CORS())

	// 预检请求由 CORS 中间件直接应答
	h.OPTIONS("/*path", func(ctx context.Context, c *app.RequestContext) {})

	h.GET("/", r.handler.Index)
	if r.enableMetrics {
		h.GET("/metrics", r.handler.Metrics)
	}

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/chat", r.handler.Chat)

	sessions := api.Group("/sessions")
	sessions.GET("/:id/history", r.handler.SessionHistory)
	sessions.POST("/:id/clear", r.handler.ClearSession)
}
