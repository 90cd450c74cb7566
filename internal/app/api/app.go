package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"context-chatbot/internal/api/http"
	"context-chatbot/internal/api/http/middleware"
	"context-chatbot/internal/app"
	"context-chatbot/internal/runtime/session"
	chatcfg "context-chatbot/pkg/config"
	"context-chatbot/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
	stopSweeper  context.CancelFunc
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil || bootstrap.Controller == nil {
		return nil, fmt.Errorf("bootstrap 未完成初始化")
	}
	handler := http.NewHandler(bootstrap.Controller, bootstrap.Sessions, bootstrap.Logger)

	var origins []string
	if bootstrap.Config.API.CORS.Enable {
		origins = bootstrap.Config.API.CORS.AllowOrigins
	}
	mw := middleware.NewMiddleware(bootstrap.Logger, origins)
	router := http.NewRouter(handler, mw)
	router.SetMetricsEnabled(bootstrap.Config.Monitoring.Prometheus.Enable)

	return &App{bootstrap: bootstrap, router: router}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	logger := a.bootstrap.Logger
	logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	var output io.Writer = os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 客户端断开时取消请求 ctx，未完成的层调用随之放弃
	opts := []config.Option{server.WithSenseClientDisconnection(true)}
	// 写超时不设置：一次聊天的耗时上限由各层超时之和决定
	if timeout := chatcfg.ParseDuration(cfg.API.Timeout, 0); timeout > 0 {
		opts = append(opts, server.WithReadTimeout(timeout))
	}

	// 可选：启用链路追踪（OpenTelemetry）
	var tracerCfg *hertztracing.Config
	if cfg.Monitoring.Tracing.Enable {
		serviceName := cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "context-chatbot"
		}
		exportEndpoint := cfg.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			popts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if cfg.Monitoring.Tracing.Insecure {
				popts = append(popts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(popts...)
			tracerOpt, tc := hertztracing.NewServerTracer()
			opts = append(opts, tracerOpt)
			tracerCfg = tc
			logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		}
	}

	a.hertz = server.Default(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)
	if tracerCfg != nil {
		a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
	}
	a.router.Register(a.hertz)

	if mem, ok := a.bootstrap.Sessions.Store().(*session.MemoryStore); ok {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopSweeper = cancel
		go mem.RunSweeper(ctx, time.Minute)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.stopSweeper != nil {
		a.stopSweeper()
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return a.bootstrap.Close(ctx)
}
