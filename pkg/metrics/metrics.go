package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		ChatRequestsTotal, ChatDuration,
		TierAttemptsTotal, TierDuration,
		ToolDuration, ToolFallbackTotal,
		SearchTotal,
		LLMRequestsTotal, LLMDuration, RateLimitWaitSeconds,
		SessionsActive,
	)
}

// ChatRequestsTotal 对话请求数（按最终路径）
var ChatRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_chat_requests_total",
		Help: "对话请求总数（按 path_used）",
	},
	[]string{"path"}, // agent | scripted_workflow | manual_workflow | direct_llm
)

// ChatDuration 单次对话端到端耗时（秒）
var ChatDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chatbot_chat_duration_seconds",
		Help:    "对话端到端耗时（秒）",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	},
	[]string{"path"},
)

// TierAttemptsTotal 各降级层尝试次数（按结果）
var TierAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_tier_attempts_total",
		Help: "降级层尝试次数",
	},
	[]string{"tier", "outcome"}, // outcome: success | error | timeout | panic | skipped
)

// TierDuration 各降级层单次尝试耗时（秒）
var TierDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chatbot_tier_duration_seconds",
		Help:    "降级层尝试耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tier"},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chatbot_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolFallbackTotal 工具失败后采用安全默认值的次数
var ToolFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_tool_fallback_total",
		Help: "工具采用安全默认值次数",
	},
	[]string{"tool", "reason"}, // reason: gateway | parse | empty
)

// SearchTotal 搜索后端调用次数（按结果）
var SearchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_search_total",
		Help: "搜索后端调用次数",
	},
	[]string{"backend", "outcome"}, // backend: tavily | wikipedia | none
)

// LLMRequestsTotal 模型网关调用次数（按结果）
var LLMRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_llm_requests_total",
		Help: "模型网关调用次数",
	},
	[]string{"provider", "outcome"}, // outcome: success | unavailable | timeout
)

// LLMDuration 模型网关调用耗时（秒）
var LLMDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chatbot_llm_duration_seconds",
		Help:    "模型网关调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// RateLimitWaitSeconds 限流等待耗时（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chatbot_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// SessionsActive 当前存活的会话数（内存存储）
var SessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "chatbot_sessions_active",
		Help: "当前会话数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
