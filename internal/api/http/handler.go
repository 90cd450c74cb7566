// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"context-chatbot/internal/agent"
	"context-chatbot/internal/runtime/session"
	"context-chatbot/pkg/log"
	"context-chatbot/pkg/metrics"
)

//go:embed static/index.html
var indexHTML []byte

// Chatter 处理一条聊天消息（由 agent.Controller 实现）
type Chatter interface {
	Handle(ctx context.Context, sessionID, text string) *agent.Response
	AgentReady() bool
}

// Handler HTTP 处理器
type Handler struct {
	chat     Chatter
	sessions session.SessionManager
	logger   *log.Logger
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(chat Chatter, sessions session.SessionManager, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Handler{chat: chat, sessions: sessions, logger: logger}
}

// ChatRequest POST /api/chat 请求体
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Index 聊天页面
// GET /
func (h *Handler) Index(c context.Context, ctx *app.RequestContext) {
	ctx.Data(consts.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// HealthCheck 存活检查，不触达模型与工具
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	agentState := "disabled"
	if h.chat != nil && h.chat.AgentReady() {
		agentState = "ready"
	}
	ctx.JSON(consts.StatusOK, map[string]string{
		"status": "healthy",
		"agent":  agentState,
	})
}

// Chat 处理聊天消息；总是返回 200 与非空 answer
// POST /api/chat
func (h *Handler) Chat(c context.Context, ctx *app.RequestContext) {
	var req ChatRequest
	if body := ctx.Request.Body(); len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			// 请求体不合法时同样给出可展示的回复，不跑任何层
			sessionID := strings.TrimSpace(req.SessionID)
			if sessionID == "" {
				sessionID = session.NewID()
			}
			log.FromContext(c, h.logger).Warn("聊天请求体解析失败", "session_id", sessionID, "error", err)
			ctx.JSON(consts.StatusOK, &agent.Response{
				Answer:    agent.EmptyMessageAnswer,
				PathUsed:  agent.TierDirect,
				SessionID: sessionID,
				Error:     "invalid request body",
			})
			return
		}
	}
	if h.chat == nil {
		ctx.JSON(consts.StatusOK, &agent.Response{
			Answer:    agent.DefaultApology,
			PathUsed:  agent.TierDirect,
			SessionID: req.SessionID,
			Error:     "chat controller not configured",
		})
		return
	}

	resp := h.chat.Handle(c, strings.TrimSpace(req.SessionID), req.Message)
	if resp.Error != "" {
		log.FromContext(c, h.logger).Warn("聊天请求降级到兜底回复", "session_id", resp.SessionID, "path_used", resp.PathUsed, "error", resp.Error)
	}
	ctx.JSON(consts.StatusOK, resp)
}

// SessionHistory 返回会话历史
// GET /api/sessions/:id/history
func (h *Handler) SessionHistory(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("id")
	if id == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}
	if h.sessions == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "session store not configured"})
		return
	}
	msgs, err := h.sessions.History(c, id)
	if err != nil {
		hlog.CtxErrorf(c, "load history for session %s: %v", id, err)
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "session store unavailable"})
		return
	}
	if msgs == nil {
		msgs = []*session.Message{}
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"session_id": id,
		"messages":   msgs,
	})
}

// ClearSession 清空会话
// POST /api/sessions/:id/clear
func (h *Handler) ClearSession(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("id")
	if id == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}
	if h.sessions == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "session store not configured"})
		return
	}
	if err := h.sessions.Clear(c, id); err != nil {
		hlog.CtxErrorf(c, "clear session %s: %v", id, err)
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "session store unavailable"})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{
		"status":     "cleared",
		"session_id": id,
	})
}

// Metrics Prometheus 指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.String(consts.StatusServiceUnavailable, err.Error())
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
