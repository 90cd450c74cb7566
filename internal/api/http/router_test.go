package http

import (
	"bytes"
	"context"
	"net"
	nethttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"context-chatbot/internal/agent"
	"context-chatbot/internal/api/http/middleware"
	"context-chatbot/internal/runtime/session"
)

func buildRouterForTest(metricsEnabled bool) *server.Hertz {
	chat := &stubChatter{ready: true, resp: &agent.Response{Answer: "ok answer", PathUsed: agent.TierAgent}}
	h := NewHandler(chat, session.NewManager(nil), nil)
	r := NewRouter(h, middleware.NewMiddleware(nil, nil))
	r.SetMetricsEnabled(metricsEnabled)
	return r.Build(":0")
}

func TestRouter_Routes(t *testing.T) {
	s := buildRouterForTest(true)

	w := perform(s, "GET", "/", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "<title>Context-Aware Chatbot</title>")

	w = perform(s, "GET", "/api/health", nil)
	assert.Equal(t, 200, w.Result().StatusCode())

	body := []byte(`{"message":"hello"}`)
	w = ut.PerformRequest(s.Engine, "POST", "/api/chat", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.NotEmpty(t, w.Result().Header.Get(middleware.RequestIDHeader))

	w = perform(s, "GET", "/metrics", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.True(t, strings.Contains(string(w.Result().Body()), "chatbot_"))

	w = perform(s, "GET", "/api/sessions/abc/history", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestRouter_MetricsDisabled(t *testing.T) {
	s := buildRouterForTest(false)
	w := perform(s, "GET", "/metrics", nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	s := buildRouterForTest(true)
	w := perform(s, "GET", "/api/health", nil, ut.Header{Key: middleware.RequestIDHeader, Value: "req-42"})
	assert.Equal(t, "req-42", w.Result().Header.Get(middleware.RequestIDHeader))
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := buildRouterForTest(true)
	w := perform(s, "OPTIONS", "/api/chat", nil, ut.Header{Key: "Origin", Value: "http://example.com"})
	assert.Equal(t, 204, w.Result().StatusCode())
	assert.Equal(t, "*", w.Result().Header.Get("Access-Control-Allow-Origin"))
}

// blockingChatter 阻塞直到请求 ctx 被取消
type blockingChatter struct {
	canceled chan struct{}
}

func (b *blockingChatter) Handle(ctx context.Context, sessionID, text string) *agent.Response {
	select {
	case <-ctx.Done():
		close(b.canceled)
	case <-time.After(10 * time.Second):
	}
	return &agent.Response{Answer: agent.DefaultApology, PathUsed: agent.TierDirect, SessionID: sessionID}
}

func (b *blockingChatter) AgentReady() bool { return true }

func TestRouter_ClientDisconnectCancelsRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	chat := &blockingChatter{canceled: make(chan struct{})}
	s := NewRouter(NewHandler(chat, session.NewManager(nil), nil), nil).Build(addr)
	go s.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	client := &nethttp.Client{Timeout: 300 * time.Millisecond}
	_, err = client.Post("http://"+addr+"/api/chat", "application/json", strings.NewReader(`{"message":"hello"}`))
	require.Error(t, err)

	select {
	case <-chat.canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("request context was not canceled after the client disconnected")
	}
}
