package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepl_SendsUntilQuit(t *testing.T) {
	var sent []string
	in := strings.NewReader("hello\n\nWhat is Go?\nquit\nnever sent\n")
	var out bytes.Buffer

	repl(in, &out, func(message string) (*chatReply, error) {
		sent = append(sent, message)
		return &chatReply{Answer: "reply to " + message, PathUsed: "agent", SessionID: "s1"}, nil
	})

	assert.Equal(t, []string{"hello", "What is Go?"}, sent)
	assert.Contains(t, out.String(), "Bot: reply to What is Go?")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRepl_EOFAndErrors(t *testing.T) {
	var out bytes.Buffer
	repl(strings.NewReader("boom"), &out, func(string) (*chatReply, error) {
		return nil, errors.New("connection refused")
	})
	assert.Contains(t, out.String(), "Error: connection refused")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestIsQuit(t *testing.T) {
	for _, s := range []string{"quit", "EXIT", "q"} {
		assert.True(t, isQuit(s), s)
	}
	assert.False(t, isQuit("question"))
}

func TestClient_AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/health":
			_, _ = w.Write([]byte(`{"status":"healthy","agent":"ready"}`))
		case "/api/chat":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(chatReply{Answer: "echo " + body["message"], PathUsed: "scripted_workflow", SessionID: "s9"})
		case "/api/sessions/s9/clear":
			_, _ = w.Write([]byte(`{"status":"cleared","session_id":"s9"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	t.Setenv("CHATBOT_API_URL", srv.URL)

	health, err := getHealth()
	require.NoError(t, err)
	assert.Equal(t, "ready", health["agent"])

	reply, err := postChat("hi", "")
	require.NoError(t, err)
	assert.Equal(t, "echo hi", reply.Answer)
	assert.Equal(t, "s9", reply.SessionID)

	require.NoError(t, clearSession("s9"))
	assert.Error(t, clearSession("missing"))
}
