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

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// chatReply POST /api/chat 响应
type chatReply struct {
	Answer    string `json:"answer"`
	PathUsed  string `json:"path_used"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

func apiBaseURL() string {
	if u := os.Getenv("CHATBOT_API_URL"); u != "" {
		return u
	}
	return "http://localhost:5000"
}

// 聊天可能依次走完全部降级层，超时需覆盖各层超时之和
func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(3 * time.Minute).
		SetHeader("Content-Type", "application/json")
}

func getHealth() (map[string]string, error) {
	var out map[string]string
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/health: %s", resp.String())
	}
	return out, nil
}

func postChat(message, sessionID string) (*chatReply, error) {
	body := map[string]string{"message": message}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	var out chatReply
	resp, err := newClient().R().
		SetBody(body).
		SetResult(&out).
		Post("/api/chat")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/chat: %s", resp.String())
	}
	return &out, nil
}

func clearSession(sessionID string) error {
	resp, err := newClient().R().
		Post("/api/sessions/" + url.PathEscape(sessionID) + "/clear")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("POST clear: %s", resp.String())
	}
	return nil
}
