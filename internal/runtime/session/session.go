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

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session 一个客户端的对话：有序、只追加的历史
type Session struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []*Message `json:"messages"`

	mu sync.RWMutex
}

// NewID 生成会话 ID
func NewID() string {
	return "session-" + uuid.New().String()
}

// New 创建新 Session（id 为空时自动生成）
func New(id string) *Session {
	now := time.Now()
	if id == "" {
		id = NewID()
	}
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage 追加一条对话消息
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
	s.Messages = append(s.Messages, &Message{Role: role, Content: content, Timestamp: s.UpdatedAt})
}

// AddTurn 同时追加用户消息与助手回复，历史中不会出现半轮对话
func (s *Session) AddTurn(user, assistant string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
	if at.IsZero() {
		at = s.UpdatedAt
	}
	s.Messages = append(s.Messages,
		&Message{Role: RoleUser, Content: user, Timestamp: at},
		&Message{Role: RoleAssistant, Content: assistant, Timestamp: s.UpdatedAt},
	)
}

// Reset 清空历史
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
	s.Messages = nil
}

// Len 历史条数
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// CopyMessages 返回 Messages 的副本
func (s *Session) CopyMessages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Messages) == 0 {
		return nil
	}
	out := make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = &Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	}
	return out
}
