package session

import (
	"time"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 对话消息（带时间戳）
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage 单次请求的用户输入；随请求创建，归属于会话
type ChatMessage struct {
	SessionID string
	Text      string
	Timestamp time.Time
}

// NewChatMessage 创建请求消息
func NewChatMessage(sessionID, text string) ChatMessage {
	return ChatMessage{SessionID: sessionID, Text: text, Timestamp: time.Now()}
}
