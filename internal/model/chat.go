// Package model 包含了应用的数据模型定义。
package model

import "time"

// 消息角色常量。消息一经写入不可变更。
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatSession 代表一个与 AI 助手的命名对话线程。
// 会话不会被自动删除，只在用户显式请求时删除（级联删除其消息）。
type ChatSession struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 代表会话内的一条消息，按创建时间单调有序，只追加不修改。
// Context 保存发送当时装配出的文档状态快照（可为空）。
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID uint      `gorm:"index;not null" json:"session_id"`
	Role      string    `gorm:"type:varchar(10);not null" json:"role"` // "user" 或 "model"
	Content   string    `gorm:"type:text;not null" json:"content"`
	Context   string    `gorm:"type:text" json:"context,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
