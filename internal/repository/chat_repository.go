// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"calling-journal-go/internal/model"

	"gorm.io/gorm"
)

// ChatRepository 接口定义了会话与消息日志的持久化操作。
// 消息日志是只追加的：消息一经写入不再修改或单独删除，
// 只会随所属会话被级联删除。
type ChatRepository interface {
	CreateSession(session *model.ChatSession) error
	FindSession(userID, sessionID uint) (*model.ChatSession, error)
	ListSessions(userID uint) ([]model.ChatSession, error)
	DeleteSession(userID, sessionID uint) error
	AppendMessage(message *model.ChatMessage) error
	ListMessages(sessionID uint) ([]model.ChatMessage, error)
}

// chatRepository 是 ChatRepository 接口的 GORM 实现。
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CreateSession 在数据库中创建一个新的会话。
func (r *chatRepository) CreateSession(session *model.ChatSession) error {
	return r.db.Create(session).Error
}

// FindSession 查找属于指定用户的会话。
// 会话不存在或不属于该用户时返回 gorm.ErrRecordNotFound。
func (r *chatRepository) FindSession(userID, sessionID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions 检索指定用户的所有会话，按最近更新时间倒序。
func (r *chatRepository) ListSessions(userID uint) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// DeleteSession 删除指定用户的会话，并在同一事务中级联删除其全部消息。
// 会话不属于该用户时返回 gorm.ErrRecordNotFound。
func (r *chatRepository) DeleteSession(userID, sessionID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&model.ChatSession{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("session_id = ?", sessionID).Delete(&model.ChatMessage{}).Error
	})
}

// AppendMessage 向会话追加一条消息，并刷新会话的 updated_at，
// 以保证会话列表按最近活跃排序。会话不存在时返回 gorm.ErrRecordNotFound。
func (r *chatRepository) AppendMessage(message *model.ChatMessage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var session model.ChatSession
		if err := tx.First(&session, message.SessionID).Error; err != nil {
			return err
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		// Save 触发 autoUpdateTime 刷新 updated_at
		return tx.Save(&session).Error
	})
}

// ListMessages 检索会话的全部消息，按创建顺序从旧到新，不分页。
func (r *chatRepository) ListMessages(sessionID uint) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}
