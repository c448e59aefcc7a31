// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 日记条目的默认字段值。
const (
	DefaultEntryTitle = "Journal Entry"
	DefaultEntryMood  = "📝"
)

// JournalEntry 定义了 journal_entries 表的 ORM 模型。
// 每个用户每个日期最多一条，(user_id, date) 为唯一键。
type JournalEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uk_user_date" json:"owner_id"`
	Date      string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_user_date" json:"date"` // YYYY-MM-DD
	Title     string    `gorm:"type:varchar(255);not null;default:'Journal Entry'" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	Mood      string    `gorm:"type:varchar(16)" json:"mood"`
	Duration  string    `gorm:"type:varchar(32)" json:"duration"`
	AudioURL  string    `gorm:"type:varchar(512)" json:"audio_url"`
	IsStarred bool      `gorm:"not null;default:false" json:"is_starred"`
	IsHidden  bool      `gorm:"not null;default:false" json:"is_hidden"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (JournalEntry) TableName() string {
	return "journal_entries"
}
