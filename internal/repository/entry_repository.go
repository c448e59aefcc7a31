// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"calling-journal-go/internal/model"

	"gorm.io/gorm"
)

// EntryRepository 接口定义了日记条目的持久化操作。
// 条目以 (user_id, date) 为唯一键，一天一条。
type EntryRepository interface {
	Create(entry *model.JournalEntry) error
	Update(entry *model.JournalEntry) error
	Delete(userID uint, date string) error
	FindByUserAndDate(userID uint, date string) (*model.JournalEntry, error)
	FindByUser(userID uint, offset, limit int) ([]model.JournalEntry, error)
}

// entryRepository 是 EntryRepository 接口的 GORM 实现。
type entryRepository struct {
	db *gorm.DB
}

// NewEntryRepository 创建一个新的 EntryRepository 实例。
func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{db: db}
}

// Create 在数据库中创建一个新的条目记录。
// (user_id, date) 已存在时由唯一索引拒绝写入。
func (r *entryRepository) Create(entry *model.JournalEntry) error {
	return r.db.Create(entry).Error
}

// Update 更新数据库中一个已存在的条目记录。
func (r *entryRepository) Update(entry *model.JournalEntry) error {
	return r.db.Save(entry).Error
}

// Delete 删除指定用户在指定日期的条目。
// 不存在时返回 gorm.ErrRecordNotFound。
func (r *entryRepository) Delete(userID uint, date string) error {
	result := r.db.Where("user_id = ? AND date = ?", userID, date).Delete(&model.JournalEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByUserAndDate 查找指定用户在指定日期的条目。
func (r *entryRepository) FindByUserAndDate(userID uint, date string) (*model.JournalEntry, error) {
	var entry model.JournalEntry
	err := r.db.Where("user_id = ? AND date = ?", userID, date).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByUser 分页检索指定用户的条目，按日期倒序。
func (r *entryRepository) FindByUser(userID uint, offset, limit int) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	err := r.db.Where("user_id = ?", userID).
		Order("date DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
