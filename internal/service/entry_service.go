// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"calling-journal-go/internal/model"
	"calling-journal-go/internal/repository"
	"calling-journal-go/pkg/log"
	"calling-journal-go/pkg/storage"
	"calling-journal-go/pkg/tasks"

	"gorm.io/gorm"
)

// 条目相关的业务错误。
var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrEntryExists   = errors.New("entry already exists for this date")
	ErrInvalidDate   = errors.New("invalid date format, expected YYYY-MM-DD")
)

// IndexTaskProducer 将条目索引任务投递到消息队列。
// 与 kafka.ProduceEntryTask 的签名一致，测试中可替换为空实现。
type IndexTaskProducer func(task tasks.EntryIndexTask) error

// EntryInput 携带创建条目时的全部字段。
type EntryInput struct {
	Date      string
	Title     string
	Content   string
	Mood      string
	Duration  string
	AudioURL  string
	IsStarred bool
	IsHidden  bool
}

// EntryUpdate 携带更新条目时的字段，nil 表示该字段不变。
type EntryUpdate struct {
	Title     *string
	Content   *string
	Mood      *string
	Duration  *string
	AudioURL  *string
	IsStarred *bool
	IsHidden  *bool
}

// EntryService 接口定义了日记条目的业务操作。
// 存储层不做合并写入：需要 upsert 语义的调用方先 Get 探测存在性，
// 再决定调用 Create 还是 Update。
type EntryService interface {
	Get(userID uint, date string) (*model.JournalEntry, error)
	List(userID uint, skip, limit int) ([]model.JournalEntry, error)
	Create(userID uint, input EntryInput) (*model.JournalEntry, error)
	Update(userID uint, date string, update EntryUpdate) (*model.JournalEntry, error)
	Delete(userID uint, date string) error
	AttachAudio(ctx context.Context, userID uint, date, filename string, reader io.Reader, size int64, contentType string) (*model.JournalEntry, string, error)
}

// entryService 是 EntryService 接口的实现。
type entryService struct {
	entryRepo   repository.EntryRepository
	objectStore storage.ObjectStore
	produceTask IndexTaskProducer
}

// NewEntryService 创建一个新的 EntryService 实例。
func NewEntryService(entryRepo repository.EntryRepository, objectStore storage.ObjectStore, produceTask IndexTaskProducer) EntryService {
	return &entryService{
		entryRepo:   entryRepo,
		objectStore: objectStore,
		produceTask: produceTask,
	}
}

// validateDate 校验日期键格式为 YYYY-MM-DD。
func validateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// Get 查找指定日期的条目，不存在时返回 ErrEntryNotFound。
func (s *entryService) Get(userID uint, date string) (*model.JournalEntry, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	entry, err := s.entryRepo.FindByUserAndDate(userID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

// List 分页检索用户的条目。
func (s *entryService) List(userID uint, skip, limit int) ([]model.JournalEntry, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.entryRepo.FindByUser(userID, skip, limit)
}

// Create 为指定日期创建条目，该日期已有条目时返回 ErrEntryExists。
func (s *entryService) Create(userID uint, input EntryInput) (*model.JournalEntry, error) {
	if err := validateDate(input.Date); err != nil {
		return nil, err
	}

	// 先探测存在性：一天只允许一条
	_, err := s.entryRepo.FindByUserAndDate(userID, input.Date)
	if err == nil {
		return nil, ErrEntryExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	entry := &model.JournalEntry{
		UserID:    userID,
		Date:      input.Date,
		Title:     input.Title,
		Content:   input.Content,
		Mood:      input.Mood,
		Duration:  input.Duration,
		AudioURL:  input.AudioURL,
		IsStarred: input.IsStarred,
		IsHidden:  input.IsHidden,
	}
	if entry.Title == "" {
		entry.Title = model.DefaultEntryTitle
	}
	if entry.Mood == "" {
		entry.Mood = model.DefaultEntryMood
	}

	if err := s.entryRepo.Create(entry); err != nil {
		return nil, err
	}

	s.publishIndexTask(userID, entry.Date, tasks.ActionUpsert)
	return entry, nil
}

// Update 更新指定日期的条目，不存在时返回 ErrEntryNotFound。
// 只覆盖 update 中非 nil 的字段。
func (s *entryService) Update(userID uint, date string, update EntryUpdate) (*model.JournalEntry, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	entry, err := s.entryRepo.FindByUserAndDate(userID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	if update.Title != nil {
		entry.Title = *update.Title
	}
	if update.Content != nil {
		entry.Content = *update.Content
	}
	if update.Mood != nil {
		entry.Mood = *update.Mood
	}
	if update.Duration != nil {
		entry.Duration = *update.Duration
	}
	if update.AudioURL != nil {
		entry.AudioURL = *update.AudioURL
	}
	if update.IsStarred != nil {
		entry.IsStarred = *update.IsStarred
	}
	if update.IsHidden != nil {
		entry.IsHidden = *update.IsHidden
	}

	if err := s.entryRepo.Update(entry); err != nil {
		return nil, err
	}

	s.publishIndexTask(userID, date, tasks.ActionUpsert)
	return entry, nil
}

// Delete 删除指定日期的条目，不存在时返回 ErrEntryNotFound。
func (s *entryService) Delete(userID uint, date string) error {
	if err := validateDate(date); err != nil {
		return err
	}
	if err := s.entryRepo.Delete(userID, date); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEntryNotFound
		}
		return err
	}

	s.publishIndexTask(userID, date, tasks.ActionDelete)
	return nil
}

// AttachAudio 上传条目的录音文件到对象存储，更新条目的 audio_url，
// 并返回一个限时的预签名下载地址。
func (s *entryService) AttachAudio(ctx context.Context, userID uint, date, filename string, reader io.Reader, size int64, contentType string) (*model.JournalEntry, string, error) {
	if err := validateDate(date); err != nil {
		return nil, "", err
	}
	entry, err := s.entryRepo.FindByUserAndDate(userID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrEntryNotFound
		}
		return nil, "", err
	}

	objectName := fmt.Sprintf("audio/%d/%s%s", userID, date, path.Ext(filename))
	if err := s.objectStore.Upload(ctx, objectName, reader, size, contentType); err != nil {
		return nil, "", fmt.Errorf("failed to upload audio object: %w", err)
	}

	entry.AudioURL = objectName
	if err := s.entryRepo.Update(entry); err != nil {
		return nil, "", err
	}

	presignedURL, err := s.objectStore.PresignedURL(ctx, objectName, 24*time.Hour)
	if err != nil {
		return nil, "", fmt.Errorf("failed to presign audio object: %w", err)
	}

	s.publishIndexTask(userID, date, tasks.ActionUpsert)
	return entry, presignedURL, nil
}

// publishIndexTask 投递索引任务。投递失败只记录日志：
// 搜索允许滞后，条目写入不因索引失败而回滚。
func (s *entryService) publishIndexTask(userID uint, date, action string) {
	if s.produceTask == nil {
		return
	}
	task := tasks.EntryIndexTask{UserID: userID, Date: date, Action: action}
	if err := s.produceTask(task); err != nil {
		log.Errorf("[EntryService] 投递条目索引任务失败: userID=%d, date=%s, error: %v", userID, date, err)
	}
}
