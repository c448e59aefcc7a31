// Package pipeline 包含后台任务处理逻辑。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"calling-journal-go/internal/config"
	"calling-journal-go/internal/model"
	"calling-journal-go/internal/repository"
	"calling-journal-go/pkg/es"
	"calling-journal-go/pkg/log"
	"calling-journal-go/pkg/tasks"

	"gorm.io/gorm"
)

// Indexer 消费条目索引任务，把日记条目镜像到 Elasticsearch。
// 它实现了 kafka.TaskProcessor 接口。
type Indexer struct {
	entryRepo repository.EntryRepository
	esCfg     config.ElasticsearchConfig
}

// NewIndexer 创建一个新的 Indexer 实例。
func NewIndexer(entryRepo repository.EntryRepository, esCfg config.ElasticsearchConfig) *Indexer {
	return &Indexer{
		entryRepo: entryRepo,
		esCfg:     esCfg,
	}
}

// entryDocID 生成条目在索引中的文档 ID，与 (user, date) 一一对应。
func entryDocID(userID uint, date string) string {
	return fmt.Sprintf("entry:%d:%s", userID, date)
}

// Process 处理一个条目索引任务。
// upsert 任务重新读取条目并覆盖写入索引；delete 任务移除索引文档。
func (p *Indexer) Process(ctx context.Context, task tasks.EntryIndexTask) error {
	docID := entryDocID(task.UserID, task.Date)

	if task.Action == tasks.ActionDelete {
		if err := es.DeleteEntry(ctx, p.esCfg.IndexName, docID); err != nil {
			return fmt.Errorf("failed to delete entry from index: %w", err)
		}
		log.Infof("[Indexer] 已从索引移除条目: %s", docID)
		return nil
	}

	entry, err := p.entryRepo.FindByUserAndDate(task.UserID, task.Date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 任务滞后于一次删除，按删除处理
			return es.DeleteEntry(ctx, p.esCfg.IndexName, docID)
		}
		return fmt.Errorf("failed to load entry for indexing: %w", err)
	}

	doc := model.EntryDocument{
		DocID:     docID,
		UserID:    entry.UserID,
		Date:      entry.Date,
		Title:     entry.Title,
		Content:   entry.Content,
		Mood:      entry.Mood,
		UpdatedAt: entry.UpdatedAt,
	}
	if err := es.IndexEntry(ctx, p.esCfg.IndexName, doc); err != nil {
		return fmt.Errorf("failed to index entry: %w", err)
	}

	log.Infof("[Indexer] 条目已写入索引: %s", docID)
	return nil
}
