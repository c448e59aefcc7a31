// Package tasks 定义了通过 Kafka 传递的后台任务结构。
package tasks

// 任务动作常量。
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// EntryIndexTask 表示一个日记条目的搜索索引任务。
type EntryIndexTask struct {
	UserID uint   `json:"userId"`
	Date   string `json:"date"`
	Action string `json:"action"` // "upsert" 或 "delete"
}
