// Package model 包含了应用的数据模型定义。
package model

import "time"

// EntryDocument 是写入 Elasticsearch 的日记条目文档。
type EntryDocument struct {
	DocID     string    `json:"doc_id"`
	UserID    uint      `json:"user_id"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntrySearchResult 是条目搜索接口返回的单条命中结果。
type EntrySearchResult struct {
	Date    string  `json:"date"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Mood    string  `json:"mood"`
	Score   float64 `json:"score"`
}
