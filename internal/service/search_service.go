// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"calling-journal-go/internal/model"
	"calling-journal-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// SearchService 接口定义了日记条目的全文搜索操作。
type SearchService interface {
	SearchEntries(ctx context.Context, userID uint, query string, topK int) ([]model.EntrySearchResult, error)
}

type searchService struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(esClient *elasticsearch.Client, indexName string) SearchService {
	return &searchService{
		esClient:  esClient,
		indexName: indexName,
	}
}

// SearchEntries 在用户自己的条目内做全文匹配，标题权重高于正文。
func (s *searchService) SearchEntries(ctx context.Context, userID uint, query string, topK int) ([]model.EntrySearchResult, error) {
	if topK <= 0 || topK > 50 {
		topK = 20
	}
	log.Infof("[SearchService] 开始条目搜索, userID: %d, query: '%s', topK: %d", userID, query, topK)

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"title^2", "content"},
					},
				},
				// 只允许命中自己的条目
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"user_id": userID},
				},
			},
		},
		"size": topK,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误: %s", string(body))
		return nil, fmt.Errorf("elasticsearch returned status %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64             `json:"_score"`
				Source model.EntryDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]model.EntrySearchResult, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		snippet := hit.Source.Content
		const maxSnippetLen = 200
		if len(snippet) > maxSnippetLen {
			snippet = snippet[:maxSnippetLen] + "…"
		}
		results = append(results, model.EntrySearchResult{
			Date:    hit.Source.Date,
			Title:   hit.Source.Title,
			Snippet: snippet,
			Mood:    hit.Source.Mood,
			Score:   hit.Score,
		})
	}

	log.Infof("[SearchService] 条目搜索完成, 命中 %d 条", len(results))
	return results, nil
}
