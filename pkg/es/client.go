// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"
	"nft-sage-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"interaction_id": { "type": "keyword" },
			"conversation_key": { "type": "keyword" },
			"user_id": { "type": "keyword" },
			"platform": { "type": "keyword" },
			"user_query": { "type": "text" },
			"ai_response": { "type": "text" },
			"intent_type": { "type": "keyword" },
			"intent_confidence": { "type": "float" },
			"timestamp": { "type": "date" }
		}
	}
}`

// Indexer 将交互写入 Elasticsearch 并支持全文检索。
type Indexer struct {
	client *elasticsearch.Client
	index  string
}

// NewIndexer 初始化 Elasticsearch 客户端，并确保索引存在。
func NewIndexer(esCfg config.ElasticsearchConfig) (*Indexer, error) {
	var addrs []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	cfg := elasticsearch.Config{
		Addresses: addrs,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	idx := &Indexer{client: client, index: esCfg.IndexName}
	if err := idx.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return idx, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (i *Indexer) createIndexIfNotExists() error {
	res, err := i.client.Indices.Exists([]string{i.index})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", i.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", i.index, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", i.index, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", i.index)
	return nil
}

// IndexInteraction 将单次交互索引到 Elasticsearch，文档 ID 为交互 ID，重复写入是幂等的。
func (i *Indexer) IndexInteraction(ctx context.Context, key model.ConversationKey, it model.Interaction) error {
	doc := model.NewInteractionDocument(key, it)
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: doc.InteractionID,
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index interaction: %s", res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64                   `json:"_score"`
			Source model.InteractionDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 在问题与回答中全文检索，可按会话键过滤。
func (i *Indexer) Search(ctx context.Context, query, conversationKey string, size int) ([]model.SearchHit, error) {
	if size <= 0 || size > 100 {
		size = 20
	}
	must := []map[string]any{{
		"multi_match": map[string]any{
			"query":  query,
			"fields": []string{"user_query^2", "ai_response"},
		},
	}}
	boolQuery := map[string]any{"must": must}
	if conversationKey != "" {
		boolQuery["filter"] = []map[string]any{{"term": map[string]any{"conversation_key": conversationKey}}}
	}
	body := map[string]any{
		"size":  size,
		"query": map[string]any{"bool": boolQuery},
		"sort":  []any{"_score", map[string]any{"timestamp": "desc"}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	hits := make([]model.SearchHit, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		hits = append(hits, model.SearchHit{InteractionDocument: h.Source, Score: h.Score})
	}
	return hits, nil
}
