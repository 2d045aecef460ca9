// Package search 提供了与 Elasticsearch 检索索引交互的客户端功能。
package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pdf-rag-go/internal/config"
	"pdf-rag-go/internal/model"
	"pdf-rag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Fault 携带检索服务返回的非成功响应的原始状态与响应体。
// 它是一个带类型的错误值而非 Go error：问答链路收到 Fault 时降级为
// 可读的回答，而不是让请求整体失败。
type Fault struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Client 封装了 Elasticsearch 客户端与索引名。
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New 初始化 Elasticsearch 客户端，索引不存在时按固定映射创建。
// dims 为向量字段的维度，与 embedding 服务输出保持一致。
func New(cfg config.SearchConfig, dims int) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}
	c := &Client{es: es, index: cfg.IndexName}
	if err := c.createIndexIfNotExists(dims); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它。
func (c *Client) createIndexIfNotExists(dims int) error {
	res, err := c.es.Indices.Exists([]string{c.index})
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// chunk_id 同时作为文档 _id，保证 upsert/delete 在记录级幂等
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id":  { "type": "keyword" },
				"parent_id": { "type": "keyword" },
				"file":      { "type": "keyword" },
				"folder":    { "type": "keyword" },
				"title":     { "type": "keyword" },
				"page":      { "type": "integer" },
				"chunk":     { "type": "text" },
				"url":       { "type": "keyword" },
				"text_vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dims)

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", c.index, err)
	}
	if res.IsError() {
		return fmt.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.index, res.String())
	}

	log.Infof("索引 '%s' 创建成功", c.index)
	return nil
}

// BulkUpsert 以一次 bulk 请求写入一批分块记录（_id = chunk_id）。
func (c *Client) BulkUpsert(ctx context.Context, docs []model.ChunkDocument) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, doc := range docs {
		meta := map[string]map[string]string{"index": {"_index": c.index, "_id": doc.ChunkID}}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return err
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return err
		}
	}
	return c.bulk(ctx, &buf)
}

// BulkDelete 以一次 bulk 请求删除给定的 chunk ID 集合。
func (c *Client) BulkDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, id := range ids {
		meta := map[string]map[string]string{"delete": {"_index": c.index, "_id": id}}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return err
		}
	}
	return c.bulk(ctx, &buf)
}

func (c *Client) bulk(ctx context.Context, body io.Reader) error {
	req := esapi.BulkRequest{
		Body: body,
		// 立即可见，清理循环与后续查询依赖它确定性收敛
		Refresh: "true",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bulk 请求失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk 请求返回错误: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int              `json:"status"`
			Error  *json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for op, detail := range item {
				// 删除不存在的文档返回 404，属于幂等删除的正常情况
				if op == "delete" && detail.Status == http.StatusNotFound {
					continue
				}
				if detail.Error != nil {
					return fmt.Errorf("bulk 操作 %s 失败 (status %d): %s", op, detail.Status, string(*detail.Error))
				}
			}
		}
	}
	return nil
}

// HybridQuery 执行一次混合检索：关键词 match + kNN 向量召回 + 关键词重排。
// 服务端返回非成功响应时，以 *Fault 的形式返回原始状态与响应体。
func (c *Client) HybridQuery(ctx context.Context, query string, vector []float32, topK int) ([]model.SearchHit, *Fault, error) {
	esQuery := map[string]interface{}{
		"size": topK,
		"knn": map[string]interface{}{
			"field":          "text_vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
		},
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"chunk": query,
			},
		},
		"rescore": map[string]interface{}{
			"window_size": topK * 10,
			"query": map[string]interface{}{
				"rescore_query": map[string]interface{}{
					"match": map[string]interface{}{
						"chunk": map[string]interface{}{
							"query":    query,
							"operator": "and",
						},
					},
				},
				"query_weight":         0.5,
				"rescore_query_weight": 1.0,
			},
		},
		"_source": map[string]interface{}{
			"excludes": []string{"text_vector"},
		},
	}
	return c.search(ctx, esQuery)
}

// FindInvalidChunkIDs 查找 file 字段缺失或为空的记录，返回其 chunk ID（单页）。
func (c *Client) FindInvalidChunkIDs(ctx context.Context, top int) ([]string, error) {
	esQuery := map[string]interface{}{
		"size": top,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"bool": map[string]interface{}{
						"must_not": map[string]interface{}{
							"exists": map[string]interface{}{"field": "file"},
						},
					}},
					{"term": map[string]interface{}{"file": ""}},
				},
				"minimum_should_match": 1,
			},
		},
		"_source": []string{"chunk_id", "file", "page", "url"},
	}
	hits, fault, err := c.searchRaw(ctx, esQuery)
	if err != nil {
		return nil, err
	}
	if fault != nil {
		return nil, fmt.Errorf("查询无效记录失败 (status %d): %s", fault.Status, fault.Body)
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// FindChunksByFile 按文件名过滤记录，用于 inspect 预览。
func (c *Client) FindChunksByFile(ctx context.Context, file string, top int) ([]model.SearchHit, error) {
	esQuery := map[string]interface{}{
		"size": top,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"file": file},
		},
		"sort":    []map[string]interface{}{{"page": map[string]interface{}{"order": "asc"}}},
		"_source": []string{"chunk", "file", "folder", "page", "url"},
	}
	hits, fault, err := c.search(ctx, esQuery)
	if err != nil {
		return nil, err
	}
	if fault != nil {
		return nil, fmt.Errorf("按文件名查询失败 (status %d): %s", fault.Status, fault.Body)
	}
	return hits, nil
}

type rawHit struct {
	ID     string              `json:"_id"`
	Score  float64             `json:"_score"`
	Source model.ChunkDocument `json:"_source"`
}

// search 执行查询并把命中映射为 SearchHit。
func (c *Client) search(ctx context.Context, esQuery map[string]interface{}) ([]model.SearchHit, *Fault, error) {
	raw, fault, err := c.searchRaw(ctx, esQuery)
	if err != nil || fault != nil {
		return nil, fault, err
	}
	hits := make([]model.SearchHit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, model.SearchHit{
			ChunkID: h.ID,
			File:    h.Source.File,
			Folder:  h.Source.Folder,
			Page:    h.Source.Page,
			Chunk:   h.Source.Chunk,
			URL:     h.Source.URL,
			Score:   h.Score,
		})
	}
	return hits, nil, nil
}

func (c *Client) searchRaw(ctx context.Context, esQuery map[string]interface{}) ([]rawHit, *Fault, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[Search] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, &Fault{Status: res.StatusCode, Body: string(bodyBytes)}, nil
	}

	var esResponse struct {
		Hits struct {
			Hits []rawHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, nil, fmt.Errorf("failed to decode es response: %w", err)
	}
	return esResponse.Hits.Hits, nil, nil
}

