// Package model 定义了索引文档与接口响应的数据结构。
package model

// ChunkDocument 代表检索索引中的一条分块记录，是索引与检索的原子单位。
// ChunkID 在抽取时生成一次，作为索引的主键；重新 ingest 会产生一组全新的 ID。
type ChunkDocument struct {
	ChunkID    string    `json:"chunk_id"`
	ParentID   string    `json:"parent_id"`
	File       string    `json:"file"`
	Folder     string    `json:"folder"`
	Title      string    `json:"title"`
	Page       int       `json:"page"`
	Chunk      string    `json:"chunk"`
	URL        string    `json:"url"`
	TextVector []float32 `json:"text_vector"`
}

// SearchHit 代表一次混合检索返回的单条命中，按相关性得分降序排列。
type SearchHit struct {
	ChunkID string  `json:"chunk_id"`
	File    string  `json:"file"`
	Folder  string  `json:"folder"`
	Page    int     `json:"page"`
	Chunk   string  `json:"chunk"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

// Reference 指向答案的主要出处，仅取第一条命中。
type Reference struct {
	File   string `json:"file"`
	Folder string `json:"folder"`
	Page   int    `json:"page"`
	URL    string `json:"url"`
}

// AskResponse 是问答接口的响应体。无论下游是否出错都会返回该结构。
type AskResponse struct {
	Answer     string     `json:"answer"`
	Reference  *Reference `json:"reference"`
	Confidence int        `json:"confidence"`
	Hits       int        `json:"hits"`
	Markdown   bool       `json:"markdown"`
}

// CloudPDF 描述对象存储中的一个 PDF 文件。
type CloudPDF struct {
	Name     string `json:"name"`
	FullPath string `json:"full_path"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// PagePreview 是 inspect 接口返回的单个分块预览。
type PagePreview struct {
	Page    int    `json:"page"`
	Preview string `json:"preview"`
	URL     string `json:"url"`
}
