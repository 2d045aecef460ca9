// Package extractor 实现了从 PDF 对象到可索引分块记录的抽取流程。
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"pdf-rag-go/internal/chunker"
	"pdf-rag-go/internal/config"
	"pdf-rag-go/internal/model"
	"pdf-rag-go/pkg/embedding"
	"pdf-rag-go/pkg/log"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// ObjectStore 是抽取器对对象存储的最小依赖。
type ObjectStore interface {
	ReadObject(ctx context.Context, objectName string) ([]byte, error)
	ObjectURL(objectName string, page int) string
}

// Extractor 读取 PDF 对象，逐页提取文本，切块并向量化，产出分块记录。
type Extractor struct {
	store    ObjectStore
	embedder embedding.Client
	cfg      config.IngestConfig
}

// New 创建一个新的 Extractor 实例。
func New(store ObjectStore, embedder embedding.Client, cfg config.IngestConfig) *Extractor {
	return &Extractor{store: store, embedder: embedder, cfg: cfg}
}

// Extract 处理单个 PDF 对象，返回其全部分块记录。
//
// 单页提取失败只跳过该页，不会中断整个文档；整个 PDF 无法读取或解析
// 则返回错误。没有任何可提取文本时返回空序列，这是合法结果而非错误。
// 每个分块在此处分配一次性的 chunk_id，重新抽取会产生全新的 ID 集合。
func (e *Extractor) Extract(ctx context.Context, objectName string) ([]model.ChunkDocument, error) {
	fileName := path.Base(objectName)
	folder := topFolder(objectName)
	log.Infof("[Extractor] 开始处理: %s (folder=%s)", fileName, folder)

	content, err := e.store.ReadObject(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("读取对象 '%s' 失败: %w", objectName, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("解析 PDF '%s' 失败: %w", objectName, err)
	}

	var docs []model.ChunkDocument
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		text := extractPageText(reader, pageNum)
		if strings.TrimSpace(text) == "" {
			// 损坏页、纯图片页或空白页：静默跳过
			continue
		}

		for _, piece := range chunker.Split(text, e.cfg.ChunkSize, e.cfg.ChunkOverlap) {
			vec, err := e.embedder.CreateEmbedding(ctx, piece)
			if err != nil {
				return nil, fmt.Errorf("第 %d 页分块向量化失败: %w", pageNum, err)
			}
			docs = append(docs, model.ChunkDocument{
				ChunkID:    uuid.NewString(),
				ParentID:   fileName,
				File:       fileName,
				Folder:     folder,
				Title:      fileName,
				Page:       pageNum,
				Chunk:      piece,
				URL:        e.store.ObjectURL(objectName, pageNum),
				TextVector: vec,
			})
		}
	}

	if len(docs) == 0 {
		log.Warnf("[Extractor] %s 没有可提取的文本", objectName)
	} else {
		log.Infof("[Extractor] %s → %d 个分块", fileName, len(docs))
	}
	return docs, nil
}

// extractPageText 提取单页文本，任何失败（包括 pdf 库内部 panic）按空页处理。
func extractPageText(reader *pdf.Reader, pageNum int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("[Extractor] 第 %d 页提取时 panic, 按空页跳过: %v", pageNum, r)
			text = ""
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	fonts := make(map[string]*pdf.Font)
	content, err := page.GetPlainText(fonts)
	if err != nil {
		log.Warnf("[Extractor] 第 %d 页提取失败, 跳过: %v", pageNum, err)
		return ""
	}
	return content
}

// topFolder 取对象路径的顶级目录段作为 folder，无目录时为空串。
func topFolder(objectName string) string {
	if !strings.Contains(objectName, "/") {
		return ""
	}
	return strings.SplitN(objectName, "/", 2)[0]
}
