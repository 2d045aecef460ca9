package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"pdf-rag-go/internal/composer"
	"pdf-rag-go/internal/model"
	"pdf-rag-go/internal/repository"
	"pdf-rag-go/internal/retriever"
	"pdf-rag-go/pkg/log"
	"pdf-rag-go/pkg/storage"
)

const (
	defaultTopK       = 5
	inspectChunkLimit = 20
	previewRuneLimit  = 200
)

// Searcher 执行混合检索，返回命中或检索故障。
type Searcher interface {
	Search(ctx context.Context, query string, topK int) (retriever.Result, error)
}

// AnswerComposer 基于检索结果生成最终回答。
type AnswerComposer interface {
	Compose(ctx context.Context, query string, result retriever.Result) (*composer.Answer, error)
}

// PDFStore 提供对象存储中 PDF 的列举与访问地址。
type PDFStore interface {
	ListPDFs(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	ObjectURL(objectName string, page int) string
}

// ChunkIndex 按文件名查询已索引的分块。
type ChunkIndex interface {
	FindChunksByFile(ctx context.Context, file string, top int) ([]model.SearchHit, error)
}

// CloudPDFList 是云端 PDF 列表接口的响应体。出错时 Error 非空且列表为空。
type CloudPDFList struct {
	Error string           `json:"error,omitempty"`
	PDFs  []model.CloudPDF `json:"pdfs"`
	Count int              `json:"count"`
}

// InspectResult 是文档分块预览接口的响应体。
type InspectResult struct {
	PDFName    string              `json:"pdf_name"`
	Error      string              `json:"error,omitempty"`
	Pages      []model.PagePreview `json:"pages"`
	TotalPages int                 `json:"total_pages"`
}

// QueryService 负责问答与文档查询两条只读链路。
// 所有降级路径都返回可用响应而不是 HTTP 错误，调用方总能拿到结构化结果。
type QueryService struct {
	searcher Searcher
	composer AnswerComposer
	store    PDFStore
	index    ChunkIndex
	history  repository.HistoryRepository
	prefix   string
}

func NewQueryService(searcher Searcher, cmp AnswerComposer, store PDFStore, index ChunkIndex, history repository.HistoryRepository, prefix string) *QueryService {
	return &QueryService{
		searcher: searcher,
		composer: cmp,
		store:    store,
		index:    index,
		history:  history,
		prefix:   prefix,
	}
}

// Ask 执行一次完整的问答：检索、生成回答、落历史记录。
// 检索或生成失败时降级为带错误说明的回答，置信度为 0。
func (s *QueryService) Ask(ctx context.Context, query string, topK int) *model.AskResponse {
	if topK <= 0 {
		topK = defaultTopK
	}

	result, err := s.searcher.Search(ctx, query, topK)
	if err != nil {
		log.Errorf("检索失败: %v", err)
		return &model.AskResponse{
			Answer:   fmt.Sprintf("Search Error: %s", err.Error()),
			Markdown: true,
		}
	}

	answer, err := s.composer.Compose(ctx, query, result)
	if err != nil {
		log.Errorf("生成回答失败: %v", err)
		return &model.AskResponse{
			Answer:   fmt.Sprintf("Error: %s", err.Error()),
			Hits:     len(result.Hits),
			Markdown: true,
		}
	}

	resp := &model.AskResponse{
		Answer:     answer.Answer,
		Reference:  answer.Reference,
		Confidence: answer.Confidence,
		Hits:       len(result.Hits),
		Markdown:   true,
	}
	s.appendHistory(query, resp)
	return resp
}

// appendHistory 尽力而为地写入问答历史，失败只记日志。
// 使用独立 context，避免请求取消后丢记录。
func (s *QueryService) appendHistory(query string, resp *model.AskResponse) {
	if s.history == nil {
		return
	}
	record := model.AskRecord{
		Question:   query,
		Answer:     resp.Answer,
		Confidence: resp.Confidence,
		CreatedAt:  time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.history.Append(ctx, record); err != nil {
		log.Warnf("写入问答历史失败: %v", err)
	}
}

// History 返回最近的问答记录。
func (s *QueryService) History(ctx context.Context, limit int) ([]model.AskRecord, error) {
	if s.history == nil {
		return []model.AskRecord{}, nil
	}
	return s.history.Recent(ctx, limit)
}

// ListCloudPDFs 列举对象存储中的全部 PDF。存储不可用时返回空列表和错误说明。
func (s *QueryService) ListCloudPDFs(ctx context.Context) *CloudPDFList {
	objects, err := s.store.ListPDFs(ctx, s.prefix)
	if err != nil {
		log.Errorf("列举云端 PDF 失败: %v", err)
		return &CloudPDFList{Error: err.Error(), PDFs: []model.CloudPDF{}}
	}

	pdfs := make([]model.CloudPDF, 0, len(objects))
	for _, obj := range objects {
		pdfs = append(pdfs, model.CloudPDF{
			Name:     path.Base(obj.Name),
			FullPath: obj.Name,
			Size:     obj.Size,
			URL:      s.store.ObjectURL(obj.Name, 0),
		})
	}
	return &CloudPDFList{PDFs: pdfs, Count: len(pdfs)}
}

// Inspect 返回某个 PDF 已索引分块的页码与内容预览，按页码升序。
func (s *QueryService) Inspect(ctx context.Context, pdfName string) *InspectResult {
	hits, err := s.index.FindChunksByFile(ctx, pdfName, inspectChunkLimit)
	if err != nil {
		log.Errorf("查询文档分块失败: file=%s err=%v", pdfName, err)
		return &InspectResult{PDFName: pdfName, Error: err.Error(), Pages: []model.PagePreview{}}
	}

	pages := make([]model.PagePreview, 0, len(hits))
	for _, h := range hits {
		pages = append(pages, model.PagePreview{
			Page:    h.Page,
			Preview: preview(h.Chunk),
			URL:     h.URL,
		})
	}
	return &InspectResult{PDFName: pdfName, Pages: pages, TotalPages: len(pages)}
}

func preview(chunk string) string {
	runes := []rune(chunk)
	if len(runes) > previewRuneLimit {
		runes = runes[:previewRuneLimit]
	}
	return string(runes) + "..."
}

