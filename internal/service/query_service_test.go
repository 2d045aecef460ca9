package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"pdf-rag-go/internal/composer"
	"pdf-rag-go/internal/model"
	"pdf-rag-go/internal/retriever"
	"pdf-rag-go/pkg/search"
	"pdf-rag-go/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	result   retriever.Result
	err      error
	lastTopK int
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int) (retriever.Result, error) {
	s.lastTopK = topK
	return s.result, s.err
}

type stubComposer struct {
	answer *composer.Answer
	err    error
	calls  int
}

func (s *stubComposer) Compose(ctx context.Context, query string, result retriever.Result) (*composer.Answer, error) {
	s.calls++
	return s.answer, s.err
}

type stubStore struct {
	objects []storage.ObjectInfo
	err     error
}

func (s *stubStore) ListPDFs(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return s.objects, s.err
}

func (s *stubStore) ObjectURL(objectName string, page int) string {
	if page <= 0 {
		return "http://minio/docs/" + objectName
	}
	return "http://minio/docs/" + objectName + "#page=1"
}

type stubIndex struct {
	hits []model.SearchHit
	err  error
}

func (s *stubIndex) FindChunksByFile(ctx context.Context, file string, top int) ([]model.SearchHit, error) {
	return s.hits, s.err
}

type memHistory struct {
	mu      sync.Mutex
	records []model.AskRecord
}

func (m *memHistory) Append(ctx context.Context, record model.AskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]model.AskRecord{record}, m.records...)
	return nil
}

func (m *memHistory) Recent(ctx context.Context, limit int) ([]model.AskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[:limit], nil
}

func TestAskSuccess(t *testing.T) {
	hits := []model.SearchHit{{ChunkID: "c1", File: "guide.pdf", Page: 3, Score: 2.0, URL: "u"}}
	searcher := &stubSearcher{result: retriever.Result{Hits: hits}}
	cmp := &stubComposer{answer: &composer.Answer{
		Answer:     "the clearance is 200mm",
		Reference:  &model.Reference{File: "guide.pdf", Page: 3, URL: "u"},
		Confidence: 100,
	}}
	history := &memHistory{}
	svc := NewQueryService(searcher, cmp, &stubStore{}, &stubIndex{}, history, "")

	resp := svc.Ask(context.Background(), "clearance?", 0)

	assert.Equal(t, defaultTopK, searcher.lastTopK, "topK 未指定时使用默认值")
	assert.Equal(t, "the clearance is 200mm", resp.Answer)
	assert.Equal(t, 100, resp.Confidence)
	assert.Equal(t, 1, resp.Hits)
	assert.True(t, resp.Markdown)
	require.NotNil(t, resp.Reference)
	assert.Equal(t, "guide.pdf", resp.Reference.File)

	records, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "clearance?", records[0].Question)
	assert.Equal(t, 100, records[0].Confidence)
}

func TestAskSearchErrorDegrades(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("embedding service unreachable")}
	cmp := &stubComposer{}
	svc := NewQueryService(searcher, cmp, &stubStore{}, &stubIndex{}, nil, "")

	resp := svc.Ask(context.Background(), "q", 5)

	assert.Equal(t, 0, cmp.calls, "检索失败时不应触发回答生成")
	assert.Contains(t, resp.Answer, "Search Error")
	assert.Contains(t, resp.Answer, "embedding service unreachable")
	assert.Nil(t, resp.Reference)
	assert.Equal(t, 0, resp.Confidence)
	assert.True(t, resp.Markdown)
}

func TestAskSearchFaultPassedToComposer(t *testing.T) {
	searcher := &stubSearcher{result: retriever.Result{Fault: &search.Fault{Status: 503, Body: "down"}}}
	cmp := &stubComposer{answer: &composer.Answer{Answer: "Search Error: down"}}
	svc := NewQueryService(searcher, cmp, &stubStore{}, &stubIndex{}, nil, "")

	resp := svc.Ask(context.Background(), "q", 5)

	assert.Equal(t, 1, cmp.calls)
	assert.Equal(t, "Search Error: down", resp.Answer)
	assert.Equal(t, 0, resp.Hits)
}

func TestAskComposeErrorDegrades(t *testing.T) {
	searcher := &stubSearcher{result: retriever.Result{Hits: []model.SearchHit{{ChunkID: "c1"}}}}
	cmp := &stubComposer{err: errors.New("completion timeout")}
	history := &memHistory{}
	svc := NewQueryService(searcher, cmp, &stubStore{}, &stubIndex{}, history, "")

	resp := svc.Ask(context.Background(), "q", 5)

	assert.Contains(t, resp.Answer, "completion timeout")
	assert.Equal(t, 1, resp.Hits)
	assert.Empty(t, history.records, "降级回答不写历史")
}

func TestListCloudPDFs(t *testing.T) {
	store := &stubStore{objects: []storage.ObjectInfo{
		{Name: "manuals/guide.pdf", Size: 1024},
		{Name: "spec.pdf", Size: 2048},
	}}
	svc := NewQueryService(&stubSearcher{}, &stubComposer{}, store, &stubIndex{}, nil, "")

	list := svc.ListCloudPDFs(context.Background())

	assert.Empty(t, list.Error)
	assert.Equal(t, 2, list.Count)
	require.Len(t, list.PDFs, 2)
	assert.Equal(t, "guide.pdf", list.PDFs[0].Name)
	assert.Equal(t, "manuals/guide.pdf", list.PDFs[0].FullPath)
	assert.Equal(t, int64(1024), list.PDFs[0].Size)
	assert.Equal(t, "http://minio/docs/manuals/guide.pdf", list.PDFs[0].URL)
	assert.Equal(t, "spec.pdf", list.PDFs[1].Name)
}

func TestListCloudPDFsStorageError(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	svc := NewQueryService(&stubSearcher{}, &stubComposer{}, store, &stubIndex{}, nil, "")

	list := svc.ListCloudPDFs(context.Background())

	assert.Equal(t, "connection refused", list.Error)
	assert.NotNil(t, list.PDFs)
	assert.Empty(t, list.PDFs)
	assert.Equal(t, 0, list.Count)
}

func TestInspect(t *testing.T) {
	long := strings.Repeat("甲", 300)
	index := &stubIndex{hits: []model.SearchHit{
		{Page: 1, Chunk: "short text", URL: "u1"},
		{Page: 2, Chunk: long, URL: "u2"},
	}}
	svc := NewQueryService(&stubSearcher{}, &stubComposer{}, &stubStore{}, index, nil, "")

	res := svc.Inspect(context.Background(), "guide.pdf")

	assert.Equal(t, "guide.pdf", res.PDFName)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, "short text...", res.Pages[0].Preview, "预览总是以省略号结尾")
	assert.Equal(t, strings.Repeat("甲", 200)+"...", res.Pages[1].Preview)
	assert.Equal(t, "u2", res.Pages[1].URL)
}

func TestInspectIndexError(t *testing.T) {
	index := &stubIndex{err: errors.New("index unavailable")}
	svc := NewQueryService(&stubSearcher{}, &stubComposer{}, &stubStore{}, index, nil, "")

	res := svc.Inspect(context.Background(), "guide.pdf")

	assert.Equal(t, "index unavailable", res.Error)
	assert.Empty(t, res.Pages)
	assert.Equal(t, 0, res.TotalPages)
}
