package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdf-rag-go/internal/composer"
	"pdf-rag-go/internal/model"
	"pdf-rag-go/internal/retriever"
	"pdf-rag-go/internal/service"
	"pdf-rag-go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSearcher struct {
	result retriever.Result
}

func (f *fixedSearcher) Search(ctx context.Context, query string, topK int) (retriever.Result, error) {
	return f.result, nil
}

type fixedComposer struct {
	answer composer.Answer
}

func (f *fixedComposer) Compose(ctx context.Context, query string, result retriever.Result) (*composer.Answer, error) {
	a := f.answer
	return &a, nil
}

type fixedStore struct{}

func (fixedStore) ListPDFs(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return []storage.ObjectInfo{{Name: "manuals/guide.pdf", Size: 10}}, nil
}

func (fixedStore) ObjectURL(objectName string, page int) string {
	return "http://minio/docs/" + objectName
}

type fixedIndex struct {
	hits []model.SearchHit
}

func (f *fixedIndex) FindChunksByFile(ctx context.Context, file string, top int) ([]model.SearchHit, error) {
	return f.hits, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	searcher := &fixedSearcher{result: retriever.Result{Hits: []model.SearchHit{{ChunkID: "c1", File: "guide.pdf", Page: 2}}}}
	cmp := &fixedComposer{answer: composer.Answer{
		Answer:     "grounded answer",
		Reference:  &model.Reference{File: "guide.pdf", Page: 2, URL: "u"},
		Confidence: 100,
	}}
	index := &fixedIndex{hits: []model.SearchHit{{Page: 1, Chunk: "hello", URL: "u1"}}}
	svc := service.NewQueryService(searcher, cmp, fixedStore{}, index, nil, "")
	h := NewQueryHandler(svc)

	r := gin.New()
	r.GET("/", h.Health)
	r.POST("/ask", h.Ask)
	r.GET("/list-cloud-pdfs", h.ListCloudPDFs)
	r.GET("/inspect/:pdfName", h.Inspect)
	return r
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true}`, w.Body.String())
}

func TestAskRoute(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	body := strings.NewReader(`{"query": "clearance?", "top_k": 3}`)
	req := httptest.NewRequest(http.MethodPost, "/ask", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "grounded answer", resp.Answer)
	assert.Equal(t, 100, resp.Confidence)
	assert.Equal(t, 1, resp.Hits)
	assert.True(t, resp.Markdown)
	require.NotNil(t, resp.Reference)
	assert.Equal(t, "guide.pdf", resp.Reference.File)
}

func TestAskRouteMissingQuery(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"top_k": 3}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCloudPDFsRoute(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/list-cloud-pdfs", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var list service.CloudPDFList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.PDFs, 1)
	assert.Equal(t, "guide.pdf", list.PDFs[0].Name)
}

func TestInspectRoute(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/inspect/guide.pdf", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var res service.InspectResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "guide.pdf", res.PDFName)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, "hello...", res.Pages[0].Preview)
}
