package service

import (
	"context"
	"errors"
	"testing"

	"pdf-rag-go/internal/model"
	"pdf-rag-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProducer struct {
	produced []tasks.DocumentIngestTask
	err      error
}

func (s *stubProducer) ProduceIngestTask(ctx context.Context, task tasks.DocumentIngestTask) error {
	if s.err != nil {
		return s.err
	}
	s.produced = append(s.produced, task)
	return nil
}

type stubExtractor struct {
	docs []model.ChunkDocument
	err  error
}

func (s *stubExtractor) Extract(ctx context.Context, objectName string) ([]model.ChunkDocument, error) {
	return s.docs, s.err
}

type stubWriter struct {
	upserts int
	err     error
}

func (s *stubWriter) Upsert(ctx context.Context, docs []model.ChunkDocument) error {
	if s.err != nil {
		return s.err
	}
	s.upserts++
	return nil
}

type memIngestRepo struct {
	records []model.IngestRecord
	runs    []model.ReconcileRun
}

func (m *memIngestRepo) CreateRun(run *model.ReconcileRun) error {
	run.ID = uint(len(m.runs) + 1)
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memIngestRepo) FinishRun(run *model.ReconcileRun) error {
	return nil
}

func (m *memIngestRepo) RecordDocument(record *model.IngestRecord) error {
	m.records = append(m.records, *record)
	return nil
}

func (m *memIngestRepo) ListRecentRecords(limit int) ([]model.IngestRecord, error) {
	return m.records, nil
}

func (m *memIngestRepo) ListRecentRuns(limit int) ([]model.ReconcileRun, error) {
	return m.runs, nil
}

func TestEnqueueValidation(t *testing.T) {
	producer := &stubProducer{}
	svc := NewIngestService(producer, &stubExtractor{}, &stubWriter{}, nil)

	assert.Error(t, svc.Enqueue(context.Background(), "", "tester"))
	assert.Error(t, svc.Enqueue(context.Background(), "   ", "tester"))
	assert.Error(t, svc.Enqueue(context.Background(), "manuals/guide.txt", "tester"))
	assert.Empty(t, producer.produced)

	require.NoError(t, svc.Enqueue(context.Background(), "manuals/Guide.PDF", "tester"))
	require.Len(t, producer.produced, 1)
	assert.Equal(t, "manuals/Guide.PDF", producer.produced[0].ObjectName)
	assert.Equal(t, "tester", producer.produced[0].RequestedBy)
}

func TestEnqueueProducerError(t *testing.T) {
	producer := &stubProducer{err: errors.New("broker unreachable")}
	svc := NewIngestService(producer, &stubExtractor{}, &stubWriter{}, nil)

	err := svc.Enqueue(context.Background(), "guide.pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
}

func TestProcessSuccess(t *testing.T) {
	docs := []model.ChunkDocument{{ChunkID: "c1"}, {ChunkID: "c2"}, {ChunkID: "c3"}}
	repo := &memIngestRepo{}
	writer := &stubWriter{}
	svc := NewIngestService(&stubProducer{}, &stubExtractor{docs: docs}, writer, repo)

	err := svc.Process(context.Background(), tasks.DocumentIngestTask{ObjectName: "manuals/guide.pdf"})
	require.NoError(t, err)

	assert.Equal(t, 1, writer.upserts)
	require.Len(t, repo.records, 1)
	rec := repo.records[0]
	assert.Equal(t, "manuals/guide.pdf", rec.ObjectName)
	assert.Equal(t, "guide.pdf", rec.FileName)
	assert.Equal(t, "manuals", rec.Folder)
	assert.Equal(t, 3, rec.ChunkCount)
	assert.Equal(t, model.IngestStatusSucceeded, rec.Status)
}

func TestProcessExtractFailure(t *testing.T) {
	repo := &memIngestRepo{}
	writer := &stubWriter{}
	svc := NewIngestService(&stubProducer{}, &stubExtractor{err: errors.New("corrupt pdf")}, writer, repo)

	err := svc.Process(context.Background(), tasks.DocumentIngestTask{ObjectName: "broken.pdf"})
	require.Error(t, err, "失败必须上抛，交给消费者重试")

	assert.Equal(t, 0, writer.upserts)
	require.Len(t, repo.records, 1)
	assert.Equal(t, model.IngestStatusFailed, repo.records[0].Status)
	assert.Contains(t, repo.records[0].Error, "corrupt pdf")
	assert.Equal(t, "", repo.records[0].Folder)
}

func TestProcessEmptyDocumentSkipped(t *testing.T) {
	repo := &memIngestRepo{}
	writer := &stubWriter{}
	svc := NewIngestService(&stubProducer{}, &stubExtractor{}, writer, repo)

	err := svc.Process(context.Background(), tasks.DocumentIngestTask{ObjectName: "scan.pdf"})
	require.NoError(t, err, "空文档不算失败，否则会被无限重投")

	assert.Equal(t, 0, writer.upserts)
	require.Len(t, repo.records, 1)
	assert.Equal(t, model.IngestStatusSkipped, repo.records[0].Status)
}

func TestProcessUpsertFailure(t *testing.T) {
	repo := &memIngestRepo{}
	writer := &stubWriter{err: errors.New("bulk rejected")}
	svc := NewIngestService(&stubProducer{}, &stubExtractor{docs: []model.ChunkDocument{{ChunkID: "c1"}}}, writer, repo)

	err := svc.Process(context.Background(), tasks.DocumentIngestTask{ObjectName: "guide.pdf"})
	require.Error(t, err)
	require.Len(t, repo.records, 1)
	assert.Equal(t, model.IngestStatusFailed, repo.records[0].Status)
}
