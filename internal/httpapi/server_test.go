package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/jobs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]catalog.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[uuid.UUID]catalog.Job{}}
}

func (f *fakeJobStore) Create(_ context.Context, kind catalog.JobKind, supplierID *uuid.UUID, fileURL string, itemsTotal int, metadata catalog.JSONMap) (catalog.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := catalog.Job{
		ID:         uuid.New(),
		Kind:       kind,
		Status:     catalog.JobPending,
		Phase:      catalog.PhasePending,
		SupplierID: supplierID,
		FileURL:    fileURL,
		ItemsTotal: itemsTotal,
		Metadata:   metadata,
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobStore) Get(_ context.Context, id uuid.UUID) (catalog.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return catalog.Job{}, jobs.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[id]; !ok {
		return false, nil
	}
	delete(f.jobs, id)
	return true, nil
}

type fakeDispatcher struct {
	mu           sync.Mutex
	analyzeCalls []AnalyzeFileRequest
	mergeCalls   []MergeRequest
}

func (f *fakeDispatcher) DispatchFileAnalysis(_ catalog.Job, req AnalyzeFileRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls = append(f.analyzeCalls, req)
}

func (f *fakeDispatcher) DispatchMerge(_ catalog.Job, req MergeRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeCalls = append(f.mergeCalls, req)
}

func newTestServer(opts ...Option) (*Server, *fakeJobStore, *fakeDispatcher) {
	store := newFakeJobStore()
	dispatcher := &fakeDispatcher{}
	s := New(store, dispatcher, opts...)
	return s, store, dispatcher
}

func TestHandleAnalyzeFile_AcceptsValidRequestAndDispatches(t *testing.T) {
	s, _, dispatcher := newTestServer(WithFileExistsCheck(func(string) bool { return true }))
	router := s.Router()

	body, _ := json.Marshal(AnalyzeFileRequest{
		FileURL:    "/shared/uploads/catalog.pdf",
		SupplierID: uuid.New(),
		FileType:   "pdf",
	})

	req := httptest.NewRequest("POST", "/analyze/file", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 202, rec.Code)
	var resp AnalyzeFileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, catalog.JobPending, resp.Status)
	assert.Len(t, dispatcher.analyzeCalls, 1)
}

func TestHandleAnalyzeFile_MissingLocalFileReturns400(t *testing.T) {
	s, _, _ := newTestServer(WithFileExistsCheck(func(string) bool { return false }))
	router := s.Router()

	body, _ := json.Marshal(AnalyzeFileRequest{
		FileURL:    "/shared/uploads/missing.pdf",
		SupplierID: uuid.New(),
		FileType:   "pdf",
	})

	req := httptest.NewRequest("POST", "/analyze/file", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHandleAnalyzeFile_InvalidFileTypeReturns422(t *testing.T) {
	s, _, _ := newTestServer()
	router := s.Router()

	body, _ := json.Marshal(map[string]any{
		"file_url":    "http://example.com/catalog.xyz",
		"supplier_id": uuid.New(),
		"file_type":   "xyz",
	})

	req := httptest.NewRequest("POST", "/analyze/file", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 422, rec.Code)
}

func TestHandleGetStatus_ReturnsJobWhenPresent(t *testing.T) {
	s, store, _ := newTestServer()
	router := s.Router()

	job, err := store.Create(context.Background(), catalog.JobFileAnalysis, nil, "", 10, nil)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/analyze/status/"+job.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp.JobID)
}

func TestHandleGetStatus_UnknownJobReturns404(t *testing.T) {
	s, _, _ := newTestServer()
	router := s.Router()

	req := httptest.NewRequest("GET", "/analyze/status/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestHandleGetStatus_MalformedIDReturns422(t *testing.T) {
	s, _, _ := newTestServer()
	router := s.Router()

	req := httptest.NewRequest("GET", "/analyze/status/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 422, rec.Code)
}

func TestHandleDeleteStatus_RemovesExistingJob(t *testing.T) {
	s, store, _ := newTestServer()
	router := s.Router()

	job, err := store.Create(context.Background(), catalog.JobFileAnalysis, nil, "", 10, nil)
	require.NoError(t, err)

	req := httptest.NewRequest("DELETE", "/analyze/status/"+job.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 204, rec.Code)

	_, err = store.Get(context.Background(), job.ID)
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestHandleMerge_DerivesItemsQueuedFromSupplierItemIDs(t *testing.T) {
	s, _, dispatcher := newTestServer()
	router := s.Router()

	body, _ := json.Marshal(MergeRequest{
		SupplierItemIDs: []uuid.UUID{uuid.New(), uuid.New()},
		Limit:           50,
	})

	req := httptest.NewRequest("POST", "/analyze/merge", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 202, rec.Code)
	var resp MergeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ItemsQueued)
	assert.Len(t, dispatcher.mergeCalls, 1)
}

func TestHandleMerge_FallsBackToLimitWhenNoItemIDsGiven(t *testing.T) {
	s, _, _ := newTestServer()
	router := s.Router()

	body, _ := json.Marshal(MergeRequest{Limit: 25})

	req := httptest.NewRequest("POST", "/analyze/merge", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 202, rec.Code)
	var resp MergeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 25, resp.ItemsQueued)
}

func TestHandleHealth_AllChecksPassingReportsHealthy(t *testing.T) {
	s, _, _ := newTestServer(WithHealthChecks(
		DependencyCheck{Name: "redis", Check: func(context.Context) error { return nil }},
		DependencyCheck{Name: "database", Check: func(context.Context) error { return nil }},
	))
	router := s.Router()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthHealthy, resp.Status)
}

func TestHandleHealth_OneFailingCheckReportsDegraded(t *testing.T) {
	s, _, _ := newTestServer(WithHealthChecks(
		DependencyCheck{Name: "redis", Check: func(context.Context) error { return nil }},
		DependencyCheck{Name: "database", Check: func(context.Context) error { return errors.New("connection refused") }},
	))
	router := s.Router()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthDegraded, resp.Status)
	assert.Equal(t, "unhealthy", resp.Checks["database"].Status)
}

func TestHandleHealth_AllChecksFailingReportsUnhealthy(t *testing.T) {
	s, _, _ := newTestServer(WithHealthChecks(
		DependencyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	))
	router := s.Router()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthUnhealthy, resp.Status)
}
