package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsreel/internal/api"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/testsupport"
	"newsreel/internal/workflow"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	store    *queue.Store
	notifier *recordingNotifier
	handler  http.Handler
}

func newFixture(t *testing.T, token string) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	svc := api.NewJobService(store, notifier)
	srv := api.NewServer(svc, nil, token, logging.NewNop())
	return fixture{store: store, notifier: notifier, handler: srv.Handler()}
}

func (f fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestManualSubmissionQueuesJob(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodPost, "/api/jobs/manual", map[string]string{
		"title": "SpaceX launches satellite",
		"url":   "https://example.com/spacex",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp api.ManualJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Job queued successfully", resp.Message)
	require.NotZero(t, resp.JobID)

	job, err := f.store.GetByID(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, queue.StatusPending, job.Status)
	assert.Equal(t, api.DefaultSourceName, job.Source)
	assert.Equal(t, api.DefaultDescription, job.Description)
	assert.Equal(t, []notifications.Event{notifications.EventJobQueued}, f.notifier.events)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestManualSubmissionRejectsDuplicateURL(t *testing.T) {
	f := newFixture(t, "")
	body := map[string]string{"title": "Once", "url": "https://example.com/dup", "source_name": "Wire"}
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/jobs/manual", body, "").Code)

	rec := f.do(t, http.MethodPost, "/api/jobs/manual", body, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "already exists")

	jobs, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestManualSubmissionValidation(t *testing.T) {
	f := newFixture(t, "")
	tests := []struct {
		name string
		body any
	}{
		{name: "missing title", body: map[string]string{"url": "https://example.com/a"}},
		{name: "missing url", body: map[string]string{"title": "No link"}},
		{name: "relative url", body: map[string]string{"title": "Bad", "url": "/news/1"}},
		{name: "not json", body: "just text"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/jobs/manual", tc.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthRequiredWhenTokenConfigured(t *testing.T) {
	f := newFixture(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/jobs", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/jobs", nil, "wrong").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/jobs", nil, "secret").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil, "").Code)
}

func TestListAndShowJobs(t *testing.T) {
	f := newFixture(t, "")
	first := testsupport.NewJob(t, f.store, "First")
	testsupport.NewJob(t, f.store, "Second")
	testsupport.AdvanceTo(t, f.store, first, queue.StageAudio)

	rec := f.do(t, http.MethodGet, "/api/jobs?status=scripted", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list api.JobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, first.ID, list.Jobs[0].ID)
	assert.Equal(t, "audio", list.Jobs[0].NextStage)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/jobs?status=bogus", nil, "").Code)

	rec = f.do(t, http.MethodGet, "/api/jobs/"+itoa(first.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var show api.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &show))
	assert.Equal(t, "First", show.Job.Title)
	assert.Positive(t, show.Job.Artifacts.ScriptWords)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/9999", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/abc", nil, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodDelete, "/api/jobs/1", nil, "").Code)
}

func TestAPIRouteMissesReturnJSONErrors(t *testing.T) {
	f := newFixture(t, "")

	cases := []struct {
		method string
		path   string
		code   int
		msg    string
	}{
		{http.MethodDelete, "/api/jobs/1", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodGet, "/api/jobs/manual", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodPut, "/api/status", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodGet, "/api/nothing-here", http.StatusNotFound, "not found"},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed, "method not allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, nil, "")
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.msg, resp.Error)
		})
	}
}

func TestResubmitFailedJob(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	job := testsupport.NewJob(t, f.store, "Broken")

	claimed, err := f.store.ClaimNext(ctx, queue.StageScript, "worker", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	_, err = f.store.Fail(ctx, job.ID, "worker", queue.StageScript, queue.Failure{
		Kind:     services.KindConfiguration,
		Message:  "bad key",
		Terminal: true,
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/jobs/"+itoa(job.ID)+"/resubmit", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(queue.StatusPending), resp.Job.Status)
	assert.Empty(t, resp.Job.ErrorMessage)

	rec = f.do(t, http.MethodPost, "/api/jobs/"+itoa(job.ID)+"/resubmit", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/jobs/4242/resubmit", nil, "").Code)
}

func TestStatusEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, "Queued")
	svc := api.NewJobService(store, nil)

	plain := api.NewServer(svc, nil, "", logging.NewNop())
	rec := httptest.NewRecorder()
	plain.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status api.WorkflowStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.QueueStats["pending"])
	assert.Equal(t, 0, status.QueueStats["failed"])

	withWorkflow := api.NewServer(svc, func(context.Context) workflow.StatusSummary {
		return workflow.StatusSummary{Running: true, Owner: "w1", QueueStats: map[queue.Status]int{queue.StatusPending: 1}}
	}, "", logging.NewNop())
	rec = httptest.NewRecorder()
	withWorkflow.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)
	assert.Equal(t, "w1", status.Owner)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
