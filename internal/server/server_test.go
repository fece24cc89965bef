package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/examvm/internal/gateway"
	"github.com/me/examvm/internal/store"
	"github.com/me/examvm/pkg/model"
)

var now = time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC)

const perVM = 6 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", testLogger())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

type fakeStats struct{ stats gateway.Stats }

func (f fakeStats) Stats() gateway.Stats { return f.stats }

type failingStore struct{}

func (failingStore) GetExam(context.Context, int64) (*model.Exam, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) ListExams(context.Context) ([]*model.Exam, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) ListVMs(context.Context, model.VMState) ([]*model.VM, error) {
	return nil, errors.New("database is locked")
}

func testServer(t *testing.T, st Store, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(st, perVM, testLogger(), opts...)
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Error     *model.APIError `json:"error"`
}

func doGet(t *testing.T, srv *Server, path string, wantStatus int) envelope {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, wantStatus, w.Code, "GET %s body=%s", path, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "GET %s: invalid JSON", path)
	assert.Equal(t, w.Header().Get("X-Request-ID"), env.RequestID)
	return env
}

func seedExam(t *testing.T, st *store.SQLiteStore, name string, start time.Time, students int, vmIDs ...string) *model.Exam {
	t.Helper()
	ctx := context.Background()
	exam := &model.Exam{Name: name, Start: start, End: start.Add(time.Hour), Students: students}
	require.NoError(t, st.CreateExam(ctx, exam))
	if len(vmIDs) > 0 {
		vms := make([]*model.VM, 0, len(vmIDs))
		for _, id := range vmIDs {
			vms = append(vms, &model.VM{ID: id, ExamID: exam.ID, CreatedAt: now})
		}
		require.NoError(t, st.RecordCreatedVMs(ctx, vms))
	}
	return exam
}

func TestDiscovery(t *testing.T) {
	srv := testServer(t, testStore(t))
	env := doGet(t, srv, "/api/v1/", http.StatusOK)
	assert.Equal(t, "ok", env.Status)
	assert.NotEmpty(t, env.RequestID)

	var data discoveryResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "examvm API", data.Name)
	assert.Len(t, data.Endpoints, 5)
}

func TestHealth(t *testing.T) {
	srv := testServer(t, testStore(t),
		WithGateway(fakeStats{gateway.Stats{Pending: 4, Running: 9}}),
		WithRateLimit(3),
	)
	env := doGet(t, srv, "/api/v1/health", http.StatusOK)

	var data healthResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data.Status)
	assert.Equal(t, 3, data.RateLimit)
	require.NotNil(t, data.Pending)
	require.NotNil(t, data.Running)
	assert.Equal(t, 4, *data.Pending)
	assert.Equal(t, 9, *data.Running)
}

func TestHealth_WithoutGateway(t *testing.T) {
	srv := testServer(t, testStore(t))
	env := doGet(t, srv, "/api/v1/health", http.StatusOK)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotContains(t, data, "pending")
	assert.NotContains(t, data, "running")
}

func TestRequestID_Propagated(t *testing.T) {
	srv := testServer(t, testStore(t))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req_fromclient")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, "req_fromclient", w.Header().Get("X-Request-ID"))
}

func TestListExams(t *testing.T) {
	st := testStore(t)
	seedExam(t, st, "Mathematics 101", now.Add(time.Hour), 3, "vm-1")
	seedExam(t, st, "Physics 101", now.Add(2*time.Hour), 2)

	env := doGet(t, testServer(t, st), "/api/v1/exams", http.StatusOK)

	var data []model.ExamView
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data, 2)
	byName := map[string]model.ExamView{data[0].Name: data[0], data[1].Name: data[1]}
	assert.Equal(t, 1, byName["Mathematics 101"].VMsCreated)
	assert.Equal(t, 2, byName["Mathematics 101"].Remaining)
	assert.Equal(t, 2, byName["Physics 101"].Remaining)
}

func TestListExams_Empty(t *testing.T) {
	env := doGet(t, testServer(t, testStore(t)), "/api/v1/exams", http.StatusOK)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestGetExam(t *testing.T) {
	st := testStore(t)
	exam := seedExam(t, st, "Mathematics 101", now.Add(time.Hour), 3, "vm-1")
	srv := testServer(t, st)

	env := doGet(t, srv, "/api/v1/exams/"+strconv.FormatInt(exam.ID, 10), http.StatusOK)
	var data model.ExamView
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, exam.ID, data.ID)
	assert.Equal(t, 2, data.Remaining)

	env = doGet(t, srv, "/api/v1/exams/999", http.StatusNotFound)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeNotFound, env.Error.Code)
	assert.Equal(t, "exam '999' not found", env.Error.Message)

	env = doGet(t, srv, "/api/v1/exams/abc", http.StatusBadRequest)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeValidation, env.Error.Code)
}

func TestSchedule(t *testing.T) {
	st := testStore(t)
	// 10 VMs at 6s each: creation starts 60s before the exam.
	seedExam(t, st, "Later", now.Add(time.Hour), 10)
	// 30 VMs need 180s but the exam starts in 60s: creation is 120s late.
	seedExam(t, st, "Soon", now.Add(time.Minute), 30)
	// Fully provisioned: excluded.
	seedExam(t, st, "Done", now.Add(time.Minute), 1, "vm-1")

	env := doGet(t, testServer(t, st), "/api/v1/schedule", http.StatusOK)

	var data []model.ScheduleView
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data, 2)

	assert.Equal(t, "Soon", data[0].ExamName)
	assert.Equal(t, 30, data[0].VMs)
	assert.True(t, data[0].CreationStart.Equal(now.Add(time.Minute-180*time.Second)))
	assert.True(t, data[0].Due)
	assert.True(t, data[0].Delayed)

	assert.Equal(t, "Later", data[1].ExamName)
	assert.True(t, data[1].CreationStart.Equal(now.Add(time.Hour-60*time.Second)))
	assert.False(t, data[1].Due)
	assert.False(t, data[1].Delayed)
}

func TestListVMs(t *testing.T) {
	st := testStore(t)
	seedExam(t, st, "Mathematics 101", now.Add(time.Hour), 3, "vm-1", "vm-2")
	require.NoError(t, st.MarkVMsRunning(context.Background(), []string{"vm-2"}))
	srv := testServer(t, st)

	env := doGet(t, srv, "/api/v1/vms", http.StatusOK)
	var all []model.VM
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 2)

	env = doGet(t, srv, "/api/v1/vms?state=running", http.StatusOK)
	var running []model.VM
	require.NoError(t, json.Unmarshal(env.Data, &running))
	require.Len(t, running, 1)
	assert.Equal(t, "vm-2", running[0].ID)
	assert.Equal(t, model.VMStateRunning, running[0].State)

	env = doGet(t, srv, "/api/v1/vms?state=ENDED", http.StatusOK)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestListVMs_InvalidState(t *testing.T) {
	env := doGet(t, testServer(t, testStore(t)), "/api/v1/vms?state=PAUSED", http.StatusBadRequest)
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeValidation, env.Error.Code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "state", env.Error.Details[0].Field)
}

func TestStoreFailure(t *testing.T) {
	srv := testServer(t, failingStore{})
	for _, path := range []string{"/api/v1/exams", "/api/v1/exams/1", "/api/v1/schedule", "/api/v1/vms"} {
		env := doGet(t, srv, path, http.StatusInternalServerError)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, model.ErrCodeInternal, env.Error.Code, path)
		assert.NotContains(t, env.Error.Message, "locked", path)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := testServer(t, testStore(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
