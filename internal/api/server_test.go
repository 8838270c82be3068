package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/lifetrack/internal/connectivity"
	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/offline"
	"github.com/mmcdole/lifetrack/internal/remote/memory"
	"github.com/mmcdole/lifetrack/internal/search"
	"github.com/mmcdole/lifetrack/internal/store"
	"github.com/mmcdole/lifetrack/internal/tracker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	src     *connectivity.Manual
	remote  *memory.Store
	manager *offline.Manager
	router  *gin.Engine
	server  *Server
}

func newTestEnv(t *testing.T, online bool, remote *memory.Store) *testEnv {
	t.Helper()
	kv, err := store.NewKVStore("")
	require.NoError(t, err)
	if remote == nil {
		remote = memory.New()
	}

	src := connectivity.NewManual(online)
	monitor := connectivity.NewMonitor(src, nil)
	storage := offline.NewStorage(kv, nil)
	engine := offline.NewEngine(storage, remote, nil)
	manager := offline.NewManager(monitor, storage, engine, "u1", nil)
	t.Cleanup(func() {
		manager.Close()
		monitor.Close()
		kv.Close()
	})

	srv := NewServer(
		manager,
		tracker.NewCommands(remote, manager, nil),
		tracker.NewQueries(manager),
		search.NewService(manager, nil),
		tracker.DefaultGoals(),
		nil,
	)
	return &testEnv{src: src, remote: remote, manager: manager, router: srv.Router(), server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Message
}

func TestServer_Status(t *testing.T) {
	env := newTestEnv(t, true, nil)

	w := env.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	st := decodeData[statusResponse](t, w)
	assert.True(t, st.Online)
	assert.False(t, st.ForceOffline)
	assert.Equal(t, "u1", st.UserID)
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, "idle", st.State)
	assert.Nil(t, st.LastSync)
}

func TestServer_OfflineCreateQueuesAndSyncReplays(t *testing.T) {
	env := newTestEnv(t, false, nil)

	w := env.do(t, http.MethodPost, "/datasets/study_sessions", map[string]any{
		"subject": "Math", "duration": 2, "date": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeData[domain.Record](t, w)
	require.NotEmpty(t, created.ID())

	w = env.do(t, http.MethodGet, "/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decodeData[[]domain.PendingOperation](t, w)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.OperationInsert, pending[0].Kind)
	assert.Equal(t, domain.DatasetStudySessions, pending[0].Collection)

	w = env.do(t, http.MethodGet, "/datasets/study_sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decodeData[recordsResponse](t, w)
	assert.True(t, records.FromCache)
	require.Len(t, records.Records, 1)
	assert.Equal(t, "Math", records.Records[0]["subject"])

	env.src.Set(true)
	w = env.do(t, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decodeData[syncResponse](t, w).Replayed)

	assert.Len(t, env.remote.Rows(domain.DatasetStudySessions), 1)
	assert.Empty(t, env.manager.PendingSync())
}

func TestServer_SyncFailureKeepsQueue(t *testing.T) {
	remote := memory.New()
	remote.FailOn = func(call memory.Call, n int) error {
		return fmt.Errorf("%w: connection refused", domain.ErrRemoteUnreachable)
	}
	env := newTestEnv(t, false, remote)

	w := env.do(t, http.MethodPost, "/datasets/habits", map[string]any{"name": "Read", "type": "good"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/sync", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeMessage(t, w), "unreachable")
	assert.Len(t, env.manager.PendingSync(), 1)

	w = env.do(t, http.MethodGet, "/status", nil)
	st := decodeData[statusResponse](t, w)
	assert.Equal(t, "failed", st.State)
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, 1, st.Pending)
}

func TestServer_Connectivity(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOnline bool
		wantMsg    string
	}{
		{name: "force offline", body: `{"force_offline":true}`, wantStatus: http.StatusOK, wantOnline: false},
		{name: "clear override", body: `{"force_offline":false}`, wantStatus: http.StatusOK, wantOnline: true},
		{name: "missing field", body: `{}`, wantStatus: http.StatusBadRequest, wantMsg: "Field 'force_offline' is required"},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest, wantMsg: "Request body is empty"},
		{name: "wrong type", body: `{"force_offline":"yes"}`, wantStatus: http.StatusBadRequest, wantMsg: "should be of type bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true, nil)

			w := env.do(t, http.MethodPost, "/connectivity", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantMsg != "" {
				assert.Contains(t, decodeMessage(t, w), tt.wantMsg)
				return
			}
			st := decodeData[statusResponse](t, w)
			assert.Equal(t, tt.wantOnline, st.Online)
			assert.Equal(t, !tt.wantOnline, st.ForceOffline)
		})
	}
}

func TestServer_OnlineUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, true, nil)

	w := env.do(t, http.MethodPost, "/datasets/exams", map[string]any{"subject": "Physics", "date": "2024-04-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeData[domain.Record](t, w).ID()

	w = env.do(t, http.MethodPatch, "/datasets/exams/"+id, map[string]any{"location": "Hall B"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Hall B", decodeData[domain.Record](t, w)["location"])

	rows := env.remote.Rows(domain.DatasetExams)
	require.Len(t, rows, 1)
	assert.Equal(t, "Hall B", rows[0]["location"])

	w = env.do(t, http.MethodDelete, "/datasets/exams/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.remote.Rows(domain.DatasetExams))
}

func TestServer_Errors(t *testing.T) {
	env := newTestEnv(t, true, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{name: "unknown dataset list", method: http.MethodGet, path: "/datasets/movies", wantStatus: http.StatusNotFound},
		{name: "unknown dataset create", method: http.MethodPost, path: "/datasets/movies", body: map[string]any{"a": 1}, wantStatus: http.StatusNotFound},
		{name: "update missing row", method: http.MethodPatch, path: "/datasets/exams/nope", body: map[string]any{"a": 1}, wantStatus: http.StatusNotFound},
		{name: "malformed body", method: http.MethodPost, path: "/datasets/exams", body: `{"subject":`, wantStatus: http.StatusBadRequest},
		{name: "toggle unknown habit", method: http.MethodPost, path: "/habits/nope/toggle", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.NotEmpty(t, decodeMessage(t, w))
		})
	}
}

func TestServer_ToggleHabit(t *testing.T) {
	env := newTestEnv(t, true, nil)

	w := env.do(t, http.MethodPost, "/datasets/habits", map[string]any{
		"name": "Read", "type": "good", "streak": 2, "last_completed": "",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData[domain.Record](t, w).ID()

	w = env.do(t, http.MethodPost, "/habits/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	habit := decodeData[domain.Record](t, w)
	assert.EqualValues(t, 3, habit["streak"])
	assert.Equal(t, time.Now().Format("2006-01-02"), habit["last_completed"])
}

func TestServer_RefreshAndSearch(t *testing.T) {
	env := newTestEnv(t, true, nil)
	ctx := context.Background()
	for _, subject := range []string{"Mathematics", "Chemistry", "Math Lab"} {
		_, err := env.remote.Insert(ctx, domain.DatasetClassSchedules, domain.Record{
			"id": subject, "user_id": "u1", "subject": subject, "day": "Monday", "time": "09:00",
		})
		require.NoError(t, err)
	}

	w := env.do(t, http.MethodGet, "/datasets/class_schedules?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decodeData[recordsResponse](t, w)
	assert.False(t, records.FromCache)
	assert.Len(t, records.Records, 3)

	w = env.do(t, http.MethodGet, "/search?dataset=class&field=subject&q=math", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	found := decodeData[searchResponse](t, w)
	assert.Equal(t, domain.DatasetClassSchedules, found.Dataset)
	require.Len(t, found.Results, 2)
	for _, r := range found.Results {
		assert.Contains(t, r.Record["subject"], "Math")
	}

	w = env.do(t, http.MethodGet, "/search?dataset=zzzz&q=math", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_PreloadAndStats(t *testing.T) {
	env := newTestEnv(t, true, nil)
	env.server.now = func() time.Time { return time.Date(2024, 3, 13, 12, 0, 0, 0, time.Local) }
	router := env.server.Router()
	ctx := context.Background()

	for i, date := range []string{"2024-03-11", "2024-03-12", "2024-03-13"} {
		_, err := env.remote.Insert(ctx, domain.DatasetStudySessions, domain.Record{
			"id": fmt.Sprintf("s%d", i), "user_id": "u1", "subject": "Math", "duration": 6.0, "date": date,
		})
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, "/preload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	results := decodeData[[]refreshResponse](t, w)
	assert.Len(t, results, len(domain.DatasetNames()))
	for _, r := range results {
		assert.False(t, r.FromCache, r.Dataset)
	}

	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeData[tracker.Stats](t, w)
	assert.Equal(t, 6.0, stats.Study.HoursToday)
	assert.Equal(t, 100, stats.Study.GoalPercent)
	assert.Equal(t, 3, stats.Study.Streak)

	w = env.do(t, http.MethodGet, "/status", nil)
	assert.NotNil(t, decodeData[statusResponse](t, w).PreloadedAt)
}

func TestFormatBindingError(t *testing.T) {
	assert.Equal(t, "", FormatBindingError(nil))
	assert.Equal(t, "boom", FormatBindingError(fmt.Errorf("boom")))
}
