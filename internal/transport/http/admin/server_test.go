package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tickwatch/internal/store/checklog"
	"tickwatch/internal/watcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubController struct {
	startErr    error
	stopResult  bool
	checkResult bool
	checkErr    error
	status      watcher.Status

	startCalls []time.Duration
}

func (s *stubController) Start(interval time.Duration) (time.Duration, error) {
	s.startCalls = append(s.startCalls, interval)
	if s.startErr != nil {
		return 0, s.startErr
	}
	if interval > 0 {
		return interval, nil
	}
	return 20 * time.Minute, nil
}

func (s *stubController) Stop() bool { return s.stopResult }

func (s *stubController) CheckOnce(ctx context.Context) (bool, error) {
	return s.checkResult, s.checkErr
}

func (s *stubController) Status() watcher.Status { return s.status }

type stubHistory struct {
	records []checklog.CheckRecord
	limits  []int
	err     error
}

func (s *stubHistory) Recent(ctx context.Context, limit int) ([]checklog.CheckRecord, error) {
	s.limits = append(s.limits, limit)
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

func newTestServer(t *testing.T, ctrl Controller, history History) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Addr:         ":0",
		Controller:   ctrl,
		History:      history,
		HistoryLimit: 5,
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestNewServerRequiresController(t *testing.T) {
	_, err := NewServer(ServerConfig{Addr: ":0"})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubController{}, nil)
	w, body := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestStartWithInterval(t *testing.T) {
	ctrl := &stubController{}
	srv := newTestServer(t, ctrl, nil)

	w, body := doJSON(t, srv.Router(), http.MethodPost, "/api/watch/start", `{"interval_seconds":45}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(45), body["interval_seconds"])
	require.Len(t, ctrl.startCalls, 1)
	assert.Equal(t, 45*time.Second, ctrl.startCalls[0])
}

func TestStartWithoutBodyUsesDefault(t *testing.T) {
	ctrl := &stubController{}
	srv := newTestServer(t, ctrl, nil)

	w, body := doJSON(t, srv.Router(), http.MethodPost, "/api/watch/start", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1200), body["interval_seconds"])
	require.Len(t, ctrl.startCalls, 1)
	assert.Equal(t, time.Duration(0), ctrl.startCalls[0])
}

func TestStartRejectsNegativeInterval(t *testing.T) {
	ctrl := &stubController{}
	srv := newTestServer(t, ctrl, nil)

	w, body := doJSON(t, srv.Router(), http.MethodPost, "/api/watch/start", `{"interval_seconds":-10}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "interval_seconds")
	assert.Empty(t, ctrl.startCalls)
}

func TestStop(t *testing.T) {
	ctrl := &stubController{stopResult: true}
	srv := newTestServer(t, ctrl, nil)

	w, body := doJSON(t, srv.Router(), http.MethodPost, "/api/watch/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["running"])
	assert.Equal(t, "stopped", body["message"])

	ctrl.stopResult = false
	_, body = doJSON(t, srv.Router(), http.MethodPost, "/api/watch/stop", "")
	assert.Equal(t, "not running", body["message"])
}

func TestCheck(t *testing.T) {
	ctrl := &stubController{checkResult: true}
	srv := newTestServer(t, ctrl, nil)

	w, body := doJSON(t, srv.Router(), http.MethodPost, "/api/watch/check", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["available"])
}

func TestCheckFailure(t *testing.T) {
	ctrl := &stubController{checkErr: fmt.Errorf("probe https://x failed: status=503")}
	srv := newTestServer(t, ctrl, nil)

	w, body := doJSON(t, srv.Router(), http.MethodPost, "/api/watch/check", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, body["error"], "status=503")
}

func TestStatus(t *testing.T) {
	ctrl := &stubController{status: watcher.Status{
		Running:  true,
		Interval: 90 * time.Second,
		Notified: true,
		Last: &watcher.Outcome{
			CheckedAt:  time.Now(),
			Trigger:    checklog.TriggerScheduled,
			Available:  true,
			StatusCode: 200,
		},
	}}
	srv := newTestServer(t, ctrl, nil)

	w, body := doJSON(t, srv.Router(), http.MethodGet, "/api/watch/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(90), body["interval_seconds"])
	assert.Equal(t, true, body["notified"])
	last, ok := body["last"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, last["available"])
	assert.NotContains(t, last, "error")
}

func TestHistory(t *testing.T) {
	history := &stubHistory{records: []checklog.CheckRecord{
		{ID: "a", Available: true},
		{ID: "b"},
		{ID: "c"},
	}}
	srv := newTestServer(t, &stubController{}, history)

	w, body := doJSON(t, srv.Router(), http.MethodGet, "/api/watch/history?limit=2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	checks, ok := body["checks"].([]any)
	require.True(t, ok)
	assert.Len(t, checks, 2)
	require.Len(t, history.limits, 1)
	assert.Equal(t, 2, history.limits[0])
}

func TestHistoryLimitCapped(t *testing.T) {
	history := &stubHistory{}
	srv := newTestServer(t, &stubController{}, history)

	w, _ := doJSON(t, srv.Router(), http.MethodGet, "/api/watch/history?limit=9999", "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, history.limits, 1)
	assert.Equal(t, 5, history.limits[0], "configured cap applies")
}

func TestHistoryBadLimit(t *testing.T) {
	history := &stubHistory{}
	srv := newTestServer(t, &stubController{}, history)

	w, body := doJSON(t, srv.Router(), http.MethodGet, "/api/watch/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "limit")
}

func TestHistoryRouteAbsentWithoutStore(t *testing.T) {
	srv := newTestServer(t, &stubController{}, nil)

	w, _ := doJSON(t, srv.Router(), http.MethodGet, "/api/watch/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
