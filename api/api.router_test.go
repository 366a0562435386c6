package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/itsatony/recorderhub/api/middleware"
	"github.com/itsatony/recorderhub/internal/database/dbtest"
	"github.com/itsatony/recorderhub/internal/hubservice"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/itsatony/recorderhub/internal/monitoring"
	"github.com/itsatony/recorderhub/internal/registry"
	"github.com/itsatony/recorderhub/internal/repository/repotest"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router *Router
	clock  clockwork.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repotest.NewStore()
	clock := clockwork.NewFakeClockAt(epoch)
	svc := hubservice.New(dbtest.NewRunner(), hubservice.Repositories{
		Devices:  store.Devices(),
		Sessions: store.Sessions(),
		Statuses: store.Statuses(),
	}, monitoring.NewService(prometheus.NewRegistry()), clock, registry.Config{
		DownThreshold:   time.Minute,
		StreamKeepAlive: 30 * time.Second,
	})
	require.NoError(t, svc.Validate())

	return &testServer{
		router: NewRouter(svc, RouterConfig{AllowedOrigins: []string{"https://ops.example.org"}}),
		clock:  clock,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) heartbeat(t *testing.T, name string, session *int64, recording bool, duration int) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/v1/device/heartbeat", &models.HeartbeatRequest{
		Name:      name,
		Timestamp: s.clock.Now().Format(time.RFC3339),
		SessionID: session,
		SensorStatus: &models.SensorStatus{
			Camera: &models.CameraStatus{Recording: recording, Duration: &duration},
		},
		SystemInfo: &models.SystemInfo{Uptime: 10, Release: "1.4.2"},
	})
}

func (s *testServer) register(t *testing.T, name string) *models.Device {
	t.Helper()
	rec := s.heartbeat(t, name, nil, false, 0)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/devices/name/"+name, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var device models.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &device))
	return &device
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
		assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/999", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-abc", rec.Header().Get(middleware.RequestIDHeader))
	body := decodeError(t, rec)
	assert.Equal(t, "not_found", body["type"])
	assert.Equal(t, "req-abc", body["request_id"])
}

func TestHeartbeat_Malformed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/device/heartbeat", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeError(t, rec)["type"])

	rec = s.do(t, http.MethodPost, "/api/v1/device/heartbeat", map[string]string{"name": "cam-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeError(t, rec)["type"])
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	device := s.register(t, "cam-01")

	rec := s.do(t, http.MethodPost, "/api/v1/recording-sessions", &models.CreateSessionRequest{
		Name:       "dawn chorus",
		Duration:   600,
		TargetFPS:  10,
		DeviceSpec: []models.DeviceSpec{{DeviceID: device.ID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session models.RecordingSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, models.SessionInProgress, session.Status)
	require.Len(t, session.DeviceStatuses, 1)
	assert.Equal(t, models.StatusPending, session.DeviceStatuses[0].Status)
	assert.Equal(t, "cam-01", session.DeviceStatuses[0].FilePrefix)

	// the device learns about the session from its next heartbeat
	rec = s.heartbeat(t, "cam-01", nil, false, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	var cmd models.Command
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmd))
	assert.Equal(t, models.CommandStart, cmd.Name)
	var params models.StartParameters
	require.NoError(t, json.Unmarshal([]byte(cmd.Parameters), &params))
	assert.Equal(t, session.ID, params.SessionID)
	assert.Equal(t, 600, params.Duration)

	s.clock.Advance(5 * time.Second)
	rec = s.heartbeat(t, "cam-01", &session.ID, true, 5)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/recording-sessions/%d/device-status/%d", session.ID, device.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.DeviceSessionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.StatusRecording, status.Status)
	assert.Equal(t, 5, status.RecordingTime)

	rec = s.do(t, http.MethodGet, "/api/v1/devices?state=BUSY", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var busy []models.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &busy))
	require.Len(t, busy, 1)
	assert.Equal(t, device.ID, busy[0].ID)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/devices/%d/stream", device.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	s.clock.Advance(5 * time.Second)
	rec = s.heartbeat(t, "cam-01", &session.ID, true, 10)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"command_name":"STREAM"`)

	s.clock.Advance(590 * time.Second)
	rec = s.heartbeat(t, "cam-01", &session.ID, false, 598)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"command_name":"COMPLETE"`)

	rec = s.do(t, http.MethodGet, "/api/v1/recording-sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []models.RecordingSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionComplete, sessions[0].Status)
	assert.Equal(t, 598, sessions[0].DeviceStatuses[0].RecordingTime)
}

func TestCancelSessionOverHTTP(t *testing.T) {
	s := newTestServer(t)
	device := s.register(t, "cam-01")

	rec := s.do(t, http.MethodPost, "/api/v1/recording-sessions", &models.CreateSessionRequest{
		Name:       "night",
		Duration:   60,
		TargetFPS:  5,
		DeviceSpec: []models.DeviceSpec{{DeviceID: device.ID, FilenamePrefix: "night"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var session models.RecordingSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/recording-sessions/%d?archive=maybe", session.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/recording-sessions/%d?archive=true", session.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, models.SessionCanceled, session.Status)
	assert.True(t, session.Archived)
	assert.Equal(t, models.StatusCanceled, session.DeviceStatuses[0].Status)

	rec = s.do(t, http.MethodGet, "/api/v1/recording-sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []models.RecordingSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	assert.Empty(t, active)

	rec = s.do(t, http.MethodGet, "/api/v1/recording-sessions?archived=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CANCELED"`)

	rec = s.do(t, http.MethodDelete, "/api/v1/recording-sessions/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveSessionOverHTTP(t *testing.T) {
	s := newTestServer(t)
	device := s.register(t, "cam-01")

	rec := s.do(t, http.MethodPost, "/api/v1/recording-sessions", &models.CreateSessionRequest{
		Name:       "dusk",
		Duration:   60,
		TargetFPS:  5,
		DeviceSpec: []models.DeviceSpec{{DeviceID: device.ID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var session models.RecordingSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/recording-sessions/%d/archive", session.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.True(t, session.Archived)
	assert.Equal(t, models.SessionInProgress, session.Status)

	rec = s.do(t, http.MethodPost, "/api/v1/recording-sessions/9999/archive", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveDeviceOverHTTP(t *testing.T) {
	s := newTestServer(t)
	device := s.register(t, "cam-01")

	rec := s.do(t, http.MethodPost, "/api/v1/recording-sessions", &models.CreateSessionRequest{
		Name:       "noon",
		Duration:   60,
		TargetFPS:  5,
		DeviceSpec: []models.DeviceSpec{{DeviceID: device.ID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var session models.RecordingSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	path := fmt.Sprintf("/api/v1/recording-sessions/%d/devices/%d", session.ID, device.ID)
	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodDelete, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"CANCELED"`)
	}

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/recording-sessions/%d/devices/%d", session.ID, device.ID+1000), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSession_Invalid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/recording-sessions", &models.CreateSessionRequest{Name: "empty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/recording-sessions", &models.CreateSessionRequest{
		Name:       "ghosts",
		Duration:   60,
		TargetFPS:  5,
		DeviceSpec: []models.DeviceSpec{{DeviceID: 42}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec)["message"], "unknown device ids: 42")
}

func TestDeviceRoutes(t *testing.T) {
	s := newTestServer(t)
	device := s.register(t, "cam-01")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/devices/%d", device.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"IDLE"`)

	rec = s.do(t, http.MethodGet, "/api/v1/devices/name/cam-99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/devices/%d/stream", device.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "domain", decodeError(t, rec)["type"])

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/devices/%d/telemetry", device.ID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/devices?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.clock.Advance(2 * time.Minute)
	rec = s.do(t, http.MethodGet, "/api/v1/devices?state=DOWN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"cam-01"`)
}

func TestSwaggerDoc(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, "/device/heartbeat")
	assert.Equal(t, "/api/v1", doc["basePath"])
}

func TestMetricsAndCORS(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "cam-01")

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "recorderhub_devices_registered_total 1"), body)
	assert.Contains(t, body, `route="/api/v1/device/heartbeat"`)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://ops.example.org")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "https://ops.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
