package resources

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSwaggerDoc(t *testing.T) {
	rec := httptest.NewRecorder()
	handleSwaggerDoc(rec, httptest.NewRequest(http.MethodGet, "/api/v1/swagger/doc.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "RecorderHub API", doc["info"].(map[string]interface{})["title"])
	assert.Contains(t, doc["paths"], "/recording-sessions/{id}/archive")
}

func TestNewResources_DefaultHandlers(t *testing.T) {
	r := NewResources(nil)
	assert.NotNil(t, r.HealthCheck)
	assert.NotNil(t, r.SwaggerDoc)
	assert.Nil(t, r.Metrics)

	rec := httptest.NewRecorder()
	r.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
