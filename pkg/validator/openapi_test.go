package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-call-demo/backend/api"
	"companion-call-demo/backend/pkg/errors"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := NewFromData(api.OpenAPI)
	require.NoError(t, err)

	r := gin.New()
	r.Use(errors.ErrorHandler(), v.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/api/calls", ok)
	r.GET("/ws/call/:roomId", ok)
	r.GET("/internal/debug", ok)
	return r
}

func do(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDocumentLoads(t *testing.T) {
	v, err := NewFromData(api.OpenAPI)
	require.NoError(t, err)
	assert.NotNil(t, v.Document().Paths.Find("/api/calls"))
}

func TestStartCallBody(t *testing.T) {
	r := newEngine(t)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/calls", `{"companionId":"1","captions":true}`).Code)

	w := do(r, http.MethodPost, "/api/calls", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeBadRequest)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/calls", `{"companionId":"1","admin":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/calls", `{"companionId":""}`).Code)
}

func TestJoinCallQuery(t *testing.T) {
	r := newEngine(t)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/ws/call/room_1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/ws/call/room_1?companion=%7B%7D&captions=maybe", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ws/call/room_1?companion=%7B%7D&captions=true", "").Code)
}

func TestUndocumentedRoutesPass(t *testing.T) {
	r := newEngine(t)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/internal/debug", "").Code)
}

func TestNewFromDataRejectsGarbage(t *testing.T) {
	_, err := NewFromData([]byte("openapi: [not valid"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	v, err := NewOpenAPIValidator("../../api/openapi.yaml")
	require.NoError(t, err)
	assert.NotNil(t, v.Document().Paths.Find("/api/companions/{id}"))

	_, err = NewOpenAPIValidator("missing.yaml")
	assert.Error(t, err)
}
