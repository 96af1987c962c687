package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeDown struct{}

func (storeDown) Error() string { return "store down" }

func (storeDown) AppError() *AppError {
	return NewServiceUnavailableError(CodeRetrieval, "companions unavailable")
}

func TestFromErrorMapsDomainErrors(t *testing.T) {
	wrapped := fmt.Errorf("list: %w", storeDown{})

	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.StatusCode)
	assert.Equal(t, CodeRetrieval, appErr.Code)
	assert.True(t, stderrors.Is(appErr, storeDown{}))
}

func TestFromErrorPassesAppErrorThrough(t *testing.T) {
	orig := NewNotFoundError(CodeCallNotFound, "no such call")
	assert.Same(t, orig, FromError(fmt.Errorf("wrap: %w", orig)))
	assert.True(t, Is(orig, NewNotFoundError(CodeCallNotFound, "")))
}

func TestFromErrorUnknown(t *testing.T) {
	assert.Nil(t, FromError(nil))
	appErr := FromError(stderrors.New("kaput"))
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(stderrors.New("x")))
}

func TestErrorHandlerWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/x", func(c *gin.Context) {
		c.Error(NewConflictError(CodeRoomInUse, "room busy"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":{"code":"ROOM_IN_USE","message":"room busy","details":null}}`, w.Body.String())
}

func TestRecoveryWithLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryWithLogger())
	r.GET("/panic", func(c *gin.Context) { panic("nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SERVER_ERROR")
}
