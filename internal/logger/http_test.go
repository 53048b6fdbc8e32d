package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestAccessMiddleware(t *testing.T) {
	var buffer bytes.Buffer
	l := SetupWriter(&buffer, "debug", "text")
	handler := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, buffer.String(), "msg=http_access")
	assert.Contains(t, buffer.String(), "path=/api/history")
	assert.Contains(t, buffer.String(), "status=418")
	assert.Contains(t, buffer.String(), "bytes=15")
}
