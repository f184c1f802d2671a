package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestMiddlewareKeepsCallerID(t *testing.T) {
	w, seen := serve("trace-abc-123")
	assert.Equal(t, "trace-abc-123", seen)
	assert.Equal(t, "trace-abc-123", w.Header().Get(headerKey))
}

func TestMiddlewareReplacesUnusableIDs(t *testing.T) {
	for _, header := range []string{"", strings.Repeat("x", maxLength+1), "has space"} {
		w, seen := serve(header)
		assert.NotEqual(t, header, seen)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(headerKey))
	}
}
