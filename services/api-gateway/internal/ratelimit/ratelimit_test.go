package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_PerIP(t *testing.T) {
	l := New(2, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/posts/all-posts", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))

	// autre IP, autre seau
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
}
