package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/domain"
)

type stubSearch struct{ got domain.SearchRequest }

func (s *stubSearch) IndexPost(context.Context, domain.Projection) error { return nil }
func (s *stubSearch) RemovePost(context.Context, string) error           { return nil }

func (s *stubSearch) Search(_ context.Context, req domain.SearchRequest) ([]domain.Hit, error) {
	s.got = req
	if req.Query == "" {
		return nil, domain.ErrEmptyQuery
	}
	return []domain.Hit{{Projection: domain.Projection{PostID: "p1", Content: "golang"}, Score: 2}}, nil
}

func serve(svc *stubSearch, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(httpx.UserIDHeader, "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearch(t *testing.T) {
	svc := &stubSearch{}
	w := serve(svc, "/api/search/posts?query=golang&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.SearchRequest{Query: "golang", Limit: 5}, svc.got)

	var hits []hitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].PostID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	w := serve(&stubSearch{}, "/api/search/posts")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
