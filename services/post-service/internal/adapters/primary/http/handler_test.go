package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
)

type stubService struct {
	created   *domain.Post
	createErr error
	deleteErr error
	page      domain.Page
	gotPage   [2]int
}

func (s *stubService) CreatePost(_ context.Context, authorID, content string, mediaIDs []string) (*domain.Post, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = &domain.Post{ID: "p1", UserID: authorID, Content: content, MediaIDs: mediaIDs, CreatedAt: time.Now().UTC()}
	return s.created, nil
}

func (s *stubService) GetPost(_ context.Context, id string) (*domain.Post, error) {
	if id != "p1" {
		return nil, domain.ErrPostNotFound
	}
	return &domain.Post{ID: "p1", UserID: "u1", Content: "hello"}, nil
}

func (s *stubService) DeletePost(context.Context, string, string) error { return s.deleteErr }

func (s *stubService) ListPosts(_ context.Context, page, limit int) (domain.Page, error) {
	s.gotPage = [2]int{page, limit}
	return s.page, nil
}

func (s *stubService) ListPostsByAuthor(context.Context, string, int, string) ([]*domain.Post, string, error) {
	return []*domain.Post{}, "", nil
}

func newRouter(svc *stubService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func do(r http.Handler, method, path, body string, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(httpx.UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePost(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc)

	w := do(r, http.MethodPost, "/api/posts/create-post", `{"content":"hello world","mediaIds":["m1"]}`, "u1")
	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, "u1", svc.created.UserID)
	assert.Equal(t, []string{"m1"}, svc.created.MediaIDs)
}

func TestCreatePost_RequiresUser(t *testing.T) {
	w := do(newRouter(&stubService{}), http.MethodPost, "/api/posts/create-post", `{"content":"hello"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePost_ValidationError(t *testing.T) {
	svc := &stubService{createErr: domain.ErrContentTooShort}
	w := do(newRouter(svc), http.MethodPost, "/api/posts/create-post", `{"content":"no"}`, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(newRouter(svc), http.MethodPost, "/api/posts/create-post", `not json`, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPosts(t *testing.T) {
	svc := &stubService{page: domain.NewPage([]*domain.Post{{ID: "p1", UserID: "u1", Content: "hello"}}, 2, 5, 6)}
	w := do(newRouter(svc), http.MethodGet, "/api/posts/all-posts?page=2&limit=5", "", "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]int{2, 5}, svc.gotPage)

	var body pageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.TotalPages)
	assert.Equal(t, 6, body.TotalPosts)
	require.Len(t, body.Posts, 1)
	assert.Equal(t, []string{}, body.Posts[0].MediaIDs)
}

func TestListPosts_DefaultsOnGarbage(t *testing.T) {
	svc := &stubService{page: domain.NewPage(nil, 1, 10, 0)}
	w := do(newRouter(svc), http.MethodGet, "/api/posts/all-posts?page=abc", "", "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]int{1, 10}, svc.gotPage)
}

func TestGetPost(t *testing.T) {
	r := newRouter(&stubService{})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/posts/p1", "", "u1").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/posts/p2", "", "u1").Code)
}

func TestDeletePost_NotFound(t *testing.T) {
	r := newRouter(&stubService{deleteErr: domain.ErrPostNotFound})
	w := do(r, http.MethodDelete, "/api/posts/p1", "", "u2")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "resource not found")
}
