package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
)

type stubMedia struct {
	uploaded []domain.Upload
	assets   []domain.MediaAsset
	err      error
}

func (s *stubMedia) Upload(_ context.Context, userID string, file domain.Upload) (*domain.MediaAsset, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	s.uploaded = append(s.uploaded, file)
	return &domain.MediaAsset{ID: "m1", PublicID: "pub1", OriginalName: file.Name, UserID: userID}, nil
}

func (s *stubMedia) ListMedia(context.Context) ([]domain.MediaAsset, error) {
	return s.assets, s.err
}

func (s *stubMedia) CleanupPost(context.Context, string, string, []string) error { return nil }

func newRouter(svc *stubMedia) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func upload(r http.Handler, body io.Reader, contentType, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	if userID != "" {
		req.Header.Set(httpx.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpload(t *testing.T) {
	svc := &stubMedia{}
	body, ct := multipartBody(t, "file", "cat.png", []byte("png-bytes"))

	w := upload(newRouter(svc), body, ct, "u1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, svc.uploaded, 1)
	assert.Equal(t, "cat.png", svc.uploaded[0].Name)
	assert.Equal(t, []byte("png-bytes"), svc.uploaded[0].Content)

	var resp struct {
		Success bool          `json:"success"`
		Media   mediaResponse `json:"media"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "m1", resp.Media.ID)
	assert.Equal(t, "u1", resp.Media.UserID)
}

func TestUpload_Rejections(t *testing.T) {
	t.Run("missing user", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "cat.png", []byte("x"))
		w := upload(newRouter(&stubMedia{}), body, ct, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no file field", func(t *testing.T) {
		body, ct := multipartBody(t, "other", "cat.png", []byte("x"))
		w := upload(newRouter(&stubMedia{}), body, ct, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "big.bin", bytes.Repeat([]byte("a"), domain.MaxUploadSize+1))
		svc := &stubMedia{}
		w := upload(newRouter(svc), body, ct, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, svc.uploaded)
	})

	t.Run("storage failure", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "cat.png", []byte("x"))
		w := upload(newRouter(&stubMedia{err: apperr.ErrStorage}), body, ct, "u1")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestList(t *testing.T) {
	svc := &stubMedia{assets: []domain.MediaAsset{{ID: "m1"}, {ID: "m2"}}}
	req := httptest.NewRequest(http.MethodGet, "/api/media/get", nil)
	req.Header.Set(httpx.UserIDHeader, "u1")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Results []mediaResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "m2", resp.Results[1].ID)
}
