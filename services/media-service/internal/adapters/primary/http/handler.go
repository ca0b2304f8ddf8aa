package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/ports"
)

// marge pour les en-têtes multipart autour du fichier
const multipartOverhead = 64 << 10

type Handler struct {
	service ports.MediaService
	logger  *slog.Logger
}

func NewHandler(service ports.MediaService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/media", httpx.RequireUser())
	g.POST("/upload", h.upload)
	g.GET("/get", h.list)
}

type mediaResponse struct {
	ID           string    `json:"mediaId"`
	PublicID     string    `json:"publicId"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	URL          string    `json:"url"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toResponse(a domain.MediaAsset) mediaResponse {
	return mediaResponse{
		ID:           a.ID,
		PublicID:     a.PublicID,
		OriginalName: a.OriginalName,
		MimeType:     a.MimeType,
		URL:          a.URL,
		UserID:       a.UserID,
		CreatedAt:    a.CreatedAt,
	}
}

func (h *Handler) upload(c *gin.Context) {
	userID := httpx.UserID(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, domain.MaxUploadSize+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Error(c, h.logger, domain.ErrFileTooLarge, "user_id", userID)
			return
		}
		httpx.Error(c, h.logger, domain.ErrNoFile, "user_id", userID)
		return
	}
	if fh.Size > domain.MaxUploadSize {
		httpx.Error(c, h.logger, domain.ErrFileTooLarge, "user_id", userID, "size", fh.Size)
		return
	}

	f, err := fh.Open()
	if err != nil {
		httpx.Error(c, h.logger, domain.ErrNoFile, "user_id", userID)
		return
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, domain.MaxUploadSize+1))
	if err != nil {
		httpx.Error(c, h.logger, domain.ErrNoFile, "user_id", userID)
		return
	}

	asset, err := h.service.Upload(c.Request.Context(), userID, domain.Upload{
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Content:  content,
	})
	if err != nil {
		httpx.Error(c, h.logger, err, "user_id", userID, "name", fh.Filename)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Media upload is successfully",
		"media":   toResponse(*asset),
	})
}

func (h *Handler) list(c *gin.Context) {
	assets, err := h.service.ListMedia(c.Request.Context())
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	out := make([]mediaResponse, len(assets))
	for i, a := range assets {
		out[i] = toResponse(a)
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}
