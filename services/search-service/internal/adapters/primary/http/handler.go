package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/ports"
)

type Handler struct {
	service ports.SearchService
	logger  *slog.Logger
}

func NewHandler(service ports.SearchService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/api/search/posts", httpx.RequireUser(), h.search)
}

type hitResponse struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Score     float64   `json:"score"`
}

func (h *Handler) search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	req := domain.SearchRequest{Query: c.Query("query"), Limit: limit}

	hits, err := h.service.Search(c.Request.Context(), req)
	if err != nil {
		httpx.Error(c, h.logger, err, "query", req.Query)
		return
	}

	out := make([]hitResponse, len(hits))
	for i, hit := range hits {
		out[i] = hitResponse{
			PostID:    hit.PostID,
			UserID:    hit.UserID,
			Content:   hit.Content,
			CreatedAt: hit.CreatedAt,
			Score:     hit.Score,
		}
	}
	c.JSON(http.StatusOK, out)
}
