package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/ports"
)

type Handler struct {
	service ports.PostService
	logger  *slog.Logger
}

func NewHandler(service ports.PostService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register monte les routes sous /api/posts, toutes authentifiées par la gateway.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/posts", httpx.RequireUser())
	g.POST("/create-post", h.createPost)
	g.GET("/all-posts", h.listPosts)
	g.GET("/by-author/:userId", h.listByAuthor)
	g.GET("/:id", h.getPost)
	g.DELETE("/:id", h.deletePost)
}

// --- DTOs ---

type createPostRequest struct {
	Content  string   `json:"content"`
	MediaIDs []string `json:"mediaIds"`
}

type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"mediaIds"`
	CreatedAt time.Time `json:"createdAt"`
}

type pageResponse struct {
	Posts       []postResponse `json:"posts"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalPosts  int            `json:"totalPosts"`
}

func toResponse(p *domain.Post) postResponse {
	media := p.MediaIDs
	if media == nil {
		media = []string{}
	}
	return postResponse{ID: p.ID, UserID: p.UserID, Content: p.Content, MediaIDs: media, CreatedAt: p.CreatedAt}
}

func toResponses(posts []*domain.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toResponse(p)
	}
	return out
}

// --- Handlers ---

func (h *Handler) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, h.logger, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
		return
	}

	post, err := h.service.CreatePost(c.Request.Context(), httpx.UserID(c), req.Content, req.MediaIDs)
	if err != nil {
		httpx.Error(c, h.logger, err, "user_id", httpx.UserID(c))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Post created successfully",
		"post":    toResponse(post),
	})
}

func (h *Handler) listPosts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)

	result, err := h.service.ListPosts(c.Request.Context(), page, limit)
	if err != nil {
		httpx.Error(c, h.logger, err, "page", page, "limit", limit)
		return
	}

	c.JSON(http.StatusOK, pageResponse{
		Posts:       toResponses(result.Posts),
		CurrentPage: result.CurrentPage,
		TotalPages:  result.TotalPages,
		TotalPosts:  result.TotalPosts,
	})
}

func (h *Handler) listByAuthor(c *gin.Context) {
	posts, next, err := h.service.ListPostsByAuthor(c.Request.Context(), c.Param("userId"), queryInt(c, "limit", 10), c.Query("cursor"))
	if err != nil {
		httpx.Error(c, h.logger, err, "user_id", c.Param("userId"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": toResponses(posts), "nextCursor": next})
}

func (h *Handler) getPost(c *gin.Context) {
	post, err := h.service.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, h.logger, err, "post_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, toResponse(post))
}

func (h *Handler) deletePost(c *gin.Context) {
	postID := c.Param("id")
	if err := h.service.DeletePost(c.Request.Context(), postID, httpx.UserID(c)); err != nil {
		httpx.Error(c, h.logger, err, "post_id", postID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted successfully"})
}

// queryInt : valeur absente ou illisible => fallback.
func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}
