package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/ports"
)

type Handler struct {
	service ports.IdentityService
	logger  *slog.Logger
}

func NewHandler(service ports.IdentityService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register monte /api/auth ; routes publiques, la gateway ne demande pas de token ici.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh-token", h.refresh)
	g.POST("/logout", h.logout)
}

// --- DTOs ---

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	UserID       string `json:"userId,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func toResponse(message string, user *domain.User, t *domain.Tokens) authResponse {
	resp := authResponse{
		Success:      true,
		Message:      message,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    int64(t.ExpiresIn.Seconds()),
	}
	if user != nil {
		resp.UserID = user.ID
	}
	return resp
}

var errBadBody = fmt.Errorf("%w: invalid request body", apperr.ErrValidation)

func (h *Handler) register(c *gin.Context) {
	h.logger.Info("Registration endpoint hit...")
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, h.logger, errBadBody)
		return
	}

	user, tokens, err := h.service.Register(c.Request.Context(), ports.RegisterCmd{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httpx.Error(c, h.logger, err, "email", req.Email)
		return
	}
	c.JSON(http.StatusCreated, toResponse("User registered successfully", user, tokens))
}

func (h *Handler) login(c *gin.Context) {
	h.logger.Info("Login endpoint hit...")
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, h.logger, errBadBody)
		return
	}

	user, tokens, err := h.service.Login(c.Request.Context(), ports.LoginCmd{Email: req.Email, Password: req.Password})
	if err != nil {
		httpx.Error(c, h.logger, err, "email", req.Email)
		return
	}
	c.JSON(http.StatusOK, toResponse("", user, tokens))
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, h.logger, errBadBody)
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toResponse("", nil, tokens))
}

func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, h.logger, errBadBody)
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully!"})
}
