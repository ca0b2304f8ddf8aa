// Package httpx regroupe les helpers gin communs aux adapters HTTP des services.
package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

// UserIDHeader est posé par la gateway après validation du JWT.
const UserIDHeader = "x-user-id"

const userIDKey = "userID"

// NewEngine crée un moteur gin sans les middlewares par défaut : logs via slog, recovery.
func NewEngine(env string, logger *slog.Logger) *gin.Engine {
	if env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))
	return r
}

// Handler enveloppe le moteur dans otelhttp pour reprendre le contexte de trace de la gateway.
func Handler(r *gin.Engine, operation string) http.Handler {
	return otelhttp.NewHandler(r, operation)
}

func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// RequireUser rejette les requêtes sans identité.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Authentication required! Please login to continue",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// Error répond avec le statut issu de la taxonomie apperr, sans détail interne.
func Error(c *gin.Context, logger *slog.Logger, err error, attrs ...any) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", append(attrs, "error", err)...)
	} else {
		logger.Warn("request rejected", append(attrs, "error", err)...)
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": apperr.PublicMessage(err)})
}
