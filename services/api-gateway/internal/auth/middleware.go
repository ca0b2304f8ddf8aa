package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDHeader est lu par les services en aval ; seule la gateway a le droit de le poser.
const UserIDHeader = "x-user-id"

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var userCtxKey = &contextKey{"user_id"}

var ErrInvalidToken = errors.New("invalid token")

// Claims émis par l'identity service.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Verifier valide les access tokens HS256 signés avec le secret partagé.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// Verify retourne l'identifiant utilisateur porté par le token.
func (v *Verifier) Verify(tokenString string) (string, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", fmt.Errorf("%w: no user id", ErrInvalidToken)
}

// Middleware exige un Bearer token valide, sauf pour les préfixes publics.
// Le header x-user-id entrant est toujours supprimé puis reposé depuis le token.
func Middleware(v *Verifier, logger *slog.Logger, publicPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(UserIDHeader)

			for _, p := range publicPrefixes {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				logger.Warn("Access attempt without valid token!", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			userID, err := v.Verify(tokenStr)
			if err != nil {
				logger.Warn("Invalid token!", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid token!")
				return
			}

			r.Header.Set(UserIDHeader, userID)
			ctx := context.WithValue(r.Context(), userCtxKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ForContext récupère l'ID utilisateur authentifié.
func ForContext(ctx context.Context) string {
	raw, _ := ctx.Value(userCtxKey).(string)
	return raw
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
