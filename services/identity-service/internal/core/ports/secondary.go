package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
)

// --- PERSISTANCE (DB) ---

type UserRepository interface {
	// Save renvoie domain.ErrUserAlreadyExists sur violation d'unicité (email ou username).
	Save(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// RefreshTokenStore garde les refresh tokens émis, avec expiration.
type RefreshTokenStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	// Consume renvoie l'utilisateur et supprime le token ; domain.ErrInvalidRefresh s'il est inconnu.
	Consume(ctx context.Context, token string) (string, error)
}

// --- SÉCURITÉ (CRYPTO) ---

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signe les access tokens lus par la gateway.
type TokenIssuer interface {
	Issue(user *domain.User) (token string, expiresIn time.Duration, err error)
}
