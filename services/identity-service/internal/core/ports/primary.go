package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
)

type RegisterCmd struct {
	Username string
	Email    string
	Password string
}

type LoginCmd struct {
	Email    string
	Password string
}

// IdentityService est l'API exposée à la gateway (via /v1/auth).
type IdentityService interface {
	Register(ctx context.Context, cmd RegisterCmd) (*domain.User, *domain.Tokens, error)
	Login(ctx context.Context, cmd LoginCmd) (*domain.User, *domain.Tokens, error)
	// Refresh consomme le refresh token (usage unique) et en émet un nouveau.
	Refresh(ctx context.Context, refreshToken string) (*domain.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
}
