package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/ports"
)

// 40 octets aléatoires, 80 caractères hex
const refreshTokenBytes = 40

// IdentityService implémente ports.IdentityService.
type IdentityService struct {
	repo    ports.UserRepository
	hasher  ports.PasswordHasher
	issuer  ports.TokenIssuer
	refresh ports.RefreshTokenStore
	logger  *slog.Logger
}

func NewIdentityService(
	repo ports.UserRepository,
	hasher ports.PasswordHasher,
	issuer ports.TokenIssuer,
	refresh ports.RefreshTokenStore,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{repo: repo, hasher: hasher, issuer: issuer, refresh: refresh, logger: logger}
}

func (s *IdentityService) Register(ctx context.Context, cmd ports.RegisterCmd) (*domain.User, *domain.Tokens, error) {
	// 1. Validation avant tout hachage (coûteux)
	if err := domain.ValidateRegistration(cmd.Username, cmd.Email, cmd.Password); err != nil {
		return nil, nil, err
	}

	// 2. Fail fast sur l'unicité ; la contrainte UNIQUE reste la vraie garantie
	_, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(cmd.Email))
	switch {
	case err == nil:
		s.logger.Warn("User already exists", "email", domain.NormalizeEmail(cmd.Email))
		return nil, nil, domain.ErrUserAlreadyExists
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, nil, fmt.Errorf("%w: lookup user: %v", apperr.ErrStorage, err)
	}

	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: hashing failed: %v", apperr.ErrStorage, err)
	}

	user, err := domain.NewUser(cmd.Username, cmd.Email, hash)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.Save(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: save user: %v", apperr.ErrStorage, err)
	}
	s.logger.Info("User registered successfully", "user_id", user.ID)

	tokens, err := s.tokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *IdentityService) Login(ctx context.Context, cmd ports.LoginCmd) (*domain.User, *domain.Tokens, error) {
	user, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(cmd.Email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// on ne dit pas si c'est l'email ou le mot de passe
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("%w: lookup user: %v", apperr.ErrStorage, err)
	}

	if err := s.hasher.Compare(user.PasswordHash, cmd.Password); err != nil {
		s.logger.Warn("Invalid password", "user_id", user.ID)
		return nil, nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.tokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*domain.Tokens, error) {
	if refreshToken == "" {
		return nil, domain.ErrInvalidRefresh
	}
	userID, err := s.refresh.Consume(ctx, refreshToken)
	if err != nil {
		return nil, s.refreshErr(err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidRefresh
		}
		return nil, fmt.Errorf("%w: lookup user: %v", apperr.ErrStorage, err)
	}
	return s.tokens(ctx, user)
}

// Logout est idempotent : un token inconnu ou déjà consommé n'est pas une erreur.
func (s *IdentityService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return domain.ErrInvalidRefresh
	}
	if _, err := s.refresh.Consume(ctx, refreshToken); err != nil && !errors.Is(err, domain.ErrInvalidRefresh) {
		return s.refreshErr(err)
	}
	return nil
}

func (s *IdentityService) tokens(ctx context.Context, user *domain.User) (*domain.Tokens, error) {
	access, expiresIn, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("%w: sign token: %v", apperr.ErrStorage, err)
	}

	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("%w: refresh token: %v", apperr.ErrStorage, err)
	}
	refresh := hex.EncodeToString(buf)
	if err := s.refresh.Save(ctx, refresh, user.ID, domain.RefreshTTL); err != nil {
		return nil, fmt.Errorf("%w: save refresh token: %v", apperr.ErrStorage, err)
	}

	return &domain.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresIn: expiresIn}, nil
}

func (s *IdentityService) refreshErr(err error) error {
	if errors.Is(err, domain.ErrInvalidRefresh) {
		return err
	}
	return fmt.Errorf("%w: refresh token store: %v", apperr.ErrStorage, err)
}
