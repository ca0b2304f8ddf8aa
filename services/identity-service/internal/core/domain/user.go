package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

// --- ERREURS DU DOMAINE ---
var (
	ErrUserNotFound       = fmt.Errorf("user %w", apperr.ErrNotFound)
	ErrUserAlreadyExists  = fmt.Errorf("%w: user already exists", apperr.ErrValidation)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrValidation)
	ErrInvalidRefresh     = fmt.Errorf("%w: invalid or expired refresh token", apperr.ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("%w: invalid email format", apperr.ErrValidation)
	ErrInvalidUsername    = fmt.Errorf("%w: username must be between 3 and 50 characters", apperr.ErrValidation)
	ErrWeakPassword       = fmt.Errorf("%w: password must be at least 6 characters", apperr.ErrValidation)
)

const (
	minUsername = 3
	maxUsername = 50
	minPassword = 6
)

// RefreshTTL : durée de vie d'un refresh token.
const RefreshTTL = 7 * 24 * time.Hour

// --- ENTITÉ ---

type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// ValidateRegistration vérifie les champs avant tout hachage.
func ValidateRegistration(username, email, password string) error {
	if n := len([]rune(strings.TrimSpace(username))); n < minUsername || n > maxUsername {
		return ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	if len(password) < minPassword {
		return ErrWeakPassword
	}
	return nil
}

// NewUser est le seul moyen de créer un user (ID généré ici, pas en DB).
func NewUser(username, email, passwordHash string) (*User, error) {
	if n := len([]rune(strings.TrimSpace(username))); n < minUsername || n > maxUsername {
		return nil, ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	return &User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		Username:     strings.TrimSpace(username),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Tokens est la paire renvoyée au client après register, login ou refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
