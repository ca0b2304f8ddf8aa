package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
)

// AccessClaims : mêmes champs que ceux lus par la gateway (userId, username).
type AccessClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// HS256Issuer signe les access tokens avec le secret partagé avec la gateway.
type HS256Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewHS256Issuer(secret string, ttl time.Duration) (*HS256Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &HS256Issuer{secret: []byte(secret), ttl: ttl, issuer: "cenackle-identity"}, nil
}

func (j *HS256Issuer) Issue(user *domain.User) (string, time.Duration, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   user.ID,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", 0, err
	}
	return token, j.ttl, nil
}
