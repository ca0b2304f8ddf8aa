package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		want     error
	}{
		{name: "ok", username: "alice", email: "alice@example.com", password: "secret1"},
		{name: "short username", username: "al", email: "alice@example.com", password: "secret1", want: ErrInvalidUsername},
		{name: "long username", username: strings.Repeat("a", 51), email: "alice@example.com", password: "secret1", want: ErrInvalidUsername},
		{name: "bad email", username: "alice", email: "not-an-email", password: "secret1", want: ErrInvalidEmail},
		{name: "weak password", username: "alice", email: "alice@example.com", password: "12345", want: ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistration(tt.username, tt.email, tt.password)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestNewUser_Normalizes(t *testing.T) {
	u, err := NewUser("  alice ", " Alice@Example.COM ", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "hash", u.PasswordHash)
}
